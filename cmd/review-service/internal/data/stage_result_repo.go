package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"docreview/cmd/review-service/internal/domain"
)

// StageResultPO 阶段结果持久化对象。只增不改，全部历史保留。
type StageResultPO struct {
	ID           string `gorm:"primaryKey;size:64"`
	DocumentID   string `gorm:"size:64;not null;index:idx_document"`
	Generation   int64  `gorm:"not null"`
	StageKind    string `gorm:"size:20;not null"`
	Success      bool   `gorm:"not null"`
	Payload      string `gorm:"type:jsonb"`
	ErrorMessage string `gorm:"type:text"`
	CreatedAt    time.Time
}

// TableName 表名
func (StageResultPO) TableName() string {
	return "review.stage_results"
}

// StageResultRepository 阶段结果仓储实现
type StageResultRepository struct {
	data *Data
	log  *log.Helper
}

// NewStageResultRepo 创建阶段结果仓储
func NewStageResultRepo(data *Data, logger log.Logger) domain.StageResultRepository {
	return &StageResultRepository{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Create 追加一条阶段结果
func (r *StageResultRepository) Create(ctx context.Context, result *domain.StageResult) error {
	po, err := r.toPO(result)
	if err != nil {
		return err
	}
	if err := r.data.db.WithContext(ctx).Create(po).Error; err != nil {
		r.log.Errorf("failed to create stage result: %v", err)
		return err
	}
	return nil
}

// ListByDocument 获取文档的全部历史结果
func (r *StageResultRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.StageResult, error) {
	var pos []StageResultPO
	if err := r.data.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&pos).Error; err != nil {
		r.log.Errorf("failed to list stage results: %v", err)
		return nil, err
	}
	return r.toDomainList(pos)
}

// ListByDocuments 批量获取多个文档的历史结果，按文档ID分组
func (r *StageResultRepository) ListByDocuments(ctx context.Context, documentIDs []string) (map[string][]*domain.StageResult, error) {
	out := make(map[string][]*domain.StageResult, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}

	var pos []StageResultPO
	if err := r.data.db.WithContext(ctx).
		Where("document_id IN ?", documentIDs).
		Order("created_at ASC").
		Find(&pos).Error; err != nil {
		r.log.Errorf("failed to list stage results by documents: %v", err)
		return nil, err
	}

	for i := range pos {
		result, err := r.toDomain(&pos[i])
		if err != nil {
			r.log.Warnf("failed to convert stage result %s: %v", pos[i].ID, err)
			continue
		}
		out[result.DocumentID] = append(out[result.DocumentID], result)
	}
	return out, nil
}

// toPO 转换为持久化对象
func (r *StageResultRepository) toPO(result *domain.StageResult) (*StageResultPO, error) {
	var payloadJSON string
	if result.Payload != nil {
		data, err := json.Marshal(result.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal stage payload: %w", err)
		}
		payloadJSON = string(data)
	}

	return &StageResultPO{
		ID:           result.ID,
		DocumentID:   result.DocumentID,
		Generation:   result.Generation,
		StageKind:    string(result.StageKind),
		Success:      result.Success,
		Payload:      payloadJSON,
		ErrorMessage: result.ErrorMessage,
		CreatedAt:    result.CreatedAt,
	}, nil
}

// toDomain 转换为领域对象，负载按阶段类型反序列化
func (r *StageResultRepository) toDomain(po *StageResultPO) (*domain.StageResult, error) {
	result := &domain.StageResult{
		ID:           po.ID,
		DocumentID:   po.DocumentID,
		Generation:   po.Generation,
		StageKind:    domain.StageKind(po.StageKind),
		Success:      po.Success,
		ErrorMessage: po.ErrorMessage,
		CreatedAt:    po.CreatedAt,
	}

	if po.Payload != "" {
		payload, err := unmarshalPayload(result.StageKind, []byte(po.Payload))
		if err != nil {
			return nil, err
		}
		result.Payload = payload
	}
	return result, nil
}

func (r *StageResultRepository) toDomainList(pos []StageResultPO) ([]*domain.StageResult, error) {
	results := make([]*domain.StageResult, 0, len(pos))
	for i := range pos {
		result, err := r.toDomain(&pos[i])
		if err != nil {
			r.log.Warnf("failed to convert stage result %s: %v", pos[i].ID, err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// unmarshalPayload 按阶段类型反序列化为具体负载
func unmarshalPayload(kind domain.StageKind, data []byte) (domain.StagePayload, error) {
	switch kind {
	case domain.StageVerify:
		var p domain.VerifyPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal verify payload: %w", err)
		}
		return p, nil
	case domain.StageDeepDive:
		var p domain.DeepDivePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal deep dive payload: %w", err)
		}
		return p, nil
	case domain.StageTag:
		var p domain.TagPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal tag payload: %w", err)
		}
		return p, nil
	}
	return nil, domain.ErrInvalidStageKind
}
