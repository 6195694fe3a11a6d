package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"docreview/cmd/review-service/internal/domain"
)

// DocumentPO 文档持久化对象
type DocumentPO struct {
	ID           string `gorm:"primaryKey;size:64"`
	CollectionID string `gorm:"size:64;not null;index:idx_collection;uniqueIndex:uq_collection_main,priority:1"`
	MainID       string `gorm:"size:64;not null;uniqueIndex:uq_collection_main,priority:2"`
	URL          string `gorm:"size:500"`
	Title        string `gorm:"size:500"`
	Generation   int64  `gorm:"not null;default:0"`
	ResultFloor  int64  `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 表名
func (DocumentPO) TableName() string {
	return "review.documents"
}

// DocumentRepository 文档仓储实现
type DocumentRepository struct {
	data *Data
	log  *log.Helper
}

// NewDocumentRepo 创建文档仓储
func NewDocumentRepo(data *Data, logger log.Logger) domain.DocumentRepository {
	return &DocumentRepository{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Create 创建文档
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if err := r.data.db.WithContext(ctx).Create(r.toPO(doc)).Error; err != nil {
		r.log.Errorf("failed to create document: %v", err)
		return err
	}
	return nil
}

// BatchCreate 批量创建文档
func (r *DocumentRepository) BatchCreate(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	pos := make([]*DocumentPO, 0, len(docs))
	for _, doc := range docs {
		pos = append(pos, r.toPO(doc))
	}
	if err := r.data.db.WithContext(ctx).CreateInBatches(pos, 100).Error; err != nil {
		r.log.Errorf("failed to batch create documents: %v", err)
		return err
	}
	return nil
}

// GetByID 根据ID获取文档
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var po DocumentPO
	if err := r.data.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrDocumentNotFound
		}
		r.log.Errorf("failed to get document: %v", err)
		return nil, err
	}
	return r.toDomain(&po), nil
}

// GetByMainID 根据集合和外部文档ID获取文档
func (r *DocumentRepository) GetByMainID(ctx context.Context, collectionID, mainID string) (*domain.Document, error) {
	var po DocumentPO
	if err := r.data.db.WithContext(ctx).
		Where("collection_id = ? AND main_id = ?", collectionID, mainID).
		First(&po).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrDocumentNotFound
		}
		r.log.Errorf("failed to get document by main id: %v", err)
		return nil, err
	}
	return r.toDomain(&po), nil
}

// ListByCollection 获取集合的文档列表。limit为0时取全部。
func (r *DocumentRepository) ListByCollection(ctx context.Context, collectionID string, offset, limit int) ([]*domain.Document, int64, error) {
	var total int64
	if err := r.data.db.WithContext(ctx).
		Model(&DocumentPO{}).
		Where("collection_id = ?", collectionID).
		Count(&total).Error; err != nil {
		r.log.Errorf("failed to count documents: %v", err)
		return nil, 0, err
	}

	query := r.data.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("created_at ASC, id ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	var pos []DocumentPO
	if err := query.Find(&pos).Error; err != nil {
		r.log.Errorf("failed to list documents: %v", err)
		return nil, 0, err
	}

	docs := make([]*domain.Document, 0, len(pos))
	for i := range pos {
		docs = append(docs, r.toDomain(&pos[i]))
	}
	return docs, total, nil
}

// ListByMainIDs 按外部文档ID批量获取
func (r *DocumentRepository) ListByMainIDs(ctx context.Context, collectionID string, mainIDs []string) ([]*domain.Document, error) {
	if len(mainIDs) == 0 {
		return nil, nil
	}
	var pos []DocumentPO
	if err := r.data.db.WithContext(ctx).
		Where("collection_id = ? AND main_id IN ?", collectionID, mainIDs).
		Find(&pos).Error; err != nil {
		r.log.Errorf("failed to list documents by main ids: %v", err)
		return nil, err
	}

	docs := make([]*domain.Document, 0, len(pos))
	for i := range pos {
		docs = append(docs, r.toDomain(&pos[i]))
	}
	return docs, nil
}

// CompareAndSwapGeneration 代数CAS。单条带条件的UPDATE，
// 并发时最多一方的RowsAffected为1。
func (r *DocumentRepository) CompareAndSwapGeneration(ctx context.Context, id string, expected int64, bumpFloor bool) (bool, error) {
	updates := map[string]interface{}{
		"generation": expected + 1,
		"updated_at": time.Now(),
	}
	if bumpFloor {
		updates["result_floor"] = expected + 1
	}

	result := r.data.db.WithContext(ctx).
		Model(&DocumentPO{}).
		Where("id = ? AND generation = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		r.log.Errorf("failed to swap document generation: %v", result.Error)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateMetadata 更新标题/URL
func (r *DocumentRepository) UpdateMetadata(ctx context.Context, id, title, url string) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if title != "" {
		updates["title"] = title
	}
	if url != "" {
		updates["url"] = url
	}

	if err := r.data.db.WithContext(ctx).
		Model(&DocumentPO{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		r.log.Errorf("failed to update document metadata: %v", err)
		return err
	}
	return nil
}

// toPO 转换为持久化对象
func (r *DocumentRepository) toPO(doc *domain.Document) *DocumentPO {
	return &DocumentPO{
		ID:           doc.ID,
		CollectionID: doc.CollectionID,
		MainID:       doc.MainID,
		URL:          doc.URL,
		Title:        doc.Title,
		Generation:   doc.Generation,
		ResultFloor:  doc.ResultFloor,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

// toDomain 转换为领域对象
func (r *DocumentRepository) toDomain(po *DocumentPO) *domain.Document {
	return &domain.Document{
		ID:           po.ID,
		CollectionID: po.CollectionID,
		MainID:       po.MainID,
		URL:          po.URL,
		Title:        po.Title,
		Generation:   po.Generation,
		ResultFloor:  po.ResultFloor,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
	}
}
