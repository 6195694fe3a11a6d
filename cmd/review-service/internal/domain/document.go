package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document 流水线跟踪的文档。文档本体存在外部文档库，
// 这里只保留引用（MainID）和流水线状态。
type Document struct {
	ID           string
	CollectionID string
	MainID       string // 外部文档库中的文档ID
	URL          string
	Title        string

	// Generation 单调递增的代数。每次requeue加一，
	// 旧代数的阶段结果在应用时被丢弃。
	Generation int64

	// ResultFloor 结果可见下限。完整重算时抬升到新代数，
	// 从而孤立所有旧结果；仅刷新元数据时保持不动，
	// 旧的deep-dive/tag结果继续用于展示。
	ResultFloor int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDocument 创建新文档，代数从0开始
func NewDocument(collectionID, mainID, url, title string) *Document {
	now := time.Now()
	return &Document{
		ID:           "doc_" + uuid.New().String(),
		CollectionID: collectionID,
		MainID:       mainID,
		URL:          url,
		Title:        title,
		Generation:   0,
		ResultFloor:  0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate 验证文档
func (d *Document) Validate() error {
	if d.CollectionID == "" {
		return ErrInvalidCollectionID
	}
	if d.MainID == "" {
		return ErrInvalidMainID
	}
	return nil
}

// AcceptsGeneration 检查某代数的结果是否还能被接受。
// 只有当前代数的结果会写入；更旧的代数已被requeue取代。
func (d *Document) AcceptsGeneration(generation int64) bool {
	return generation == d.Generation
}

// RefreshMetadata 更新标题和URL
func (d *Document) RefreshMetadata(title, url string) {
	if title != "" {
		d.Title = title
	}
	if url != "" {
		d.URL = url
	}
	d.UpdatedAt = time.Now()
}
