package biz

import (
	"context"

	"docreview/cmd/review-service/internal/domain"
)

// WorkItem 派发给外部计算流水线的一项工作。
// Generation用于让流水线的回传结果携带代数，
// 旧代数的回传会被Tracker直接丢弃。
type WorkItem struct {
	DocumentID   string             `json:"document_id"`
	CollectionID string             `json:"collection_id"`
	MainID       string             `json:"main_id"`
	Generation   int64              `json:"generation"`
	Kinds        []domain.StageKind `json:"kinds"`
	MetaOnly     bool               `json:"meta_only"`
}

// ComputeDispatcher 外部计算流水线的派发接口。
// 计算引擎（打分、抽取、聚类打标）是协作方，这里只定义契约。
type ComputeDispatcher interface {
	// Dispatch 派发一批工作项
	Dispatch(ctx context.Context, items []*WorkItem) error
}

// EmbeddingStore 外部向量库接口，为聚类提供文档向量
type EmbeddingStore interface {
	// FetchEmbeddings 按来源拉取文档向量
	FetchEmbeddings(ctx context.Context, bases []string) ([]Embedding, error)
}

// Embedding 一个文档的向量
type Embedding struct {
	MainID string
	Vector []float32
}
