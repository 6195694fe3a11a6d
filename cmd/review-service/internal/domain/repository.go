package domain

import (
	"context"
)

// CollectionRepository 集合仓储接口
type CollectionRepository interface {
	// Create 创建集合
	Create(ctx context.Context, c *Collection) error

	// GetByID 根据ID获取集合
	GetByID(ctx context.Context, id string) (*Collection, error)

	// List 列出集合
	List(ctx context.Context, ownerID string, offset, limit int) ([]*Collection, int64, error)

	// MarkPublic 将集合置为公开。公开单向不可逆，
	// 仓储层只允许false→true的翻转。
	MarkPublic(ctx context.Context, id string) error
}

// DocumentRepository 文档仓储接口
type DocumentRepository interface {
	// Create 创建文档
	Create(ctx context.Context, doc *Document) error

	// BatchCreate 批量创建文档
	BatchCreate(ctx context.Context, docs []*Document) error

	// GetByID 根据ID获取文档
	GetByID(ctx context.Context, id string) (*Document, error)

	// GetByMainID 根据集合和外部文档ID获取文档
	GetByMainID(ctx context.Context, collectionID, mainID string) (*Document, error)

	// ListByCollection 获取集合的文档列表
	ListByCollection(ctx context.Context, collectionID string, offset, limit int) ([]*Document, int64, error)

	// ListByMainIDs 按外部文档ID批量获取
	ListByMainIDs(ctx context.Context, collectionID string, mainIDs []string) ([]*Document, error)

	// CompareAndSwapGeneration 代数CAS：仅当当前代数等于expected时
	// 将代数置为expected+1（bumpFloor为真时同时抬升ResultFloor）。
	// 返回是否交换成功；失败表示并发方已先行推进。
	CompareAndSwapGeneration(ctx context.Context, id string, expected int64, bumpFloor bool) (bool, error)

	// UpdateMetadata 更新标题/URL
	UpdateMetadata(ctx context.Context, id, title, url string) error
}

// StageResultRepository 阶段结果仓储接口。结果只增不改，保留全部历史。
type StageResultRepository interface {
	// Create 追加一条阶段结果
	Create(ctx context.Context, r *StageResult) error

	// ListByDocument 获取文档的全部历史结果
	ListByDocument(ctx context.Context, documentID string) ([]*StageResult, error)

	// ListByDocuments 批量获取多个文档的历史结果
	ListByDocuments(ctx context.Context, documentIDs []string) (map[string][]*StageResult, error)
}

// TagGroupRepository 标签组仓储接口
type TagGroupRepository interface {
	// Create 创建标签组
	Create(ctx context.Context, g *TagGroup) error

	// GetByID 根据ID获取标签组
	GetByID(ctx context.Context, id string) (*TagGroup, error)

	// GetByName 根据名称获取标签组
	GetByName(ctx context.Context, name string) (*TagGroup, error)

	// List 列出全部标签组
	List(ctx context.Context, offset, limit int) ([]*TagGroup, int64, error)

	// SaveVersion 保存一个完整版本的全部簇，并在promote为真时
	// 原子推进current指针。读者要么看到旧版本要么看到新版本。
	SaveVersion(ctx context.Context, groupID string, version int, clusters []*Cluster, promote bool) error

	// NextVersion 下一个版本号（已有最大版本+1，含未发布版本）
	NextVersion(ctx context.Context, groupID string) (int, error)

	// ListClusters 获取某版本的全部簇
	ListClusters(ctx context.Context, groupID string, version int) ([]*Cluster, error)

	// GetClusterMembers 获取某版本某簇的成员
	GetClusterMembers(ctx context.Context, groupID string, version int, clusterKey string) ([]string, error)

	// AssignmentsFor 获取某版本下指定文档的簇归属
	AssignmentsFor(ctx context.Context, groupID string, version int, mainIDs []string) ([]*ClusterAssignment, error)
}
