package biz

import (
	"context"
	"fmt"

	"docreview/cmd/review-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// CollectionUsecase 集合注册表用例。所有变更操作在这里做
// 所有权和只读门控；读取不受限。
type CollectionUsecase struct {
	collectionRepo domain.CollectionRepository
	docRepo        domain.DocumentRepository
	dispatcher     ComputeDispatcher
	log            *log.Helper
}

// NewCollectionUsecase 创建集合用例
func NewCollectionUsecase(
	collectionRepo domain.CollectionRepository,
	docRepo domain.DocumentRepository,
	dispatcher ComputeDispatcher,
	logger log.Logger,
) *CollectionUsecase {
	return &CollectionUsecase{
		collectionRepo: collectionRepo,
		docRepo:        docRepo,
		dispatcher:     dispatcher,
		log:            log.NewHelper(log.With(logger, "module", "collection-usecase")),
	}
}

// CreateCollection 创建集合
func (uc *CollectionUsecase) CreateCollection(ctx context.Context, ownerID, name string) (*domain.Collection, error) {
	c := domain.NewCollection(ownerID, name)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := uc.collectionRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return c, nil
}

// GetCollection 获取集合
func (uc *CollectionUsecase) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	return uc.collectionRepo.GetByID(ctx, id)
}

// ListCollections 列出集合。ownerID为空时列出全部。
func (uc *CollectionUsecase) ListCollections(ctx context.Context, ownerID string, offset, limit int) ([]*domain.Collection, int64, error) {
	return uc.collectionRepo.List(ctx, ownerID, offset, limit)
}

// SetVisibility 设置集合可见性。只有所有者可以调用；
// 集合一旦公开即永久只读，之后任何人（包括所有者）的
// 变更调用都以readonly拒绝。可见性不可回退。
func (uc *CollectionUsecase) SetVisibility(ctx context.Context, callerID, collectionID string, isPublic bool) (*domain.Collection, error) {
	c, err := uc.collectionRepo.GetByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if err := c.CheckMutable(callerID); err != nil {
		return nil, err
	}
	if !isPublic {
		// 集合本来就是私有的，无事可做
		return c, nil
	}

	if err := uc.collectionRepo.MarkPublic(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("mark collection public: %w", err)
	}
	c.Publish()

	uc.log.WithContext(ctx).Infof("collection %s published by %s, now readonly", collectionID, callerID)
	return c, nil
}

// AddDocumentInput 添加文档输入
type AddDocumentInput struct {
	MainID string
	URL    string
	Title  string
}

// AddDocuments 向集合添加文档：文档以代数0落库，
// 随后为每个文档派发一套初始计算工作。
func (uc *CollectionUsecase) AddDocuments(ctx context.Context, callerID, collectionID string, inputs []*AddDocumentInput) ([]*domain.Document, error) {
	c, err := uc.collectionRepo.GetByID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if err := c.CheckMutable(callerID); err != nil {
		return nil, err
	}

	docs := make([]*domain.Document, 0, len(inputs))
	for _, in := range inputs {
		doc := domain.NewDocument(collectionID, in.MainID, in.URL, in.Title)
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("document %q: %w", in.MainID, err)
		}
		docs = append(docs, doc)
	}

	if err := uc.docRepo.BatchCreate(ctx, docs); err != nil {
		return nil, fmt.Errorf("create documents: %w", err)
	}

	items := make([]*WorkItem, len(docs))
	for i, doc := range docs {
		items[i] = &WorkItem{
			DocumentID:   doc.ID,
			CollectionID: doc.CollectionID,
			MainID:       doc.MainID,
			Generation:   doc.Generation,
			Kinds:        domain.AllStageKinds,
		}
	}
	if err := uc.dispatcher.Dispatch(ctx, items); err != nil {
		// 文档已落库；派发失败的文档停留在pending，可由requeue补发
		uc.log.WithContext(ctx).Errorf("failed to dispatch initial work for collection %s: %v", collectionID, err)
		return docs, fmt.Errorf("dispatch initial work: %w", err)
	}

	uc.log.WithContext(ctx).Infof("added %d documents to collection %s", len(docs), collectionID)
	return docs, nil
}
