package biz

import (
	"context"
	"sync"

	"docreview/cmd/review-service/internal/domain"
)

// 内存仓储，给用例测试用

type memCollectionRepo struct {
	mu          sync.Mutex
	collections map[string]*domain.Collection
}

func newMemCollectionRepo() *memCollectionRepo {
	return &memCollectionRepo{collections: make(map[string]*domain.Collection)}
}

func (r *memCollectionRepo) Create(ctx context.Context, c *domain.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.collections[c.ID] = &cp
	return nil
}

func (r *memCollectionRepo) GetByID(ctx context.Context, id string) (*domain.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[id]
	if !ok {
		return nil, domain.ErrCollectionNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCollectionRepo) List(ctx context.Context, ownerID string, offset, limit int) ([]*domain.Collection, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Collection
	for _, c := range r.collections {
		if ownerID == "" || c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memCollectionRepo) MarkPublic(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.collections[id]
	if !ok {
		return domain.ErrCollectionNotFound
	}
	c.IsPublic = true
	return nil
}

type memDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{docs: make(map[string]*domain.Document)}
}

func (r *memDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *memDocumentRepo) BatchCreate(ctx context.Context, docs []*domain.Document) error {
	for _, doc := range docs {
		if err := r.Create(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *memDocumentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (r *memDocumentRepo) GetByMainID(ctx context.Context, collectionID, mainID string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range r.docs {
		if doc.CollectionID == collectionID && doc.MainID == mainID {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, domain.ErrDocumentNotFound
}

func (r *memDocumentRepo) ListByCollection(ctx context.Context, collectionID string, offset, limit int) ([]*domain.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Document
	for _, doc := range r.docs {
		if doc.CollectionID == collectionID {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memDocumentRepo) ListByMainIDs(ctx context.Context, collectionID string, mainIDs []string) ([]*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[string]bool, len(mainIDs))
	for _, id := range mainIDs {
		wanted[id] = true
	}
	var out []*domain.Document
	for _, doc := range r.docs {
		if doc.CollectionID == collectionID && wanted[doc.MainID] {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memDocumentRepo) CompareAndSwapGeneration(ctx context.Context, id string, expected int64, bumpFloor bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return false, domain.ErrDocumentNotFound
	}
	if doc.Generation != expected {
		return false, nil
	}
	doc.Generation = expected + 1
	if bumpFloor {
		doc.ResultFloor = expected + 1
	}
	return true, nil
}

func (r *memDocumentRepo) UpdateMetadata(ctx context.Context, id, title, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	doc.RefreshMetadata(title, url)
	return nil
}

type memStageResultRepo struct {
	mu      sync.Mutex
	results []*domain.StageResult
}

func newMemStageResultRepo() *memStageResultRepo {
	return &memStageResultRepo{}
}

func (r *memStageResultRepo) Create(ctx context.Context, result *domain.StageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *result
	r.results = append(r.results, &cp)
	return nil
}

func (r *memStageResultRepo) ListByDocument(ctx context.Context, documentID string) ([]*domain.StageResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StageResult
	for _, res := range r.results {
		if res.DocumentID == documentID {
			cp := *res
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memStageResultRepo) ListByDocuments(ctx context.Context, documentIDs []string) (map[string][]*domain.StageResult, error) {
	out := make(map[string][]*domain.StageResult, len(documentIDs))
	for _, id := range documentIDs {
		results, _ := r.ListByDocument(ctx, id)
		if len(results) > 0 {
			out[id] = results
		}
	}
	return out, nil
}

type memTagGroupRepo struct {
	mu       sync.Mutex
	groups   map[string]*domain.TagGroup
	clusters []*domain.Cluster
}

func newMemTagGroupRepo() *memTagGroupRepo {
	return &memTagGroupRepo{groups: make(map[string]*domain.TagGroup)}
}

func (r *memTagGroupRepo) Create(ctx context.Context, g *domain.TagGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *g
	r.groups[g.ID] = &cp
	return nil
}

func (r *memTagGroupRepo) GetByID(ctx context.Context, id string) (*domain.TagGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, domain.ErrTagGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *memTagGroupRepo) GetByName(ctx context.Context, name string) (*domain.TagGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		if g.Name == name {
			cp := *g
			return &cp, nil
		}
	}
	return nil, domain.ErrTagGroupNotFound
}

func (r *memTagGroupRepo) List(ctx context.Context, offset, limit int) ([]*domain.TagGroup, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TagGroup
	for _, g := range r.groups {
		cp := *g
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *memTagGroupRepo) SaveVersion(ctx context.Context, groupID string, version int, clusters []*domain.Cluster, promote bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range clusters {
		cp := *c
		r.clusters = append(r.clusters, &cp)
	}
	if promote {
		g, ok := r.groups[groupID]
		if !ok {
			return domain.ErrTagGroupNotFound
		}
		g.CurrentVersion = version
	}
	return nil
}

func (r *memTagGroupRepo) NextVersion(ctx context.Context, groupID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, c := range r.clusters {
		if c.TagGroupID == groupID && c.Version > max {
			max = c.Version
		}
	}
	return max + 1, nil
}

func (r *memTagGroupRepo) ListClusters(ctx context.Context, groupID string, version int) ([]*domain.Cluster, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Cluster
	for _, c := range r.clusters {
		if c.TagGroupID == groupID && c.Version == version {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTagGroupRepo) GetClusterMembers(ctx context.Context, groupID string, version int, clusterKey string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clusters {
		if c.TagGroupID == groupID && c.Version == version && c.ClusterKey == clusterKey {
			return append([]string(nil), c.MemberMainIDs...), nil
		}
	}
	return nil, nil
}

func (r *memTagGroupRepo) AssignmentsFor(ctx context.Context, groupID string, version int, mainIDs []string) ([]*domain.ClusterAssignment, error) {
	clusters, _ := r.ListClusters(ctx, groupID, version)
	wanted := make(map[string]bool, len(mainIDs))
	for _, id := range mainIDs {
		wanted[id] = true
	}
	var out []*domain.ClusterAssignment
	for _, c := range clusters {
		for _, m := range c.MemberMainIDs {
			if len(wanted) > 0 && !wanted[m] {
				continue
			}
			out = append(out, &domain.ClusterAssignment{MainID: m, ClusterKey: c.ClusterKey})
		}
	}
	return out, nil
}

// captureDispatcher 记录派发的工作项
type captureDispatcher struct {
	mu    sync.Mutex
	items []*WorkItem
	err   error
}

func (d *captureDispatcher) Dispatch(ctx context.Context, items []*WorkItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.items = append(d.items, items...)
	return nil
}

func (d *captureDispatcher) dispatched() []*WorkItem {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*WorkItem(nil), d.items...)
}

// staticEmbeddingStore 返回固定向量集
type staticEmbeddingStore struct {
	embeddings []Embedding
	err        error
}

func (s *staticEmbeddingStore) FetchEmbeddings(ctx context.Context, bases []string) ([]Embedding, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.embeddings, nil
}
