package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"google.golang.org/protobuf/types/known/timestamppb"

	"docreview/cmd/review-service/internal/biz"
	"docreview/cmd/review-service/internal/domain"
)

// 临时定义，实际应该从proto生成
type CreateCollectionRequest struct {
	CallerID string
	Name     string
}

type CollectionResponse struct {
	ID        string
	OwnerID   string
	Name      string
	IsPublic  bool
	CreatedAt *timestamppb.Timestamp
}

type ListCollectionsRequest struct {
	OwnerID string
	Offset  int32
	Limit   int32
}

type ListCollectionsResponse struct {
	Collections []*CollectionResponse
	Total       int64
}

type SetCollectionVisibilityRequest struct {
	CallerID     string
	CollectionID string
	IsPublic     bool
}

type AddDocumentsRequest struct {
	CallerID     string
	CollectionID string
	Documents    []*DocumentInput
}

type DocumentInput struct {
	MainID string
	URL    string
	Title  string
}

type AddDocumentsResponse struct {
	Documents []*DocumentResponse
}

type DocumentResponse struct {
	ID           string
	CollectionID string
	MainID       string
	URL          string
	Title        string
	Generation   int64
	Status       string
	Tag          string
	Scores       map[string]float64
	CreatedAt    *timestamppb.Timestamp
}

type ListDocumentsRequest struct {
	CollectionID string
	TagFilter    string
	ByPriority   bool
	Offset       int32
	Limit        int32
}

type ListDocumentsResponse struct {
	Documents []*DocumentResponse
	Total     int64
}

type StatusCountsRequest struct {
	CollectionID string
}

type StatusCountsResponse struct {
	Counts map[string]int32
	Total  int32
}

type RequeueRequest struct {
	CallerID     string
	CollectionID string
	MainIDs      []string
	MetaOnly     bool
	ErrorOnly    bool
}

type RequeueResponse struct {
	Requeued    int32
	Converged   int32
	Generations map[string]int64
}

type CreateTagGroupRequest struct {
	Name              string
	Bases             []string
	NClusters         *int
	DistanceThreshold *float64
	IsUpdating        bool
}

type TagGroupResponse struct {
	ID             string
	Name           string
	CurrentVersion int32
	Bases          []string
	IsUpdating     bool
	CreatedAt      *timestamppb.Timestamp
}

type ListTagGroupsRequest struct {
	Offset int32
	Limit  int32
}

type ListTagGroupsResponse struct {
	TagGroups []*TagGroupResponse
	Total     int64
}

type RecomputeTagGroupRequest struct {
	TagGroup string // ID或名称
}

type RecomputeTagGroupResponse struct {
	TagGroup *TagGroupResponse
	Version  int32
}

type ListClustersRequest struct {
	TagGroup string
}

type ListClustersResponse struct {
	TagGroup *TagGroupResponse
	Clusters []*ClusterSummaryResponse
}

type ClusterSummaryResponse struct {
	ClusterKey  string
	MemberCount int32
}

type ClusterDocumentsRequest struct {
	TagGroup     string
	ClusterKey   string
	CollectionID string
}

type ClusterDocumentsResponse struct {
	Documents []*DocumentResponse
}

type AggregatedStatsRequest struct {
	CollectionID string
	Axes         []string
	TagFilter    string
}

type AxisStatsResponse struct {
	Mean   float64
	StdDev float64
	Count  int32
	CIMin  float64
	CIMax  float64
}

type AggregatedStatsResponse struct {
	Axes map[string]*AxisStatsResponse
}

type CompareStatsRequest struct {
	CollectionIDs []string
	Axes          []string
	TagFilter     string
	Normalization string // "absolute" 或 "relative"
}

type ScaledAxisStatsResponse struct {
	AxisStatsResponse
	ScaledMean  float64
	ScaledCIMin float64
	ScaledCIMax float64
}

type SetStatsResponse struct {
	CollectionID string
	Axes         map[string]*ScaledAxisStatsResponse
	Divisor      float64
}

type CompareStatsResponse struct {
	Sets []*SetStatsResponse
}

// ReviewService 文档评审协调服务
type ReviewService struct {
	collectionUC *biz.CollectionUsecase
	trackerUC    *biz.TrackerUsecase
	requeueUC    *biz.RequeueCoordinator
	tagGroupUC   *biz.TagGroupUsecase
	stats        *biz.StatsAggregator
	log          *log.Helper
}

// NewReviewService 创建评审服务
func NewReviewService(
	collectionUC *biz.CollectionUsecase,
	trackerUC *biz.TrackerUsecase,
	requeueUC *biz.RequeueCoordinator,
	tagGroupUC *biz.TagGroupUsecase,
	stats *biz.StatsAggregator,
	logger log.Logger,
) *ReviewService {
	return &ReviewService{
		collectionUC: collectionUC,
		trackerUC:    trackerUC,
		requeueUC:    requeueUC,
		tagGroupUC:   tagGroupUC,
		stats:        stats,
		log:          log.NewHelper(logger),
	}
}

// CreateCollection 创建集合
func (s *ReviewService) CreateCollection(ctx context.Context, req *CreateCollectionRequest) (*CollectionResponse, error) {
	c, err := s.collectionUC.CreateCollection(ctx, req.CallerID, req.Name)
	if err != nil {
		s.log.WithContext(ctx).Errorf("failed to create collection: %v", err)
		return nil, err
	}
	return s.toCollectionResponse(c), nil
}

// GetCollection 获取集合
func (s *ReviewService) GetCollection(ctx context.Context, id string) (*CollectionResponse, error) {
	c, err := s.collectionUC.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toCollectionResponse(c), nil
}

// ListCollections 列出集合
func (s *ReviewService) ListCollections(ctx context.Context, req *ListCollectionsRequest) (*ListCollectionsResponse, error) {
	collections, total, err := s.collectionUC.ListCollections(ctx, req.OwnerID, int(req.Offset), int(req.Limit))
	if err != nil {
		return nil, err
	}

	resp := &ListCollectionsResponse{Total: total}
	for _, c := range collections {
		resp.Collections = append(resp.Collections, s.toCollectionResponse(c))
	}
	return resp, nil
}

// SetCollectionVisibility 设置集合可见性。公开是单向操作。
func (s *ReviewService) SetCollectionVisibility(ctx context.Context, req *SetCollectionVisibilityRequest) (*CollectionResponse, error) {
	c, err := s.collectionUC.SetVisibility(ctx, req.CallerID, req.CollectionID, req.IsPublic)
	if err != nil {
		s.log.WithContext(ctx).Errorf("failed to set collection visibility: %v", err)
		return nil, err
	}
	return s.toCollectionResponse(c), nil
}

// AddDocuments 向集合添加文档并派发初始计算
func (s *ReviewService) AddDocuments(ctx context.Context, req *AddDocumentsRequest) (*AddDocumentsResponse, error) {
	inputs := make([]*biz.AddDocumentInput, 0, len(req.Documents))
	for _, d := range req.Documents {
		inputs = append(inputs, &biz.AddDocumentInput{
			MainID: d.MainID,
			URL:    d.URL,
			Title:  d.Title,
		})
	}

	docs, err := s.collectionUC.AddDocuments(ctx, req.CallerID, req.CollectionID, inputs)
	if err != nil {
		s.log.WithContext(ctx).Errorf("failed to add documents: %v", err)
		return nil, err
	}

	resp := &AddDocumentsResponse{}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, &DocumentResponse{
			ID:           doc.ID,
			CollectionID: doc.CollectionID,
			MainID:       doc.MainID,
			URL:          doc.URL,
			Title:        doc.Title,
			Generation:   doc.Generation,
			Status:       string(domain.StatusPending),
			CreatedAt:    timestamppb.New(doc.CreatedAt),
		})
	}
	return resp, nil
}

// ListDocuments 列出集合文档及推导状态
func (s *ReviewService) ListDocuments(ctx context.Context, req *ListDocumentsRequest) (*ListDocumentsResponse, error) {
	views, total, err := s.trackerUC.ListDocuments(ctx, req.CollectionID, biz.ListOptions{
		TagFilter:  req.TagFilter,
		ByPriority: req.ByPriority,
		Offset:     int(req.Offset),
		Limit:      int(req.Limit),
	})
	if err != nil {
		return nil, err
	}

	resp := &ListDocumentsResponse{Total: total}
	for _, v := range views {
		resp.Documents = append(resp.Documents, s.toDocumentResponse(v))
	}
	return resp, nil
}

// GetStatusCounts 集合内各状态的文档数
func (s *ReviewService) GetStatusCounts(ctx context.Context, req *StatusCountsRequest) (*StatusCountsResponse, error) {
	counts, total, err := s.trackerUC.StatusCounts(ctx, req.CollectionID)
	if err != nil {
		return nil, err
	}

	resp := &StatusCountsResponse{
		Counts: make(map[string]int32, len(counts)),
		Total:  int32(total),
	}
	for status, n := range counts {
		resp.Counts[string(status)] = int32(n)
	}
	return resp, nil
}

// Requeue 重新入队文档
func (s *ReviewService) Requeue(ctx context.Context, req *RequeueRequest) (*RequeueResponse, error) {
	result, err := s.requeueUC.Requeue(ctx, req.CallerID, &biz.RequeueInput{
		CollectionID: req.CollectionID,
		MainIDs:      req.MainIDs,
		MetaOnly:     req.MetaOnly,
		ErrorOnly:    req.ErrorOnly,
	})
	if err != nil {
		s.log.WithContext(ctx).Errorf("failed to requeue: %v", err)
		return nil, err
	}

	return &RequeueResponse{
		Requeued:    int32(result.Requeued),
		Converged:   int32(result.Converged),
		Generations: result.Generations,
	}, nil
}

// CreateTagGroup 创建标签组并在后台跑首次聚类
func (s *ReviewService) CreateTagGroup(ctx context.Context, req *CreateTagGroupRequest) (*TagGroupResponse, error) {
	params := domain.ClusterParams{
		NClusters:         req.NClusters,
		DistanceThreshold: req.DistanceThreshold,
	}

	group, err := s.tagGroupUC.CreateTagGroup(ctx, req.Name, req.Bases, params, req.IsUpdating)
	if err != nil {
		s.log.WithContext(ctx).Errorf("failed to create tag group: %v", err)
		return nil, err
	}

	// 聚类耗时较长，异步执行；结果通过版本指针发布
	go func() {
		ctx := context.Background()
		if _, _, err := s.tagGroupUC.RunClustering(ctx, group.ID); err != nil {
			s.log.Errorf("initial clustering failed for tag group %s: %v", group.ID, err)
		}
	}()

	return s.toTagGroupResponse(group), nil
}

// GetTagGroup 按ID或名称获取标签组
func (s *ReviewService) GetTagGroup(ctx context.Context, idOrName string) (*TagGroupResponse, error) {
	group, err := s.tagGroupUC.GetTagGroup(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	return s.toTagGroupResponse(group), nil
}

// ListTagGroups 列出标签组
func (s *ReviewService) ListTagGroups(ctx context.Context, req *ListTagGroupsRequest) (*ListTagGroupsResponse, error) {
	groups, total, err := s.tagGroupUC.ListTagGroups(ctx, int(req.Offset), int(req.Limit))
	if err != nil {
		return nil, err
	}

	resp := &ListTagGroupsResponse{Total: total}
	for _, g := range groups {
		resp.TagGroups = append(resp.TagGroups, s.toTagGroupResponse(g))
	}
	return resp, nil
}

// RecomputeTagGroup 按原参数重算并发布新版本
func (s *ReviewService) RecomputeTagGroup(ctx context.Context, req *RecomputeTagGroupRequest) (*RecomputeTagGroupResponse, error) {
	group, version, err := s.tagGroupUC.RecomputeTagGroup(ctx, req.TagGroup)
	if err != nil {
		s.log.WithContext(ctx).Errorf("failed to recompute tag group: %v", err)
		return nil, err
	}
	return &RecomputeTagGroupResponse{
		TagGroup: s.toTagGroupResponse(group),
		Version:  int32(version),
	}, nil
}

// ListClusters 列出current版本的簇概要
func (s *ReviewService) ListClusters(ctx context.Context, req *ListClustersRequest) (*ListClustersResponse, error) {
	group, summaries, err := s.tagGroupUC.CurrentClusters(ctx, req.TagGroup)
	if err != nil {
		return nil, err
	}

	resp := &ListClustersResponse{TagGroup: s.toTagGroupResponse(group)}
	for _, summary := range summaries {
		resp.Clusters = append(resp.Clusters, &ClusterSummaryResponse{
			ClusterKey:  summary.ClusterKey,
			MemberCount: int32(summary.MemberCount),
		})
	}
	return resp, nil
}

// GetClusterDocuments 获取某簇成员在指定集合里的文档视图
func (s *ReviewService) GetClusterDocuments(ctx context.Context, req *ClusterDocumentsRequest) (*ClusterDocumentsResponse, error) {
	members, err := s.tagGroupUC.ClusterMembers(ctx, req.TagGroup, req.ClusterKey)
	if err != nil {
		return nil, err
	}

	views, err := s.trackerUC.ViewsByMainIDs(ctx, req.CollectionID, members)
	if err != nil {
		return nil, err
	}

	resp := &ClusterDocumentsResponse{}
	for _, v := range views {
		resp.Documents = append(resp.Documents, s.toDocumentResponse(v))
	}
	return resp, nil
}

// GetAggregatedStats 集合的维度统计
func (s *ReviewService) GetAggregatedStats(ctx context.Context, req *AggregatedStatsRequest) (*AggregatedStatsResponse, error) {
	views, _, err := s.trackerUC.ListDocuments(ctx, req.CollectionID, biz.ListOptions{})
	if err != nil {
		return nil, err
	}

	stats := s.stats.Aggregate(views, req.Axes, req.TagFilter)
	resp := &AggregatedStatsResponse{Axes: make(map[string]*AxisStatsResponse, len(stats))}
	for axis, st := range stats {
		resp.Axes[axis] = toAxisStatsResponse(st)
	}
	return resp, nil
}

// CompareStats 多集合的归一化统计对比
func (s *ReviewService) CompareStats(ctx context.Context, req *CompareStatsRequest) (*CompareStatsResponse, error) {
	mode := biz.NormalizationAbsolute
	if req.Normalization == string(biz.NormalizationRelative) {
		mode = biz.NormalizationRelative
	}

	sets := make([][]*biz.DocumentView, 0, len(req.CollectionIDs))
	for _, collectionID := range req.CollectionIDs {
		views, _, err := s.trackerUC.ListDocuments(ctx, collectionID, biz.ListOptions{})
		if err != nil {
			return nil, err
		}
		sets = append(sets, views)
	}

	results := s.stats.Compare(sets, req.Axes, req.TagFilter, mode)
	resp := &CompareStatsResponse{}
	for i, set := range results {
		setResp := &SetStatsResponse{
			CollectionID: req.CollectionIDs[i],
			Axes:         make(map[string]*ScaledAxisStatsResponse, len(set.Axes)),
			Divisor:      set.Divisor,
		}
		for axis, st := range set.Axes {
			setResp.Axes[axis] = &ScaledAxisStatsResponse{
				AxisStatsResponse: *toAxisStatsResponse(&st.AxisStats),
				ScaledMean:        st.ScaledMean,
				ScaledCIMin:       st.ScaledCIMin,
				ScaledCIMax:       st.ScaledCIMax,
			}
		}
		resp.Sets = append(resp.Sets, setResp)
	}
	return resp, nil
}

func (s *ReviewService) toCollectionResponse(c *domain.Collection) *CollectionResponse {
	return &CollectionResponse{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		IsPublic:  c.IsPublic,
		CreatedAt: timestamppb.New(c.CreatedAt),
	}
}

func (s *ReviewService) toDocumentResponse(v *biz.DocumentView) *DocumentResponse {
	return &DocumentResponse{
		ID:           v.Document.ID,
		CollectionID: v.Document.CollectionID,
		MainID:       v.Document.MainID,
		URL:          v.Document.URL,
		Title:        v.Document.Title,
		Generation:   v.Document.Generation,
		Status:       string(v.Status),
		Tag:          v.ActiveTag(),
		Scores:       v.ActiveScores(),
		CreatedAt:    timestamppb.New(v.Document.CreatedAt),
	}
}

func (s *ReviewService) toTagGroupResponse(g *domain.TagGroup) *TagGroupResponse {
	return &TagGroupResponse{
		ID:             g.ID,
		Name:           g.Name,
		CurrentVersion: int32(g.CurrentVersion),
		Bases:          g.Bases,
		IsUpdating:     g.IsUpdating,
		CreatedAt:      timestamppb.New(g.CreatedAt),
	}
}

func toAxisStatsResponse(st *biz.AxisStats) *AxisStatsResponse {
	return &AxisStatsResponse{
		Mean:   st.Mean,
		StdDev: st.StdDev,
		Count:  int32(st.Count),
		CIMin:  st.CIMin,
		CIMax:  st.CIMax,
	}
}
