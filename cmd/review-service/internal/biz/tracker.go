package biz

import (
	"context"
	"fmt"
	"sort"

	"docreview/cmd/review-service/internal/domain"
	"docreview/pkg/monitoring"

	"github.com/go-kratos/kratos/v2/log"
)

// TrackerUsecase 文档跟踪器。接收异步乱序到达的阶段结果，
// 并从各阶段的活动结果推导展示状态。
type TrackerUsecase struct {
	docRepo    domain.DocumentRepository
	resultRepo domain.StageResultRepository
	log        *log.Helper
}

// NewTrackerUsecase 创建文档跟踪器
func NewTrackerUsecase(
	docRepo domain.DocumentRepository,
	resultRepo domain.StageResultRepository,
	logger log.Logger,
) *TrackerUsecase {
	return &TrackerUsecase{
		docRepo:    docRepo,
		resultRepo: resultRepo,
		log:        log.NewHelper(log.With(logger, "module", "tracker")),
	}
}

// ApplyResult 应用一条阶段结果。只接受当前代数的结果；
// 旧代数的结果已被requeue取代，静默丢弃且不报错——
// 计算流水线可能仍在完成过期的工作，它的产出是惰性的。
func (uc *TrackerUsecase) ApplyResult(ctx context.Context, r *domain.StageResult) error {
	if err := r.Validate(); err != nil {
		return err
	}

	doc, err := uc.docRepo.GetByID(ctx, r.DocumentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if !doc.AcceptsGeneration(r.Generation) {
		monitoring.StageResultsStale.WithLabelValues(string(r.StageKind)).Inc()
		uc.log.WithContext(ctx).Debugf(
			"dropping stale %s result for document %s: generation %d, current %d",
			r.StageKind, r.DocumentID, r.Generation, doc.Generation,
		)
		return nil
	}

	if err := uc.resultRepo.Create(ctx, r); err != nil {
		return fmt.Errorf("save stage result: %w", err)
	}

	outcome := "success"
	if !r.Success {
		outcome = "failure"
	}
	monitoring.StageResultsApplied.WithLabelValues(string(r.StageKind), outcome).Inc()
	return nil
}

// ApplyMetadata 应用一条元数据刷新结果，metaOnly requeue的回传
// 走这里。和阶段结果一样按代数门控：旧代数的刷新静默丢弃。
func (uc *TrackerUsecase) ApplyMetadata(ctx context.Context, documentID string, generation int64, title, url string) error {
	doc, err := uc.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if !doc.AcceptsGeneration(generation) {
		monitoring.StageResultsStale.WithLabelValues("metadata").Inc()
		uc.log.WithContext(ctx).Debugf(
			"dropping stale metadata refresh for document %s: generation %d, current %d",
			documentID, generation, doc.Generation,
		)
		return nil
	}

	if err := uc.docRepo.UpdateMetadata(ctx, documentID, title, url); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	monitoring.StageResultsApplied.WithLabelValues("metadata", "success").Inc()
	return nil
}

// DocumentView 文档及其推导状态和活动结果，供查询和统计使用
type DocumentView struct {
	Document *domain.Document
	Status   domain.DocumentStatus
	Active   domain.ActiveResults
}

// ActiveTag 活动的标签值，没有成功的标签结果时返回空串
func (v *DocumentView) ActiveTag() string {
	if v.Active.Tag == nil || !v.Active.Tag.Success {
		return ""
	}
	if p, ok := v.Active.Tag.Payload.(domain.TagPayload); ok {
		return p.Tag
	}
	return ""
}

// ActiveScores 活动的评分，没有成功的评分结果时返回nil
func (v *DocumentView) ActiveScores() map[string]float64 {
	if v.Active.DeepDive == nil || !v.Active.DeepDive.Success {
		return nil
	}
	if p, ok := v.Active.DeepDive.Payload.(domain.DeepDivePayload); ok {
		return p.Scores
	}
	return nil
}

// ListOptions 文档列表选项
type ListOptions struct {
	TagFilter  string
	ByPriority bool // 按可操作性排序：complete < error < excluded < included < pending
	Offset     int
	Limit      int
}

// ListDocuments 列出集合的文档视图。排序和标签过滤需要
// 全量推导状态，因此先取整个集合再切片。
func (uc *TrackerUsecase) ListDocuments(ctx context.Context, collectionID string, opts ListOptions) ([]*DocumentView, int64, error) {
	views, err := uc.collectionViews(ctx, collectionID)
	if err != nil {
		return nil, 0, err
	}

	if opts.TagFilter != "" {
		filtered := views[:0]
		for _, v := range views {
			if v.ActiveTag() == opts.TagFilter {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	if opts.ByPriority {
		sort.Slice(views, func(i, j int) bool {
			pi, pj := domain.StatusPriority(views[i].Status), domain.StatusPriority(views[j].Status)
			if pi != pj {
				return pi < pj
			}
			return views[i].Document.ID < views[j].Document.ID
		})
	}

	total := int64(len(views))
	if opts.Offset > 0 {
		if opts.Offset >= len(views) {
			return nil, total, nil
		}
		views = views[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(views) {
		views = views[:opts.Limit]
	}
	return views, total, nil
}

// StatusCounts 集合内各状态的文档数
func (uc *TrackerUsecase) StatusCounts(ctx context.Context, collectionID string) (map[domain.DocumentStatus]int, int, error) {
	views, err := uc.collectionViews(ctx, collectionID)
	if err != nil {
		return nil, 0, err
	}
	counts := make(map[domain.DocumentStatus]int)
	for _, v := range views {
		counts[v.Status]++
	}
	return counts, len(views), nil
}

// ViewsByMainIDs 按外部文档ID取文档视图
func (uc *TrackerUsecase) ViewsByMainIDs(ctx context.Context, collectionID string, mainIDs []string) ([]*DocumentView, error) {
	docs, err := uc.docRepo.ListByMainIDs(ctx, collectionID, mainIDs)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return uc.buildViews(ctx, docs)
}

// collectionViews 取集合全部文档并推导状态
func (uc *TrackerUsecase) collectionViews(ctx context.Context, collectionID string) ([]*DocumentView, error) {
	docs, _, err := uc.docRepo.ListByCollection(ctx, collectionID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return uc.buildViews(ctx, docs)
}

func (uc *TrackerUsecase) buildViews(ctx context.Context, docs []*domain.Document) ([]*DocumentView, error) {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	resultsByDoc, err := uc.resultRepo.ListByDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}

	views := make([]*DocumentView, len(docs))
	for i, d := range docs {
		active := domain.NewActiveResults(d, resultsByDoc[d.ID])
		views[i] = &DocumentView{
			Document: d,
			Status:   domain.DeriveStatus(active),
			Active:   active,
		}
	}
	return views, nil
}
