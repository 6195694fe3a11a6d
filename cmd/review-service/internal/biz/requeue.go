package biz

import (
	"context"
	"fmt"

	"docreview/cmd/review-service/internal/domain"
	"docreview/pkg/monitoring"

	"github.com/go-kratos/kratos/v2/log"
)

// 默认的代数CAS重试上限。代数只会单调前进，失败几乎都意味着
// 并发方已替本次请求完成推进，循环很少走满。
const defaultCASMaxRetries = 8

// RequeueCoordinator 重新入队协调器。通过逐文档的代数CAS
// 保证并发的重复requeue收敛为一次代数推进。
type RequeueCoordinator struct {
	collectionRepo domain.CollectionRepository
	docRepo        domain.DocumentRepository
	tracker        *TrackerUsecase
	dispatcher     ComputeDispatcher
	casMaxRetries  int
	log            *log.Helper
}

// NewRequeueCoordinator 创建重新入队协调器
func NewRequeueCoordinator(
	collectionRepo domain.CollectionRepository,
	docRepo domain.DocumentRepository,
	tracker *TrackerUsecase,
	dispatcher ComputeDispatcher,
	logger log.Logger,
) *RequeueCoordinator {
	return &RequeueCoordinator{
		collectionRepo: collectionRepo,
		docRepo:        docRepo,
		tracker:        tracker,
		dispatcher:     dispatcher,
		casMaxRetries:  defaultCASMaxRetries,
		log:            log.NewHelper(log.With(logger, "module", "requeue")),
	}
}

// RequeueInput 重新入队请求
type RequeueInput struct {
	CollectionID string
	MainIDs      []string // 为空时作用于整个集合
	MetaOnly     bool     // 仅刷新标题/URL，不作废已有评分和标签
	ErrorOnly    bool     // 只处理当前状态为error的文档
}

// RequeueResult 重新入队结果
type RequeueResult struct {
	// Requeued 本次调用实际推进代数并派发的文档数
	Requeued int
	// Converged 代数已被并发调用推进、本次视为已满足的文档数
	Converged int
	// Generations 目标文档的最终代数
	Generations map[string]int64
}

// Requeue 重新入队。公开集合以readonly拒绝；errorOnly只圈定
// 当前推导状态为error的文档。每个目标文档做一次代数CAS推进，
// CAS输给并发方时采纳对方的新代数而不再重复推进或派发，
// 因此同一窗口内的N次并发requeue恰好产生一次代数提升。
func (c *RequeueCoordinator) Requeue(ctx context.Context, callerID string, in *RequeueInput) (*RequeueResult, error) {
	col, err := c.collectionRepo.GetByID(ctx, in.CollectionID)
	if err != nil {
		return nil, err
	}
	if err := col.CheckMutable(callerID); err != nil {
		return nil, err
	}

	targets, err := c.resolveTargets(ctx, in)
	if err != nil {
		return nil, err
	}

	mode := "full"
	if in.MetaOnly {
		mode = "meta_only"
	}

	result := &RequeueResult{Generations: make(map[string]int64, len(targets))}
	items := make([]*WorkItem, 0, len(targets))

	for _, doc := range targets {
		newGen, bumped, err := c.bumpGeneration(ctx, doc, in.MetaOnly)
		if err != nil {
			return nil, fmt.Errorf("bump generation for %s: %w", doc.MainID, err)
		}
		result.Generations[doc.MainID] = newGen
		if !bumped {
			result.Converged++
			continue
		}
		result.Requeued++

		item := &WorkItem{
			DocumentID:   doc.ID,
			CollectionID: doc.CollectionID,
			MainID:       doc.MainID,
			Generation:   newGen,
			MetaOnly:     in.MetaOnly,
		}
		if !in.MetaOnly {
			item.Kinds = domain.AllStageKinds
		}
		items = append(items, item)
	}

	if len(items) > 0 {
		if err := c.dispatcher.Dispatch(ctx, items); err != nil {
			// 代数已推进，结果窗口已经翻页；派发失败的文档
			// 停留在pending，再次requeue即可补发
			c.log.WithContext(ctx).Errorf("failed to dispatch %d work items: %v", len(items), err)
			return result, fmt.Errorf("dispatch work items: %w", err)
		}
		monitoring.WorkItemsDispatched.WithLabelValues(mode).Add(float64(len(items)))
	}

	monitoring.RequeuesTotal.WithLabelValues(mode).Inc()
	c.log.WithContext(ctx).Infof(
		"requeue on collection %s: targets=%d requeued=%d converged=%d mode=%s errorOnly=%v",
		in.CollectionID, len(targets), result.Requeued, result.Converged, mode, in.ErrorOnly,
	)
	return result, nil
}

// bumpGeneration 代数CAS推进。返回最终代数和本调用是否是推进者。
// 完整重算同时抬升结果可见下限（作废旧结果）；metaOnly不抬升，
// 旧的评分/标签结果继续展示。
func (c *RequeueCoordinator) bumpGeneration(ctx context.Context, doc *domain.Document, metaOnly bool) (int64, bool, error) {
	expected := doc.Generation
	for attempt := 0; attempt < c.casMaxRetries; attempt++ {
		ok, err := c.docRepo.CompareAndSwapGeneration(ctx, doc.ID, expected, !metaOnly)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return expected + 1, true, nil
		}

		monitoring.RequeueCASRetries.Inc()
		cur, err := c.docRepo.GetByID(ctx, doc.ID)
		if err != nil {
			return 0, false, err
		}
		if cur.Generation > expected {
			// 并发requeue已推进代数，本次请求的意图已被满足
			return cur.Generation, false, nil
		}
		expected = cur.Generation
	}
	return 0, false, fmt.Errorf("generation CAS exhausted %d retries for document %s", c.casMaxRetries, doc.ID)
}

// resolveTargets 圈定目标文档集
func (c *RequeueCoordinator) resolveTargets(ctx context.Context, in *RequeueInput) ([]*domain.Document, error) {
	var views []*DocumentView
	var err error
	if len(in.MainIDs) > 0 {
		views, err = c.tracker.ViewsByMainIDs(ctx, in.CollectionID, in.MainIDs)
	} else {
		views, err = c.tracker.collectionViews(ctx, in.CollectionID)
	}
	if err != nil {
		return nil, err
	}

	docs := make([]*domain.Document, 0, len(views))
	for _, v := range views {
		if in.ErrorOnly && v.Status != domain.StatusError {
			continue
		}
		docs = append(docs, v.Document)
	}
	return docs, nil
}
