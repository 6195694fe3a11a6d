package biz

import (
	"context"
	"sync"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docreview/cmd/review-service/internal/domain"
)

type requeueFixture struct {
	collectionRepo *memCollectionRepo
	docRepo        *memDocumentRepo
	resultRepo     *memStageResultRepo
	tracker        *TrackerUsecase
	dispatcher     *captureDispatcher
	coordinator    *RequeueCoordinator
	collection     *domain.Collection
}

func newRequeueFixture(t *testing.T) *requeueFixture {
	t.Helper()
	logger := log.NewStdLogger(testWriter{})
	f := &requeueFixture{
		collectionRepo: newMemCollectionRepo(),
		docRepo:        newMemDocumentRepo(),
		resultRepo:     newMemStageResultRepo(),
		dispatcher:     &captureDispatcher{},
	}
	f.tracker = NewTrackerUsecase(f.docRepo, f.resultRepo, logger)
	f.coordinator = NewRequeueCoordinator(f.collectionRepo, f.docRepo, f.tracker, f.dispatcher, logger)

	f.collection = domain.NewCollection("user-1", "screening")
	require.NoError(t, f.collectionRepo.Create(context.Background(), f.collection))
	return f
}

func TestRequeueBumpsGenerationAndDispatches(t *testing.T) {
	ctx := context.Background()
	f := newRequeueFixture(t)
	doc := seedDocument(t, f.docRepo, f.collection.ID, "main-1")

	result, err := f.coordinator.Requeue(ctx, "user-1", &RequeueInput{CollectionID: f.collection.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Requeued)
	assert.Equal(t, 0, result.Converged)
	assert.Equal(t, int64(1), result.Generations["main-1"])

	items := f.dispatcher.dispatched()
	require.Len(t, items, 1)
	assert.Equal(t, doc.ID, items[0].DocumentID)
	assert.Equal(t, int64(1), items[0].Generation)
	assert.Equal(t, domain.AllStageKinds, items[0].Kinds)
	assert.False(t, items[0].MetaOnly)

	// 完整重算抬升结果下限，旧结果全部出窗
	stored, err := f.docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Generation)
	assert.Equal(t, int64(1), stored.ResultFloor)
}

func TestRequeueMetaOnlyKeepsOldResultsVisible(t *testing.T) {
	ctx := context.Background()
	f := newRequeueFixture(t)
	doc := seedDocument(t, f.docRepo, f.collection.ID, "main-1")

	// 代数0的完整结果
	require.NoError(t, f.tracker.ApplyResult(ctx,
		domain.NewStageResult(doc.ID, 0, domain.VerifyPayload{IsValid: true})))
	require.NoError(t, f.tracker.ApplyResult(ctx,
		domain.NewStageResult(doc.ID, 0, domain.DeepDivePayload{Scores: map[string]float64{"rigor": 3}})))
	require.NoError(t, f.tracker.ApplyResult(ctx,
		domain.NewStageResult(doc.ID, 0, domain.TagPayload{Tag: "methods"})))

	result, err := f.coordinator.Requeue(ctx, "user-1", &RequeueInput{
		CollectionID: f.collection.ID,
		MetaOnly:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Requeued)

	// metaOnly不抬升ResultFloor：旧评分和标签仍然活动
	views, _, err := f.tracker.ListDocuments(ctx, f.collection.ID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusComplete, views[0].Status)
	assert.Equal(t, "methods", views[0].ActiveTag())

	items := f.dispatcher.dispatched()
	require.Len(t, items, 1)
	assert.True(t, items[0].MetaOnly)
	assert.Empty(t, items[0].Kinds)
}

func TestRequeueFullOrphansOldResults(t *testing.T) {
	ctx := context.Background()
	f := newRequeueFixture(t)
	doc := seedDocument(t, f.docRepo, f.collection.ID, "main-1")

	require.NoError(t, f.tracker.ApplyResult(ctx,
		domain.NewStageResult(doc.ID, 0, domain.VerifyPayload{IsValid: true})))
	require.NoError(t, f.tracker.ApplyResult(ctx,
		domain.NewStageResult(doc.ID, 0, domain.DeepDivePayload{Scores: map[string]float64{"rigor": 3}})))

	_, err := f.coordinator.Requeue(ctx, "user-1", &RequeueInput{CollectionID: f.collection.ID})
	require.NoError(t, err)

	// 历史保留但不再活动，文档回到pending
	views, _, err := f.tracker.ListDocuments(ctx, f.collection.ID, ListOptions{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusPending, views[0].Status)

	history, err := f.resultRepo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "history is append-only")
}

func TestRequeueErrorOnlyTargetsErrorDocuments(t *testing.T) {
	ctx := context.Background()
	f := newRequeueFixture(t)
	okDoc := seedDocument(t, f.docRepo, f.collection.ID, "main-ok")
	errDoc := seedDocument(t, f.docRepo, f.collection.ID, "main-err")

	require.NoError(t, f.tracker.ApplyResult(ctx,
		domain.NewStageResult(okDoc.ID, 0, domain.VerifyPayload{IsValid: true})))
	require.NoError(t, f.tracker.ApplyResult(ctx,
		domain.NewFailedStageResult(errDoc.ID, 0, domain.StageVerify, "timeout")))

	result, err := f.coordinator.Requeue(ctx, "user-1", &RequeueInput{
		CollectionID: f.collection.ID,
		ErrorOnly:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Requeued)
	assert.Contains(t, result.Generations, "main-err")
	assert.NotContains(t, result.Generations, "main-ok")
}

func TestRequeueRejectedForPublicCollection(t *testing.T) {
	ctx := context.Background()
	f := newRequeueFixture(t)
	seedDocument(t, f.docRepo, f.collection.ID, "main-1")

	require.NoError(t, f.collectionRepo.MarkPublic(ctx, f.collection.ID))

	_, err := f.coordinator.Requeue(ctx, "user-1", &RequeueInput{CollectionID: f.collection.ID})
	assert.ErrorIs(t, err, domain.ErrCollectionReadonly)
	assert.Empty(t, f.dispatcher.dispatched())
}

func TestRequeueRejectedForNonOwner(t *testing.T) {
	ctx := context.Background()
	f := newRequeueFixture(t)
	seedDocument(t, f.docRepo, f.collection.ID, "main-1")

	_, err := f.coordinator.Requeue(ctx, "user-2", &RequeueInput{CollectionID: f.collection.ID})
	assert.ErrorIs(t, err, domain.ErrNotOwner)
}

func TestConcurrentBumpGenerationExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newRequeueFixture(t)
	doc := seedDocument(t, f.docRepo, f.collection.ID, "main-1")

	// N个并发调用基于同一个代数快照：恰好一个推进成功，
	// 其余采纳胜者的新代数
	const n = 8
	type outcome struct {
		gen    int64
		bumped bool
		err    error
	}
	outcomes := make([]outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snapshot := *doc
			gen, bumped, err := f.coordinator.bumpGeneration(ctx, &snapshot, false)
			outcomes[i] = outcome{gen: gen, bumped: bumped, err: err}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, o := range outcomes {
		require.NoError(t, o.err)
		assert.Equal(t, int64(1), o.gen, "all callers converge on the same generation")
		if o.bumped {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller wins the CAS")

	stored, err := f.docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Generation)
}
