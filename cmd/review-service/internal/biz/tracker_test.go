package biz

import (
	"context"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docreview/cmd/review-service/internal/domain"
)

func newTestTracker(docRepo *memDocumentRepo, resultRepo *memStageResultRepo) *TrackerUsecase {
	return NewTrackerUsecase(docRepo, resultRepo, log.NewStdLogger(testWriter{}))
}

// testWriter 丢弃测试日志
type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func seedDocument(t *testing.T, docRepo *memDocumentRepo, collectionID, mainID string) *domain.Document {
	t.Helper()
	doc := domain.NewDocument(collectionID, mainID, "", "")
	require.NoError(t, docRepo.Create(context.Background(), doc))
	return doc
}

func TestApplyResultStaleGenerationDropped(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	resultRepo := newMemStageResultRepo()
	tracker := newTestTracker(docRepo, resultRepo)

	doc := seedDocument(t, docRepo, "col_1", "main-1")

	// 推进一代，旧代数的结果应被丢弃且不报错
	_, err := docRepo.CompareAndSwapGeneration(ctx, doc.ID, 0, true)
	require.NoError(t, err)

	stale := domain.NewStageResult(doc.ID, 0, domain.VerifyPayload{IsValid: true})
	require.NoError(t, tracker.ApplyResult(ctx, stale))

	results, err := resultRepo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, results, "stale result must not be stored")

	current := domain.NewStageResult(doc.ID, 1, domain.VerifyPayload{IsValid: true})
	require.NoError(t, tracker.ApplyResult(ctx, current))

	results, err = resultRepo.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestApplyMetadataRefreshesDocument(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	tracker := newTestTracker(docRepo, newMemStageResultRepo())

	doc := seedDocument(t, docRepo, "col_1", "main-1")

	require.NoError(t, tracker.ApplyMetadata(ctx, doc.ID, 0, "fresh title", "https://example.com/fresh"))

	got, err := docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh title", got.Title)
	assert.Equal(t, "https://example.com/fresh", got.URL)
}

func TestApplyMetadataStaleGenerationDropped(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	tracker := newTestTracker(docRepo, newMemStageResultRepo())

	doc := seedDocument(t, docRepo, "col_1", "main-1")
	_, err := docRepo.CompareAndSwapGeneration(ctx, doc.ID, 0, false)
	require.NoError(t, err)

	// 旧代数的刷新静默丢弃，文档保持原样
	require.NoError(t, tracker.ApplyMetadata(ctx, doc.ID, 0, "stale title", "https://example.com/stale"))

	got, err := docRepo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Title)
	assert.Empty(t, got.URL)
}

func TestApplyResultOutOfOrderStages(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	resultRepo := newMemStageResultRepo()
	tracker := newTestTracker(docRepo, resultRepo)

	doc := seedDocument(t, docRepo, "col_1", "main-1")

	// 评分先于校验到达
	scores := domain.NewStageResult(doc.ID, 0, domain.DeepDivePayload{Scores: map[string]float64{"rigor": 3}})
	require.NoError(t, tracker.ApplyResult(ctx, scores))

	views, _, err := tracker.ListDocuments(ctx, "col_1", ListOptions{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusPending, views[0].Status, "no verify result yet")

	verify := domain.NewStageResult(doc.ID, 0, domain.VerifyPayload{IsValid: true})
	require.NoError(t, tracker.ApplyResult(ctx, verify))

	views, _, err = tracker.ListDocuments(ctx, "col_1", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusComplete, views[0].Status)
}

func TestStatusCountsScenario(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	resultRepo := newMemStageResultRepo()
	tracker := newTestTracker(docRepo, resultRepo)

	pending := seedDocument(t, docRepo, "col_1", "m-pending")
	_ = pending
	excluded := seedDocument(t, docRepo, "col_1", "m-excluded")
	complete := seedDocument(t, docRepo, "col_1", "m-complete")

	require.NoError(t, tracker.ApplyResult(ctx,
		domain.NewStageResult(excluded.ID, 0, domain.VerifyPayload{IsValid: false, Reason: "scope"})))
	require.NoError(t, tracker.ApplyResult(ctx,
		domain.NewStageResult(complete.ID, 0, domain.VerifyPayload{IsValid: true})))
	require.NoError(t, tracker.ApplyResult(ctx,
		domain.NewStageResult(complete.ID, 0, domain.DeepDivePayload{Scores: map[string]float64{"rigor": 2}})))

	counts, total, err := tracker.StatusCounts(ctx, "col_1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, counts[domain.StatusPending])
	assert.Equal(t, 1, counts[domain.StatusExcluded])
	assert.Equal(t, 1, counts[domain.StatusComplete])
}

func TestListDocumentsTagFilterAndPriority(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	resultRepo := newMemStageResultRepo()
	tracker := newTestTracker(docRepo, resultRepo)

	a := seedDocument(t, docRepo, "col_1", "m-a")
	b := seedDocument(t, docRepo, "col_1", "m-b")
	seedDocument(t, docRepo, "col_1", "m-c") // pending

	require.NoError(t, tracker.ApplyResult(ctx,
		domain.NewStageResult(a.ID, 0, domain.VerifyPayload{IsValid: true})))
	require.NoError(t, tracker.ApplyResult(ctx,
		domain.NewStageResult(a.ID, 0, domain.DeepDivePayload{Scores: map[string]float64{"rigor": 4}})))
	require.NoError(t, tracker.ApplyResult(ctx,
		domain.NewStageResult(a.ID, 0, domain.TagPayload{Tag: "methods"})))
	require.NoError(t, tracker.ApplyResult(ctx,
		domain.NewStageResult(b.ID, 0, domain.TagPayload{Tag: "results"})))

	// 标签过滤
	views, total, err := tracker.ListDocuments(ctx, "col_1", ListOptions{TagFilter: "methods"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, views, 1)
	assert.Equal(t, "m-a", views[0].Document.MainID)

	// 优先级排序：complete在前，pending在后
	views, _, err = tracker.ListDocuments(ctx, "col_1", ListOptions{ByPriority: true})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, domain.StatusComplete, views[0].Status)
	assert.Equal(t, domain.StatusPending, views[2].Status)
}
