package biz

import (
	"context"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docreview/cmd/review-service/internal/domain"
)

func newTestTagGroupUsecase(repo *memTagGroupRepo, store EmbeddingStore) *TagGroupUsecase {
	return NewTagGroupUsecase(repo, store, NewClusterer(), log.NewStdLogger(testWriter{}))
}

func TestCreateTagGroupRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	repo := newMemTagGroupRepo()
	uc := newTestTagGroupUsecase(repo, &staticEmbeddingStore{})

	_, err := uc.CreateTagGroup(ctx, "topics", []string{"col_1"}, domain.ClusterParams{NClusters: nPtr(2)}, false)
	require.NoError(t, err)

	_, err = uc.CreateTagGroup(ctx, "topics", []string{"col_2"}, domain.ClusterParams{NClusters: nPtr(3)}, false)
	assert.ErrorIs(t, err, domain.ErrTagGroupNameTaken)
}

func TestCreateTagGroupInvalidParamsLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	repo := newMemTagGroupRepo()
	uc := newTestTagGroupUsecase(repo, &staticEmbeddingStore{})

	_, err := uc.CreateTagGroup(ctx, "topics", []string{"col_1"}, domain.ClusterParams{}, false)
	assert.ErrorIs(t, err, domain.ErrInvalidClusterParams)

	_, total, err := uc.ListTagGroups(ctx, 0, 100)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRunClusteringPromotesOnlyWhenUpdating(t *testing.T) {
	ctx := context.Background()
	repo := newMemTagGroupRepo()
	store := &staticEmbeddingStore{embeddings: twoBlobs()}
	uc := newTestTagGroupUsecase(repo, store)

	// 非updating组：版本生成但current不动
	frozen, err := uc.CreateTagGroup(ctx, "frozen", []string{"col_1"}, domain.ClusterParams{NClusters: nPtr(2)}, false)
	require.NoError(t, err)

	_, version, err := uc.RunClustering(ctx, frozen.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	stored, err := repo.GetByID(ctx, frozen.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasCurrent())

	// updating组：同一次运行后current推进
	live, err := uc.CreateTagGroup(ctx, "live", []string{"col_1"}, domain.ClusterParams{NClusters: nPtr(2)}, true)
	require.NoError(t, err)

	_, version, err = uc.RunClustering(ctx, live.ID)
	require.NoError(t, err)

	stored, err = repo.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, version, stored.CurrentVersion)
}

func TestRecomputeKeepsFrozenGroupUnpublished(t *testing.T) {
	ctx := context.Background()
	repo := newMemTagGroupRepo()
	store := &staticEmbeddingStore{embeddings: twoBlobs()}
	uc := newTestTagGroupUsecase(repo, store)

	frozen, err := uc.CreateTagGroup(ctx, "frozen", []string{"col_1"}, domain.ClusterParams{NClusters: nPtr(2)}, false)
	require.NoError(t, err)

	// 冻结组可以反复重算，版本保留供查看，current始终不动
	_, v1, err := uc.RecomputeTagGroup(ctx, frozen.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	_, v2, err := uc.RecomputeTagGroup(ctx, frozen.Name) // 名称也能定位
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	stored, err := repo.GetByID(ctx, frozen.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasCurrent())

	_, _, err = uc.CurrentClusters(ctx, frozen.ID)
	assert.ErrorIs(t, err, domain.ErrNoCurrentVersion)
}

func TestRecomputePromotesUpdatingGroup(t *testing.T) {
	ctx := context.Background()
	repo := newMemTagGroupRepo()
	store := &staticEmbeddingStore{embeddings: twoBlobs()}
	uc := newTestTagGroupUsecase(repo, store)

	group, err := uc.CreateTagGroup(ctx, "topics", []string{"col_1"}, domain.ClusterParams{NClusters: nPtr(2)}, true)
	require.NoError(t, err)

	_, v1, err := uc.RecomputeTagGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	_, v2, err := uc.RecomputeTagGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v2)

	stored, err := repo.GetByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentVersion)
}

func TestCurrentClustersRequiresPublishedVersion(t *testing.T) {
	ctx := context.Background()
	repo := newMemTagGroupRepo()
	store := &staticEmbeddingStore{embeddings: twoBlobs()}
	uc := newTestTagGroupUsecase(repo, store)

	group, err := uc.CreateTagGroup(ctx, "topics", []string{"col_1"}, domain.ClusterParams{NClusters: nPtr(2)}, true)
	require.NoError(t, err)

	// 第一次发布前查询current报冲突
	_, _, err = uc.CurrentClusters(ctx, group.ID)
	assert.ErrorIs(t, err, domain.ErrNoCurrentVersion)

	_, _, err = uc.RecomputeTagGroup(ctx, group.ID)
	require.NoError(t, err)

	_, summaries, err := uc.CurrentClusters(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 3, summaries[0].MemberCount)

	members, err := uc.ClusterMembers(ctx, group.ID, "c0")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, members)
}

func TestRunClusteringEmbeddingFailureKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	repo := newMemTagGroupRepo()
	store := &staticEmbeddingStore{embeddings: twoBlobs()}
	uc := newTestTagGroupUsecase(repo, store)

	group, err := uc.CreateTagGroup(ctx, "topics", []string{"col_1"}, domain.ClusterParams{NClusters: nPtr(2)}, true)
	require.NoError(t, err)

	_, v1, err := uc.RunClustering(ctx, group.ID)
	require.NoError(t, err)

	// 向量拉取失败：current停在旧版本
	store.err = context.DeadlineExceeded
	_, _, err = uc.RunClustering(ctx, group.ID)
	assert.Error(t, err)

	stored, err := repo.GetByID(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, v1, stored.CurrentVersion)
}
