package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"docreview/cmd/review-service/internal/domain"
	"docreview/pkg/monitoring"
)

// TagGroupUsecase 标签组用例：创建标签组、跑聚类、发布版本、
// 查询current版本的簇。
type TagGroupUsecase struct {
	groupRepo  domain.TagGroupRepository
	embeddings EmbeddingStore
	clusterer  *Clusterer
	log        *log.Helper
}

// NewTagGroupUsecase 创建标签组用例
func NewTagGroupUsecase(
	groupRepo domain.TagGroupRepository,
	embeddings EmbeddingStore,
	clusterer *Clusterer,
	logger log.Logger,
) *TagGroupUsecase {
	return &TagGroupUsecase{
		groupRepo:  groupRepo,
		embeddings: embeddings,
		clusterer:  clusterer,
		log:        log.NewHelper(log.With(logger, "module", "taggroup-usecase")),
	}
}

// CreateTagGroup 创建标签组。参数校验失败时不落任何记录。
func (uc *TagGroupUsecase) CreateTagGroup(ctx context.Context, name string, bases []string, params domain.ClusterParams, isUpdating bool) (*domain.TagGroup, error) {
	group, err := domain.NewTagGroup(name, bases, params, isUpdating)
	if err != nil {
		return nil, err
	}

	existing, err := uc.groupRepo.GetByName(ctx, group.Name)
	if err != nil && !errors.Is(err, domain.ErrTagGroupNotFound) {
		return nil, fmt.Errorf("check tag group name: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrTagGroupNameTaken
	}

	if err := uc.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("create tag group: %w", err)
	}

	uc.log.WithContext(ctx).Infof("tag group created: id=%s name=%s updating=%v", group.ID, group.Name, group.IsUpdating)
	return group, nil
}

// GetTagGroup 按ID或名称获取标签组
func (uc *TagGroupUsecase) GetTagGroup(ctx context.Context, idOrName string) (*domain.TagGroup, error) {
	return uc.resolveGroup(ctx, idOrName)
}

// ListTagGroups 列出标签组
func (uc *TagGroupUsecase) ListTagGroups(ctx context.Context, offset, limit int) ([]*domain.TagGroup, int64, error) {
	return uc.groupRepo.List(ctx, offset, limit)
}

// RunClustering 对标签组跑一次完整聚类，产出一个新版本。
// 运行期间读者始终看到旧的current版本；只有IsUpdating为真的
// 标签组才在保存后把current指针推进到新版本。
func (uc *TagGroupUsecase) RunClustering(ctx context.Context, idOrName string) (*domain.TagGroup, int, error) {
	group, err := uc.resolveGroup(ctx, idOrName)
	if err != nil {
		return nil, 0, err
	}
	version, err := uc.clusterAndSave(ctx, group, group.IsUpdating)
	if err != nil {
		return nil, 0, err
	}
	if group.IsUpdating {
		group.CurrentVersion = version
	}
	return group, version, nil
}

// RecomputeTagGroup 按原有参数重算，产出新版本。发布规则和
// RunClustering一致：冻结组（IsUpdating为假）的结果只保留供
// 查看，current指针不动，打标阶段也永远不会读到它。
func (uc *TagGroupUsecase) RecomputeTagGroup(ctx context.Context, idOrName string) (*domain.TagGroup, int, error) {
	group, err := uc.resolveGroup(ctx, idOrName)
	if err != nil {
		return nil, 0, err
	}
	version, err := uc.clusterAndSave(ctx, group, group.IsUpdating)
	if err != nil {
		return nil, 0, err
	}
	if group.IsUpdating {
		group.CurrentVersion = version
	}
	return group, version, nil
}

// clusterAndSave 取向量、聚类、整版本落库
func (uc *TagGroupUsecase) clusterAndSave(ctx context.Context, group *domain.TagGroup, promote bool) (int, error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		monitoring.ClusteringDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	embeddings, err := uc.embeddings.FetchEmbeddings(ctx, group.Bases)
	if err != nil {
		outcome = "error"
		return 0, fmt.Errorf("fetch embeddings: %w", err)
	}

	groups, err := uc.clusterer.Cluster(embeddings, group.Params)
	if err != nil {
		outcome = "error"
		return 0, fmt.Errorf("cluster tag group %s: %w", group.ID, err)
	}

	version, err := uc.groupRepo.NextVersion(ctx, group.ID)
	if err != nil {
		outcome = "error"
		return 0, fmt.Errorf("next version: %w", err)
	}

	clusters := make([]*domain.Cluster, 0, len(groups))
	for _, g := range groups {
		clusters = append(clusters, &domain.Cluster{
			TagGroupID:    group.ID,
			Version:       version,
			ClusterKey:    g.Key,
			MemberMainIDs: g.Members,
		})
	}

	if err := uc.groupRepo.SaveVersion(ctx, group.ID, version, clusters, promote); err != nil {
		outcome = "error"
		return 0, fmt.Errorf("save version %d: %w", version, err)
	}

	uc.log.WithContext(ctx).Infof("clustering done: group=%s version=%d clusters=%d promoted=%v",
		group.ID, version, len(clusters), promote)
	return version, nil
}

// CurrentClusters 列出current版本的簇概要
func (uc *TagGroupUsecase) CurrentClusters(ctx context.Context, idOrName string) (*domain.TagGroup, []*domain.ClusterSummary, error) {
	group, err := uc.resolveGroup(ctx, idOrName)
	if err != nil {
		return nil, nil, err
	}
	if !group.HasCurrent() {
		return nil, nil, domain.ErrNoCurrentVersion
	}

	clusters, err := uc.groupRepo.ListClusters(ctx, group.ID, group.CurrentVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("list clusters: %w", err)
	}

	summaries := make([]*domain.ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		summaries = append(summaries, &domain.ClusterSummary{
			ClusterKey:  c.ClusterKey,
			MemberCount: len(c.MemberMainIDs),
		})
	}
	return group, summaries, nil
}

// ClusterMembers 获取current版本某个簇的成员文档标识
func (uc *TagGroupUsecase) ClusterMembers(ctx context.Context, idOrName, clusterKey string) ([]string, error) {
	group, err := uc.resolveGroup(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	if !group.HasCurrent() {
		return nil, domain.ErrNoCurrentVersion
	}
	return uc.groupRepo.GetClusterMembers(ctx, group.ID, group.CurrentVersion, clusterKey)
}

// AssignmentsFor 获取指定文档在current版本下的簇归属
func (uc *TagGroupUsecase) AssignmentsFor(ctx context.Context, idOrName string, mainIDs []string) ([]*domain.ClusterAssignment, error) {
	group, err := uc.resolveGroup(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	if !group.HasCurrent() {
		return nil, domain.ErrNoCurrentVersion
	}
	return uc.groupRepo.AssignmentsFor(ctx, group.ID, group.CurrentVersion, mainIDs)
}

// resolveGroup 先按ID找，找不到再按名称找
func (uc *TagGroupUsecase) resolveGroup(ctx context.Context, idOrName string) (*domain.TagGroup, error) {
	group, err := uc.groupRepo.GetByID(ctx, idOrName)
	if err == nil {
		return group, nil
	}
	if !errors.Is(err, domain.ErrTagGroupNotFound) {
		return nil, fmt.Errorf("get tag group: %w", err)
	}
	group, err = uc.groupRepo.GetByName(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	return group, nil
}
