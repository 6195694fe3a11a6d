package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"docreview/cmd/review-service/internal/domain"
	"docreview/pkg/cache"
)

// 簇列表缓存过期时间。缓存按(标签组, 版本)做键，版本一经
// 落库不再变化，所以不需要失效路径，TTL只控制内存占用。
const clusterCacheTTL = 10 * time.Minute

// TagGroupPO 标签组持久化对象
type TagGroupPO struct {
	ID                string `gorm:"primaryKey;size:64"`
	Name              string `gorm:"size:255;not null;uniqueIndex:uq_name"`
	CurrentVersion    int    `gorm:"not null;default:0"`
	Bases             string `gorm:"type:jsonb"`
	NClusters         *int
	DistanceThreshold *float64
	IsUpdating        bool `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 表名
func (TagGroupPO) TableName() string {
	return "review.tag_groups"
}

// ClusterPO 簇持久化对象，按(标签组, 版本, 簇键)唯一
type ClusterPO struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	TagGroupID    string `gorm:"size:64;not null;uniqueIndex:uq_group_version_key,priority:1"`
	Version       int    `gorm:"not null;uniqueIndex:uq_group_version_key,priority:2"`
	ClusterKey    string `gorm:"size:32;not null;uniqueIndex:uq_group_version_key,priority:3"`
	MemberMainIDs string `gorm:"type:jsonb"`
	CreatedAt     time.Time
}

// TableName 表名
func (ClusterPO) TableName() string {
	return "review.tag_group_clusters"
}

// TagGroupRepository 标签组仓储实现
type TagGroupRepository struct {
	data *Data
	log  *log.Helper
}

// NewTagGroupRepo 创建标签组仓储
func NewTagGroupRepo(data *Data, logger log.Logger) domain.TagGroupRepository {
	return &TagGroupRepository{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Create 创建标签组
func (r *TagGroupRepository) Create(ctx context.Context, g *domain.TagGroup) error {
	po, err := r.toPO(g)
	if err != nil {
		return err
	}
	if err := r.data.db.WithContext(ctx).Create(po).Error; err != nil {
		r.log.Errorf("failed to create tag group: %v", err)
		return err
	}
	return nil
}

// GetByID 根据ID获取标签组
func (r *TagGroupRepository) GetByID(ctx context.Context, id string) (*domain.TagGroup, error) {
	var po TagGroupPO
	if err := r.data.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrTagGroupNotFound
		}
		r.log.Errorf("failed to get tag group: %v", err)
		return nil, err
	}
	return r.toDomain(&po)
}

// GetByName 根据名称获取标签组
func (r *TagGroupRepository) GetByName(ctx context.Context, name string) (*domain.TagGroup, error) {
	var po TagGroupPO
	if err := r.data.db.WithContext(ctx).Where("name = ?", name).First(&po).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrTagGroupNotFound
		}
		r.log.Errorf("failed to get tag group by name: %v", err)
		return nil, err
	}
	return r.toDomain(&po)
}

// List 列出全部标签组
func (r *TagGroupRepository) List(ctx context.Context, offset, limit int) ([]*domain.TagGroup, int64, error) {
	var total int64
	if err := r.data.db.WithContext(ctx).Model(&TagGroupPO{}).Count(&total).Error; err != nil {
		r.log.Errorf("failed to count tag groups: %v", err)
		return nil, 0, err
	}

	var pos []TagGroupPO
	if err := r.data.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&pos).Error; err != nil {
		r.log.Errorf("failed to list tag groups: %v", err)
		return nil, 0, err
	}

	groups := make([]*domain.TagGroup, 0, len(pos))
	for i := range pos {
		g, err := r.toDomain(&pos[i])
		if err != nil {
			r.log.Warnf("failed to convert tag group %s: %v", pos[i].ID, err)
			continue
		}
		groups = append(groups, g)
	}
	return groups, total, nil
}

// SaveVersion 在单个事务内写入整版本的簇，promote为真时
// 同时推进current指针。事务提交前读者看不到任何新簇。
func (r *TagGroupRepository) SaveVersion(ctx context.Context, groupID string, version int, clusters []*domain.Cluster, promote bool) error {
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pos := make([]*ClusterPO, 0, len(clusters))
		for _, c := range clusters {
			members, err := json.Marshal(c.MemberMainIDs)
			if err != nil {
				return fmt.Errorf("marshal cluster members: %w", err)
			}
			pos = append(pos, &ClusterPO{
				TagGroupID:    groupID,
				Version:       version,
				ClusterKey:    c.ClusterKey,
				MemberMainIDs: string(members),
				CreatedAt:     time.Now(),
			})
		}
		if len(pos) > 0 {
			if err := tx.CreateInBatches(pos, 100).Error; err != nil {
				return fmt.Errorf("insert clusters: %w", err)
			}
		}

		if promote {
			result := tx.Model(&TagGroupPO{}).
				Where("id = ?", groupID).
				Updates(map[string]interface{}{
					"current_version": version,
					"updated_at":      time.Now(),
				})
			if result.Error != nil {
				return fmt.Errorf("promote version: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return domain.ErrTagGroupNotFound
			}
		}
		return nil
	})
	if err != nil {
		r.log.Errorf("failed to save tag group version: %v", err)
		return err
	}
	return nil
}

// NextVersion 下一个版本号，从已写入的最大版本推进，
// 包含未发布的版本
func (r *TagGroupRepository) NextVersion(ctx context.Context, groupID string) (int, error) {
	var max int
	if err := r.data.db.WithContext(ctx).
		Model(&ClusterPO{}).
		Where("tag_group_id = ?", groupID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error; err != nil {
		r.log.Errorf("failed to get max version: %v", err)
		return 0, err
	}
	return max + 1, nil
}

// ListClusters 获取某版本的全部簇，经过Redis缓存
func (r *TagGroupRepository) ListClusters(ctx context.Context, groupID string, version int) ([]*domain.Cluster, error) {
	cacheKey := r.clusterCacheKey(groupID, version)
	if r.data.cache != nil {
		var cached []*domain.Cluster
		err := r.data.cache.GetObject(ctx, cacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.log.Warnf("cluster cache read failed: %v", err)
		}
	}

	var pos []ClusterPO
	if err := r.data.db.WithContext(ctx).
		Where("tag_group_id = ? AND version = ?", groupID, version).
		Order("cluster_key ASC").
		Find(&pos).Error; err != nil {
		r.log.Errorf("failed to list clusters: %v", err)
		return nil, err
	}

	clusters := make([]*domain.Cluster, 0, len(pos))
	for i := range pos {
		c, err := r.toCluster(&pos[i])
		if err != nil {
			r.log.Warnf("failed to convert cluster: %v", err)
			continue
		}
		clusters = append(clusters, c)
	}

	if r.data.cache != nil {
		if err := r.data.cache.SetObject(ctx, cacheKey, clusters, clusterCacheTTL); err != nil {
			r.log.Warnf("cluster cache write failed: %v", err)
		}
	}
	return clusters, nil
}

// GetClusterMembers 获取某版本某簇的成员
func (r *TagGroupRepository) GetClusterMembers(ctx context.Context, groupID string, version int, clusterKey string) ([]string, error) {
	var po ClusterPO
	if err := r.data.db.WithContext(ctx).
		Where("tag_group_id = ? AND version = ? AND cluster_key = ?", groupID, version, clusterKey).
		First(&po).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		r.log.Errorf("failed to get cluster members: %v", err)
		return nil, err
	}

	c, err := r.toCluster(&po)
	if err != nil {
		return nil, err
	}
	return c.MemberMainIDs, nil
}

// AssignmentsFor 获取某版本下指定文档的簇归属
func (r *TagGroupRepository) AssignmentsFor(ctx context.Context, groupID string, version int, mainIDs []string) ([]*domain.ClusterAssignment, error) {
	clusters, err := r.ListClusters(ctx, groupID, version)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(mainIDs))
	for _, id := range mainIDs {
		wanted[id] = true
	}

	var out []*domain.ClusterAssignment
	for _, c := range clusters {
		for _, member := range c.MemberMainIDs {
			if len(wanted) > 0 && !wanted[member] {
				continue
			}
			out = append(out, &domain.ClusterAssignment{
				MainID:     member,
				ClusterKey: c.ClusterKey,
			})
		}
	}
	return out, nil
}

// clusterCacheKey 缓存键带版本号。版本内容写入后不再变化，
// 缓存天然不会过期成脏数据。
func (r *TagGroupRepository) clusterCacheKey(groupID string, version int) string {
	return fmt.Sprintf("clusters:%s:%d", groupID, version)
}

// toPO 转换为持久化对象
func (r *TagGroupRepository) toPO(g *domain.TagGroup) (*TagGroupPO, error) {
	bases, err := json.Marshal(g.Bases)
	if err != nil {
		return nil, fmt.Errorf("marshal bases: %w", err)
	}
	return &TagGroupPO{
		ID:                g.ID,
		Name:              g.Name,
		CurrentVersion:    g.CurrentVersion,
		Bases:             string(bases),
		NClusters:         g.Params.NClusters,
		DistanceThreshold: g.Params.DistanceThreshold,
		IsUpdating:        g.IsUpdating,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}, nil
}

// toDomain 转换为领域对象
func (r *TagGroupRepository) toDomain(po *TagGroupPO) (*domain.TagGroup, error) {
	var bases []string
	if po.Bases != "" {
		if err := json.Unmarshal([]byte(po.Bases), &bases); err != nil {
			return nil, fmt.Errorf("unmarshal bases: %w", err)
		}
	}
	return &domain.TagGroup{
		ID:             po.ID,
		Name:           po.Name,
		CurrentVersion: po.CurrentVersion,
		Bases:          bases,
		Params: domain.ClusterParams{
			NClusters:         po.NClusters,
			DistanceThreshold: po.DistanceThreshold,
		},
		IsUpdating: po.IsUpdating,
		CreatedAt:  po.CreatedAt,
		UpdatedAt:  po.UpdatedAt,
	}, nil
}

// toCluster 转换簇持久化对象
func (r *TagGroupRepository) toCluster(po *ClusterPO) (*domain.Cluster, error) {
	var members []string
	if po.MemberMainIDs != "" {
		if err := json.Unmarshal([]byte(po.MemberMainIDs), &members); err != nil {
			return nil, fmt.Errorf("unmarshal cluster members: %w", err)
		}
	}
	return &domain.Cluster{
		TagGroupID:    po.TagGroupID,
		Version:       po.Version,
		ClusterKey:    po.ClusterKey,
		MemberMainIDs: members,
	}, nil
}
