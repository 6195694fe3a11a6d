package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClusterParams 聚类参数。NClusters与DistanceThreshold二选一：
// 前者固定簇数，后者按距离阈值切分。
type ClusterParams struct {
	NClusters         *int     `json:"n_clusters,omitempty"`
	DistanceThreshold *float64 `json:"distance_threshold,omitempty"`
}

// Validate 验证聚类参数，两者同设或同缺都拒绝
func (p ClusterParams) Validate() error {
	if p.NClusters != nil && p.DistanceThreshold != nil {
		return ErrInvalidClusterParams
	}
	if p.NClusters == nil && p.DistanceThreshold == nil {
		return ErrInvalidClusterParams
	}
	if p.NClusters != nil && *p.NClusters <= 0 {
		return ErrInvalidClusterParams
	}
	if p.DistanceThreshold != nil && *p.DistanceThreshold <= 0 {
		return ErrInvalidClusterParams
	}
	return nil
}

// TagGroup 命名的版本化聚类。CurrentVersion是唯一对外可见的版本指针，
// 只在一次完整聚类运行结束后原子推进；0表示尚无可见版本。
type TagGroup struct {
	ID             string
	Name           string
	CurrentVersion int
	Bases          []string // 参与聚类的集合/语料来源标识
	Params         ClusterParams
	IsUpdating     bool // 为真时新版本会成为current并供打标阶段使用
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewTagGroup 创建标签组。名称为空时自动生成唯一名称。
func NewTagGroup(name string, bases []string, params ClusterParams, isUpdating bool) (*TagGroup, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(bases) == 0 {
		return nil, ErrEmptyClusterBases
	}
	id := "tg_" + uuid.New().String()
	if name == "" {
		name = fmt.Sprintf("taggroup-%s", id[3:11])
	}
	now := time.Now()
	return &TagGroup{
		ID:             id,
		Name:           name,
		CurrentVersion: 0,
		Bases:          bases,
		Params:         params,
		IsUpdating:     isUpdating,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// HasCurrent 是否已有可见版本
func (g *TagGroup) HasCurrent() bool {
	return g.CurrentVersion > 0
}

// Cluster 某标签组某版本下的一个簇
type Cluster struct {
	TagGroupID    string
	Version       int
	ClusterKey    string
	MemberMainIDs []string
}

// ClusterAssignment 单个文档的簇归属
type ClusterAssignment struct {
	MainID     string
	ClusterKey string
}

// ClusterSummary 簇概要，用于current版本的簇列表查询
type ClusterSummary struct {
	ClusterKey  string
	MemberCount int
}
