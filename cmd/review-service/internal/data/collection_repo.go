package data

import (
	"context"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"docreview/cmd/review-service/internal/domain"
)

// CollectionPO 集合持久化对象
type CollectionPO struct {
	ID        string `gorm:"primaryKey;size:64"`
	OwnerID   string `gorm:"size:64;not null;index:idx_owner"`
	Name      string `gorm:"size:255;not null"`
	IsPublic  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 表名
func (CollectionPO) TableName() string {
	return "review.collections"
}

// CollectionRepository 集合仓储实现
type CollectionRepository struct {
	data *Data
	log  *log.Helper
}

// NewCollectionRepo 创建集合仓储
func NewCollectionRepo(data *Data, logger log.Logger) domain.CollectionRepository {
	return &CollectionRepository{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Create 创建集合
func (r *CollectionRepository) Create(ctx context.Context, c *domain.Collection) error {
	po := r.toPO(c)
	if err := r.data.db.WithContext(ctx).Create(po).Error; err != nil {
		r.log.Errorf("failed to create collection: %v", err)
		return err
	}
	return nil
}

// GetByID 根据ID获取集合
func (r *CollectionRepository) GetByID(ctx context.Context, id string) (*domain.Collection, error) {
	var po CollectionPO
	if err := r.data.db.WithContext(ctx).Where("id = ?", id).First(&po).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrCollectionNotFound
		}
		r.log.Errorf("failed to get collection: %v", err)
		return nil, err
	}
	return r.toDomain(&po), nil
}

// List 列出集合。ownerID为空时列出全部。
func (r *CollectionRepository) List(ctx context.Context, ownerID string, offset, limit int) ([]*domain.Collection, int64, error) {
	query := r.data.db.WithContext(ctx).Model(&CollectionPO{})
	if ownerID != "" {
		query = query.Where("owner_id = ?", ownerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		r.log.Errorf("failed to count collections: %v", err)
		return nil, 0, err
	}

	var pos []CollectionPO
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&pos).Error; err != nil {
		r.log.Errorf("failed to list collections: %v", err)
		return nil, 0, err
	}

	collections := make([]*domain.Collection, 0, len(pos))
	for i := range pos {
		collections = append(collections, r.toDomain(&pos[i]))
	}
	return collections, total, nil
}

// MarkPublic 将集合置为公开。只允许false→true的翻转，
// 已公开的集合再次标记是无操作。
func (r *CollectionRepository) MarkPublic(ctx context.Context, id string) error {
	result := r.data.db.WithContext(ctx).
		Model(&CollectionPO{}).
		Where("id = ? AND is_public = ?", id, false).
		Updates(map[string]interface{}{
			"is_public":  true,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		r.log.Errorf("failed to mark collection public: %v", result.Error)
		return result.Error
	}
	return nil
}

// toPO 转换为持久化对象
func (r *CollectionRepository) toPO(c *domain.Collection) *CollectionPO {
	return &CollectionPO{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		Name:      c.Name,
		IsPublic:  c.IsPublic,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// toDomain 转换为领域对象
func (r *CollectionRepository) toDomain(po *CollectionPO) *domain.Collection {
	return &domain.Collection{
		ID:        po.ID,
		OwnerID:   po.OwnerID,
		Name:      po.Name,
		IsPublic:  po.IsPublic,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}
}
