package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"docreview/pkg/cache"
)

// Data 数据访问层
type Data struct {
	db    *gorm.DB
	cache cache.Cache
}

// NewData 创建Data实例
func NewData(db *gorm.DB, c cache.Cache, logger log.Logger) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		if c != nil {
			c.Close()
		}
	}
	return &Data{db: db, cache: c}, cleanup, nil
}

// PingDB 检查数据库连接
func (d *Data) PingDB(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PingCache 检查缓存连接
func (d *Data) PingCache(ctx context.Context) error {
	return d.cache.Ping(ctx)
}
