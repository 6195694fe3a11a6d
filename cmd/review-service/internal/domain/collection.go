package domain

import (
	"time"

	"github.com/google/uuid"
)

// Collection 评审集合聚合根
type Collection struct {
	ID        string
	OwnerID   string
	Name      string
	IsPublic  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCollection 创建新集合
func NewCollection(ownerID, name string) *Collection {
	now := time.Now()
	return &Collection{
		ID:        "col_" + uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		IsPublic:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate 验证集合
func (c *Collection) Validate() error {
	if c.OwnerID == "" {
		return ErrInvalidOwnerID
	}
	if c.Name == "" {
		return ErrInvalidCollectionName
	}
	return nil
}

// Publish 将集合设为公开。公开是单向的，之后集合永久只读。
func (c *Collection) Publish() {
	c.IsPublic = true
	c.UpdatedAt = time.Now()
}

// IsReadOnly 检查集合是否只读（公开集合不可再变更）
func (c *Collection) IsReadOnly() bool {
	return c.IsPublic
}

// CheckMutable 检查调用者是否可以变更此集合
func (c *Collection) CheckMutable(callerID string) error {
	if c.IsPublic {
		return ErrCollectionReadonly
	}
	if c.OwnerID != callerID {
		return ErrNotOwner
	}
	return nil
}
