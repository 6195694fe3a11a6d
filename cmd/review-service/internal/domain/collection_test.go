package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionCheckMutable(t *testing.T) {
	c := NewCollection("user-1", "screening-2026")

	assert.NoError(t, c.CheckMutable("user-1"))
	assert.ErrorIs(t, c.CheckMutable("user-2"), ErrNotOwner)

	c.Publish()
	// 公开后对所有人只读，包括所有者
	assert.ErrorIs(t, c.CheckMutable("user-1"), ErrCollectionReadonly)
	assert.ErrorIs(t, c.CheckMutable("user-2"), ErrCollectionReadonly)
}

func TestCollectionPublishIsMonotonic(t *testing.T) {
	c := NewCollection("user-1", "screening-2026")
	assert.False(t, c.IsReadOnly())

	c.Publish()
	assert.True(t, c.IsPublic)

	// 没有反向操作，重复publish保持公开
	c.Publish()
	assert.True(t, c.IsPublic)
}

func TestCollectionValidate(t *testing.T) {
	assert.NoError(t, NewCollection("user-1", "n").Validate())
	assert.ErrorIs(t, NewCollection("", "n").Validate(), ErrInvalidOwnerID)
	assert.ErrorIs(t, NewCollection("user-1", "").Validate(), ErrInvalidCollectionName)
}
