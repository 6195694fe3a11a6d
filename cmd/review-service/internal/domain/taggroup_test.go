package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestClusterParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		params  ClusterParams
		wantErr bool
	}{
		{"n_clusters only", ClusterParams{NClusters: intPtr(5)}, false},
		{"threshold only", ClusterParams{DistanceThreshold: floatPtr(0.3)}, false},
		{"both set", ClusterParams{NClusters: intPtr(5), DistanceThreshold: floatPtr(0.3)}, true},
		{"neither set", ClusterParams{}, true},
		{"zero n_clusters", ClusterParams{NClusters: intPtr(0)}, true},
		{"negative threshold", ClusterParams{DistanceThreshold: floatPtr(-1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClusterParams)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewTagGroupFailClosed(t *testing.T) {
	// 参数非法时不产出任何标签组
	g, err := NewTagGroup("g", []string{"col_1"}, ClusterParams{}, false)
	assert.ErrorIs(t, err, ErrInvalidClusterParams)
	assert.Nil(t, g)

	g, err = NewTagGroup("g", nil, ClusterParams{NClusters: intPtr(3)}, false)
	assert.ErrorIs(t, err, ErrEmptyClusterBases)
	assert.Nil(t, g)
}

func TestNewTagGroupGeneratesName(t *testing.T) {
	g, err := NewTagGroup("", []string{"col_1"}, ClusterParams{NClusters: intPtr(3)}, true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(g.Name, "taggroup-"))
	assert.True(t, g.IsUpdating)
	assert.False(t, g.HasCurrent())
	assert.Equal(t, 0, g.CurrentVersion)
}
