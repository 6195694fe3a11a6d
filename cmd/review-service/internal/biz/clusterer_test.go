package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docreview/cmd/review-service/internal/domain"
)

func nPtr(v int) *int         { return &v }
func fPtr(v float64) *float64 { return &v }

func twoBlobs() []Embedding {
	// 两团明显分离的二维点
	return []Embedding{
		{MainID: "a1", Vector: []float32{0, 0}},
		{MainID: "a2", Vector: []float32{0.1, 0}},
		{MainID: "a3", Vector: []float32{0, 0.1}},
		{MainID: "b1", Vector: []float32{10, 10}},
		{MainID: "b2", Vector: []float32{10.1, 10}},
		{MainID: "b3", Vector: []float32{10, 10.1}},
	}
}

func TestClusterKMeansSeparatesBlobs(t *testing.T) {
	c := NewClusterer()
	groups, err := c.Cluster(twoBlobs(), domain.ClusterParams{NClusters: nPtr(2)})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	members := make(map[string][]string)
	for _, g := range groups {
		members[g.Key] = g.Members
	}
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, members["c0"])
	assert.ElementsMatch(t, []string{"b1", "b2", "b3"}, members["c1"])
}

func TestClusterDeterministic(t *testing.T) {
	c := NewClusterer()
	input := twoBlobs()

	first, err := c.Cluster(input, domain.ClusterParams{NClusters: nPtr(2)})
	require.NoError(t, err)

	// 输入顺序打乱不影响结果
	reversed := make([]Embedding, 0, len(input))
	for i := len(input) - 1; i >= 0; i-- {
		reversed = append(reversed, input[i])
	}
	second, err := c.Cluster(reversed, domain.ClusterParams{NClusters: nPtr(2)})
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.Equal(t, first[i].Members, second[i].Members)
	}
}

func TestClusterKExceedsPoints(t *testing.T) {
	c := NewClusterer()
	input := []Embedding{
		{MainID: "a", Vector: []float32{0}},
		{MainID: "b", Vector: []float32{5}},
	}

	groups, err := c.Cluster(input, domain.ClusterParams{NClusters: nPtr(10)})
	require.NoError(t, err)
	assert.Len(t, groups, 2, "k clamps to the number of points")
}

func TestClusterThreshold(t *testing.T) {
	c := NewClusterer()
	groups, err := c.Cluster(twoBlobs(), domain.ClusterParams{DistanceThreshold: fPtr(1.0)})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, groups[0].Members)
	assert.ElementsMatch(t, []string{"b1", "b2", "b3"}, groups[1].Members)

	// 阈值足够大时并成一个簇
	groups, err = c.Cluster(twoBlobs(), domain.ClusterParams{DistanceThreshold: fPtr(100)})
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestClusterInputValidation(t *testing.T) {
	c := NewClusterer()

	_, err := c.Cluster(nil, domain.ClusterParams{NClusters: nPtr(2)})
	assert.ErrorIs(t, err, domain.ErrEmptyClusterBases)

	_, err = c.Cluster(twoBlobs(), domain.ClusterParams{})
	assert.ErrorIs(t, err, domain.ErrInvalidClusterParams)

	mismatched := []Embedding{
		{MainID: "a", Vector: []float32{0, 0}},
		{MainID: "b", Vector: []float32{1}},
	}
	_, err = c.Cluster(mismatched, domain.ClusterParams{NClusters: nPtr(1)})
	assert.Error(t, err)
}

func TestClusterKeysAreSequential(t *testing.T) {
	c := NewClusterer()
	groups, err := c.Cluster(twoBlobs(), domain.ClusterParams{NClusters: nPtr(2)})
	require.NoError(t, err)

	for i, g := range groups {
		assert.Equal(t, []string{"c0", "c1"}[i], g.Key)
		assert.NotEmpty(t, g.Members)
	}
}
