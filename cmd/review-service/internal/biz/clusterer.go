package biz

import (
	"fmt"
	"math"
	"sort"

	"docreview/cmd/review-service/internal/domain"
)

// k-means最大迭代次数，到达后直接使用当前分配结果
const kmeansMaxIterations = 50

// ClusterGroup 一个聚类及其成员
type ClusterGroup struct {
	Key     string
	Members []string
}

// Clusterer 标签向量聚类器。同样的输入向量集和参数总是产出
// 同样的聚类划分：输入先按MainID排序，初始中心取固定间隔的
// 样本点，距离平手时取下标更小的簇。
type Clusterer struct{}

// NewClusterer 创建聚类器
func NewClusterer() *Clusterer {
	return &Clusterer{}
}

// Cluster 按参数对向量集做聚类。参数已通过domain校验，
// nClusters和distanceThreshold恰好设置一个。
func (c *Clusterer) Cluster(embeddings []Embedding, params domain.ClusterParams) ([]*ClusterGroup, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, domain.ErrEmptyClusterBases
	}

	sorted := make([]Embedding, len(embeddings))
	copy(sorted, embeddings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MainID < sorted[j].MainID })

	dim := len(sorted[0].Vector)
	for _, e := range sorted {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch for %s: got %d, want %d", e.MainID, len(e.Vector), dim)
		}
	}

	var assignments []int
	var nGroups int
	if params.NClusters != nil {
		assignments, nGroups = kmeans(sorted, *params.NClusters)
	} else {
		assignments, nGroups = thresholdCluster(sorted, *params.DistanceThreshold)
	}

	groups := make([]*ClusterGroup, nGroups)
	for i := range groups {
		groups[i] = &ClusterGroup{Key: fmt.Sprintf("c%d", i)}
	}
	for i, e := range sorted {
		g := groups[assignments[i]]
		g.Members = append(g.Members, e.MainID)
	}

	// 剔除空簇并重新编号，保持key连续
	out := groups[:0]
	for _, g := range groups {
		if len(g.Members) == 0 {
			continue
		}
		g.Key = fmt.Sprintf("c%d", len(out))
		out = append(out, g)
	}
	return out, nil
}

// kmeans 标准k-means。k被钳制到样本数，初始中心取排序后
// 以固定间隔分布的样本点，保证可复现。
func kmeans(points []Embedding, k int) ([]int, int) {
	n := len(points)
	if k > n {
		k = n
	}
	dim := len(points[0].Vector)

	centers := make([][]float64, k)
	for i := 0; i < k; i++ {
		idx := i * n / k
		centers[i] = toFloat64(points[idx].Vector)
	}

	assignments := make([]int, n)
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCenter(p.Vector, centers)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			for d, v := range p.Vector {
				sums[c][d] += float64(v)
			}
		}
		for i := 0; i < k; i++ {
			if counts[i] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centers[i][d] = sums[i][d] / float64(counts[i])
			}
		}
	}
	return assignments, k
}

// thresholdCluster 单遍领导者聚类：每个点并入第一个距离
// 领导者不超过阈值的簇，否则自己成为新簇的领导者。
func thresholdCluster(points []Embedding, threshold float64) ([]int, int) {
	assignments := make([]int, len(points))
	var leaders [][]float64
	for i, p := range points {
		found := -1
		for j, leader := range leaders {
			if distanceTo(p.Vector, leader) <= threshold {
				found = j
				break
			}
		}
		if found < 0 {
			leaders = append(leaders, toFloat64(p.Vector))
			found = len(leaders) - 1
		}
		assignments[i] = found
	}
	return assignments, len(leaders)
}

func nearestCenter(v []float32, centers [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centers {
		if d := distanceTo(v, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// distanceTo 欧氏距离的平方根
func distanceTo(v []float32, center []float64) float64 {
	var sum float64
	for i := range v {
		d := float64(v[i]) - center[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
