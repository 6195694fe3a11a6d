package biz

import (
	"math"
	"time"

	"docreview/pkg/monitoring"
)

// 双侧95%置信水平的z值
const defaultConfidenceZ = 1.96

// 每个评分维度的默认上界
const defaultAxisMax = 4.0

// NormalizationMode 归一化模式
type NormalizationMode string

const (
	// NormalizationAbsolute 绝对归一化：所有维度除以维度上界
	NormalizationAbsolute NormalizationMode = "absolute"
	// NormalizationRelative 相对归一化：除以当前对比视图中
	// 所有集合所有维度观测到的最大置信上界
	NormalizationRelative NormalizationMode = "relative"
)

// StatsConfig 统计配置
type StatsConfig struct {
	AxisMax     float64
	ConfidenceZ float64
}

// StatsAggregator 统计聚合器。对一个显式的文档集快照做纯计算，
// 不在调用之间保留任何累积状态，同样的输入总是给出同样的输出。
type StatsAggregator struct {
	axisMax     float64
	confidenceZ float64
}

// NewStatsAggregator 创建统计聚合器
func NewStatsAggregator(cfg *StatsConfig) *StatsAggregator {
	axisMax := defaultAxisMax
	confidenceZ := defaultConfidenceZ
	if cfg != nil {
		if cfg.AxisMax > 0 {
			axisMax = cfg.AxisMax
		}
		if cfg.ConfidenceZ > 0 {
			confidenceZ = cfg.ConfidenceZ
		}
	}
	return &StatsAggregator{axisMax: axisMax, confidenceZ: confidenceZ}
}

// AxisMax 维度上界
func (a *StatsAggregator) AxisMax() float64 { return a.axisMax }

// AxisStats 单个维度的统计量。置信区间两端都钳制在[0, AxisMax]内。
type AxisStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Count  int     `json:"count"`
	CIMin  float64 `json:"ci_min"`
	CIMax  float64 `json:"ci_max"`
}

// ScaledAxisStats 归一化后的维度统计量
type ScaledAxisStats struct {
	AxisStats
	ScaledMean  float64 `json:"scaled_mean"`
	ScaledCIMin float64 `json:"scaled_ci_min"`
	ScaledCIMax float64 `json:"scaled_ci_max"`
}

// SetStats 一个文档集合的归一化统计结果
type SetStats struct {
	Axes    map[string]*ScaledAxisStats `json:"axes"`
	Divisor float64                     `json:"divisor"`
}

// Aggregate 对文档集快照计算各维度统计量。只有带活动成功
// 评分结果的文档参与；tagFilter非空时再按活动标签过滤。
func (a *StatsAggregator) Aggregate(docs []*DocumentView, axes []string, tagFilter string) map[string]*AxisStats {
	start := time.Now()
	defer func() {
		monitoring.StatsAggregationDuration.Observe(time.Since(start).Seconds())
	}()

	samples := make(map[string][]float64, len(axes))
	for _, v := range docs {
		scores := v.ActiveScores()
		if scores == nil {
			continue
		}
		if tagFilter != "" && v.ActiveTag() != tagFilter {
			continue
		}
		for _, axis := range axes {
			if score, ok := scores[axis]; ok {
				samples[axis] = append(samples[axis], score)
			}
		}
	}

	out := make(map[string]*AxisStats, len(axes))
	for _, axis := range axes {
		out[axis] = a.axisStats(samples[axis])
	}
	return out
}

// axisStats 单维度的均值、样本标准差和钳制后的置信区间
func (a *StatsAggregator) axisStats(values []float64) *AxisStats {
	n := len(values)
	if n == 0 {
		return &AxisStats{}
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var stddev float64
	if n > 1 {
		var sq float64
		for _, v := range values {
			d := v - mean
			sq += d * d
		}
		stddev = math.Sqrt(sq / float64(n-1))
	}

	margin := a.confidenceZ * stddev / math.Sqrt(float64(n))
	return &AxisStats{
		Mean:   mean,
		StdDev: stddev,
		Count:  n,
		CIMin:  math.Max(0, mean-margin),
		CIMax:  math.Min(a.axisMax, mean+margin),
	}
}

// Compare 对多个文档集合做对比归一化。相对模式的分母是本次
// 对比中所有集合所有维度的最大置信上界，每次调用重新计算；
// 没有任何正贡献时退化为不缩放（全零除以1）。
func (a *StatsAggregator) Compare(sets [][]*DocumentView, axes []string, tagFilter string, mode NormalizationMode) []*SetStats {
	raw := make([]map[string]*AxisStats, len(sets))
	for i, docs := range sets {
		raw[i] = a.Aggregate(docs, axes, tagFilter)
	}

	divisor := a.axisMax
	if mode == NormalizationRelative {
		var maxCI float64
		for _, stats := range raw {
			for _, s := range stats {
				if s.Count > 0 && s.CIMax > maxCI {
					maxCI = s.CIMax
				}
			}
		}
		if maxCI > 0 {
			divisor = maxCI
		} else {
			divisor = 1
		}
	}

	out := make([]*SetStats, len(raw))
	for i, stats := range raw {
		set := &SetStats{
			Axes:    make(map[string]*ScaledAxisStats, len(stats)),
			Divisor: divisor,
		}
		for axis, s := range stats {
			set.Axes[axis] = &ScaledAxisStats{
				AxisStats:   *s,
				ScaledMean:  s.Mean / divisor,
				ScaledCIMin: s.CIMin / divisor,
				ScaledCIMax: s.CIMax / divisor,
			}
		}
		out[i] = set
	}
	return out
}
