package rerank

import (
	"sort"

	"github.com/rushteam/tunerank/core"
)

// 混合打分权重。权重固定，不随可映射条目数或模型置信度变化。
const (
	SequentialWeight = 0.7
	HeuristicWeight  = 0.3
)

// Blender 合并序列模型与启发式分数。排序与截断由 SortNode / TopNNode 完成。
type Blender struct {
	SequentialWeight float64
	HeuristicWeight  float64
}

// DefaultBlender 返回 0.7 / 0.3 的混合器
func DefaultBlender() Blender {
	return Blender{SequentialWeight: SequentialWeight, HeuristicWeight: HeuristicWeight}
}

// Hybrid 计算 w_s·p + w_h·min(1, h)。
// 启发式分数无上界，先截断到 [0,1]；序列输出中缺失的候选 p 记为 0；非有限值先置 0。
// 返回的 ScoreMap 与 candidates 定义域一致。
func (b Blender) Hybrid(candidates []string, sequential, heuristic core.ScoreMap) core.ScoreMap {
	out := make(core.ScoreMap, len(candidates))
	for _, id := range candidates {
		p := core.Finite(sequential[id])
		h := clamp01(core.Finite(heuristic[id]))
		out[id] = core.Finite(b.SequentialWeight*p + b.HeuristicWeight*h)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortItems 按分数降序稳定排序，同分按候选原始位置升序。
func SortItems(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i] == nil {
			return false
		}
		if items[j] == nil {
			return true
		}
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Position < items[j].Position
	})
}
