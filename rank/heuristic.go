package rank

import (
	"math"

	"github.com/rushteam/tunerank/core"
)

// 启发式各项系数。
const (
	ContinuityArtistBoost = 0.15
	ContinuityGenreBoost  = 0.10
	InterestArtistWeight  = 0.20
	InterestGenreWeight   = 0.15
)

// Heuristic 是基于规则的打分策略，任何情况下都可用，是重排的基线。
//
// 分数由四项独立相加（不做归一化）：
//   - 基础先验：1 / (position + 1)
//   - 连续性：与锚点（最近一次交互的曲目）同艺人 +0.15，同流派 +0.10；锚点元数据未知时跳过
//   - 兴趣：+0.20 × 艺人权重，+0.15 × 流派权重
//   - 情境：按 activity / mood 对 energy、valence、danceability 加分
//
// 缺失数据一律按 0 贡献处理，不返回错误。相同输入得到逐位相同的分数。
type Heuristic struct{}

// NewHeuristic 创建启发式打分器
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Name() string { return "heuristic" }

// Score 为每个候选打分。重复的候选 ID 以第一次出现的位置为准。
func (h *Heuristic) Score(rctx *core.RecommendContext, candidates []string) core.ScoreMap {
	scores := make(core.ScoreMap, len(candidates))
	if rctx == nil {
		rctx = &core.RecommendContext{}
	}
	anchor := AnchorMetadata(rctx)
	activity, mood := rctx.Activity(), rctx.Mood()

	for pos, id := range candidates {
		if _, dup := scores[id]; dup {
			continue
		}
		m := rctx.Metadata[id]
		s := BasePrior(pos) +
			Continuity(m, anchor) +
			Interest(m, rctx.Interest) +
			ActivityBoost(m, activity) +
			MoodBoost(m, mood)
		scores[id] = core.Finite(s)
	}
	return scores
}

// AnchorMetadata 返回锚点曲目的元数据；无锚点或元数据未知时返回 nil。
func AnchorMetadata(rctx *core.RecommendContext) *core.TrackMetadata {
	if rctx == nil {
		return nil
	}
	anchor, ok := rctx.Recent.Anchor()
	if !ok {
		return nil
	}
	return rctx.Metadata[anchor]
}

// BasePrior 返回候选位置的先验分。
func BasePrior(pos int) float64 {
	return 1.0 / float64(pos+1)
}

// Continuity 返回与锚点的连续性加分。候选的艺人 / 流派为空时对应项不加分。
func Continuity(m, anchor *core.TrackMetadata) float64 {
	if m == nil || anchor == nil {
		return 0
	}
	var s float64
	if m.Artist != "" && m.Artist == anchor.Artist {
		s += ContinuityArtistBoost
	}
	if m.Genre != "" && m.Genre == anchor.Genre {
		s += ContinuityGenreBoost
	}
	return s
}

// Interest 返回兴趣画像加分。
func Interest(m *core.TrackMetadata, p *core.InterestProfile) float64 {
	if m == nil || p == nil {
		return 0
	}
	var s float64
	if w, ok := p.ArtistWeight(m.Artist); ok {
		s += InterestArtistWeight * core.Finite(w)
	}
	if w, ok := p.GenreWeight(m.Genre); ok {
		s += InterestGenreWeight * core.Finite(w)
	}
	return s
}

// ActivityBoost 返回活动情境加分；未识别的活动不加分。
func ActivityBoost(m *core.TrackMetadata, activity core.Activity) float64 {
	energy := m.Feature(core.FeatureEnergy)
	dance := m.Feature(core.FeatureDanceability)

	switch activity {
	case core.ActivityExercise:
		return 0.10*energy + 0.05*dance
	case core.ActivityRelax:
		return 0.10 * (1 - energy)
	case core.ActivityParty:
		return 0.12*dance + 0.06*energy
	case core.ActivityWork:
		return 0.05 * (1 - math.Abs(energy-0.5))
	}
	return 0
}

// MoodBoost 返回情绪情境加分；未识别的情绪不加分。
func MoodBoost(m *core.TrackMetadata, mood core.Mood) float64 {
	energy := m.Feature(core.FeatureEnergy)
	valence := m.Feature(core.FeatureValence)

	switch mood {
	case core.MoodCalm:
		return 0.08 * (1 - energy)
	case core.MoodEnergetic:
		return 0.08 * energy
	case core.MoodHappy:
		return 0.07 * valence
	case core.MoodSad:
		return 0.07 * (1 - valence)
	}
	return 0
}
