package core

import (
	"math"
	"time"

	"github.com/rushteam/tunerank/pkg/utils"
)

// ScoreMap 是候选 ID -> 分数，定义域与候选集完全一致（无意见的候选补 0）。
type ScoreMap map[string]float64

// NewScoreMap 创建覆盖全部候选、初始为 0 的 ScoreMap。
func NewScoreMap(ids []string) ScoreMap {
	m := make(ScoreMap, len(ids))
	for _, id := range ids {
		m[id] = 0
	}
	return m
}

// Restrict 返回只覆盖 ids 的新 ScoreMap：多余的 key 被丢弃，缺失的补 0，
// 非有限值（NaN / ±Inf）置 0。
func (m ScoreMap) Restrict(ids []string) ScoreMap {
	out := make(ScoreMap, len(ids))
	for _, id := range ids {
		out[id] = Finite(m[id])
	}
	return out
}

// Finite 将非有限值置 0，避免特征 / 模型输出的脏数据传导进排序。
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ScoredTrack 是排序结果中的一项。
type ScoredTrack struct {
	TrackID string                 `json:"trackId"`
	Score   float64                `json:"score"`
	Labels  map[string]utils.Label `json:"labels,omitempty"`
}

// RankedResult 是重排的最终输出：按分数降序，同分按候选原始顺序，截断到 limit。
type RankedResult struct {
	Tracks      []ScoredTrack `json:"tracks"`
	Strategy    string        `json:"strategy"`
	Model       string        `json:"model"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// IDs 返回结果中的曲目 ID。
func (r *RankedResult) IDs() []string {
	ids := make([]string, len(r.Tracks))
	for i, t := range r.Tracks {
		ids[i] = t.TrackID
	}
	return ids
}

// Health 是对外暴露的运行状态。
type Health struct {
	SequentialModelLoaded bool   `json:"sequentialModelLoaded"`
	FeatureStoreEnabled   bool   `json:"featureStoreEnabled"`
	Model                 string `json:"model"`
}
