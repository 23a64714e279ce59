package core

import "github.com/rushteam/tunerank/pkg/utils"

// 请求 limit 的默认值与上限。
const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Mood 是调用方提供的情绪提示。
type Mood string

const (
	MoodCalm      Mood = "CALM"
	MoodEnergetic Mood = "ENERGETIC"
	MoodHappy     Mood = "HAPPY"
	MoodSad       Mood = "SAD"
)

// Activity 是调用方提供的活动提示。
type Activity string

const (
	ActivityExercise Activity = "EXERCISE"
	ActivityRelax    Activity = "RELAX"
	ActivityParty    Activity = "PARTY"
	ActivityWork     Activity = "WORK"
)

// InteractionContext 是调用方提供的情境提示，每个字段都可为空。
// 未识别的枚举值不报错，只是不产生任何加分。
type InteractionContext struct {
	Mood       Mood     `json:"mood,omitempty"`
	Activity   Activity `json:"activity,omitempty"`
	TimeBucket string   `json:"timeBucket,omitempty"`
}

// RerankRequest 是一次重排调用的全部输入。
//
// RecentSequence / InterestProfile 为 nil 表示调用方未提供，引擎会从 SignalProvider 拉取；
// 非 nil 的空序列表示调用方明确给出"无最近行为"。
type RerankRequest struct {
	UserID          string
	CandidateIDs    []string
	Context         *InteractionContext
	RecentSequence  RecentSequence
	InterestProfile *InterestProfile
	Limit           int

	// Explain 为 true 时结果附带每个曲目的打分标签
	Explain bool
}

// Validate 校验调用方输入，不修改请求。limit 必须在 [1, MaxLimit] 内；
// 缺省值 DefaultLimit 由接入层（HTTP）在构造请求时填入。
func (r *RerankRequest) Validate() error {
	if len(r.CandidateIDs) == 0 {
		return ErrEmptyCandidates
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return ErrInvalidLimit
	}
	return nil
}

// DedupCandidates 去掉重复的候选 ID，保留第一次出现的位置（基础先验也按该位置计算）。
func DedupCandidates(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RecommendContext 承载单次重排请求的全部信号，贯穿整个 Pipeline 透传。
// 所有字段在请求开始时构建，Pipeline 运行期间只读。
type RecommendContext struct {
	UserID    string
	RequestID string

	// Context 是情境提示（可为 nil）
	Context *InteractionContext

	// Recent 是最近行为序列（从旧到新）
	Recent RecentSequence

	// Interest 是长期兴趣画像（可为 nil）
	Interest *InterestProfile

	// Metadata 是候选与锚点曲目的元数据，缺失的 ID 不在 map 中
	Metadata map[string]*TrackMetadata

	// UserFeatures 是外部特征库中的用户级统计（可为空）
	UserFeatures map[string]float64

	// Labels 是请求级标签，用于 explain / 观测
	Labels map[string]utils.Label
}

// Mood 返回情绪提示，未设置时为空字符串。
func (rctx *RecommendContext) Mood() Mood {
	if rctx.Context == nil {
		return ""
	}
	return rctx.Context.Mood
}

// Activity 返回活动提示，未设置时为空字符串。
func (rctx *RecommendContext) Activity() Activity {
	if rctx.Context == nil {
		return ""
	}
	return rctx.Context.Activity
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
