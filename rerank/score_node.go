package rerank

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/model"
	"github.com/rushteam/tunerank/pipeline"
	"github.com/rushteam/tunerank/pkg/dsl"
	"github.com/rushteam/tunerank/pkg/utils"
)

// LabelStrategy 是记录命中策略的请求级 Label key
const LabelStrategy = "strategy"

// ErrNoStrategy 表示没有任何策略可用（策略列表缺少兜底策略）
var ErrNoStrategy = core.NewDomainError(core.ModuleRerank, core.ErrorCodeInternalError, "rerank: no scoring strategy applicable")

// ScoreNode 按优先级选择第一个激活条件满足且执行成功的策略为候选打分。
// - 写入 item labels：strategy、score
// - 写入请求 labels：strategy
// - 不改变 items 顺序
type ScoreNode struct {
	Strategies []Strategy
	Facts      dsl.Facts
	Capability model.Capability
	Logger     zerolog.Logger
}

func (n *ScoreNode) Name() string        { return "rerank.score" }
func (n *ScoreNode) Kind() pipeline.Kind { return pipeline.KindScore }

func (n *ScoreNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	candidates := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			candidates = append(candidates, it.ID)
		}
	}
	in := ScoreInput{RCtx: rctx, Candidates: candidates, Capability: n.Capability}

	for _, s := range n.Strategies {
		ok, err := s.When.Evaluate(n.Facts)
		if err != nil {
			n.Logger.Warn().Err(err).Str("strategy", s.Name).Msg("strategy condition evaluation failed")
			continue
		}
		if !ok {
			continue
		}

		scores, err := s.Scorer.Score(ctx, &in)
		if err != nil {
			StrategyFallthroughTotal.WithLabelValues(s.Name).Inc()
			n.Logger.Warn().Err(err).
				Str("user_id", rctx.UserID).
				Str("request_id", rctx.RequestID).
				Str("strategy", s.Name).
				Msg("scoring strategy failed, falling through")
			continue
		}

		scores = scores.Restrict(candidates)
		for _, it := range items {
			if it == nil {
				continue
			}
			it.Score = scores[it.ID]
			it.PutLabel("strategy", utils.Label{Value: s.Name, Source: "rerank"})
			it.PutLabel("score", utils.Label{Value: strconv.FormatFloat(it.Score, 'f', -1, 64), Source: "rerank"})
		}
		rctx.PutLabel(LabelStrategy, utils.Label{Value: s.Name, Source: "rerank"})
		return items, nil
	}
	return nil, ErrNoStrategy
}

// FeatureLabelNode 把外部特征中不参与打分的统计作为解释标签附加到曲目上。
// - 写入 item labels：popularity_score、track_play_count_7d
// - 写入请求 labels：user_skip_rate_7d、user_like_rate_7d
type FeatureLabelNode struct {
	Bundle core.FeatureBundle
}

// 作为解释标签透传的外部特征
var (
	trackLabelFeatures = map[string]string{
		"popularity_score": "popularity_score",
		"play_count_7d":    "track_play_count_7d",
	}
	userLabelFeatures = map[string]string{
		"skip_rate_7d": "user_skip_rate_7d",
		"like_rate_7d": "user_like_rate_7d",
	}
)

func (n *FeatureLabelNode) Name() string        { return "rerank.feature_labels" }
func (n *FeatureLabelNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *FeatureLabelNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Bundle.Empty() {
		return items, nil
	}
	for feature, key := range userLabelFeatures {
		if v, ok := n.Bundle.User[feature]; ok {
			rctx.PutLabel(key, utils.Label{Value: formatFeature(v), Source: "feature"})
		}
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		feats := n.Bundle.Track(it.ID)
		for feature, key := range trackLabelFeatures {
			if v, ok := feats[feature]; ok {
				it.Features[feature] = v
				it.PutLabel(key, utils.Label{Value: formatFeature(v), Source: "feature"})
			}
		}
	}
	return items, nil
}

func formatFeature(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// SortNode 按分数降序稳定排序，同分按候选原始位置。
type SortNode struct{}

func (n *SortNode) Name() string        { return "rerank.sort" }
func (n *SortNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *SortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	SortItems(items)
	return items, nil
}
