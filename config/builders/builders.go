package builders

import (
	"github.com/rushteam/tunerank/config"
	"github.com/rushteam/tunerank/pkg/dsl"
	"github.com/rushteam/tunerank/rank"
	"github.com/rushteam/tunerank/rerank"
)

func init() {
	config.Register(rerank.StrategyHybrid, BuildHybrid)
	config.Register(rerank.StrategyHeuristic, BuildHeuristic)
}

// BuildHybrid 构建混合策略，默认条件为 model_loaded && mappable >= MinMappable
func BuildHybrid(deps config.StrategyDeps, when *dsl.Condition) (rerank.Strategy, error) {
	seq := deps.Sequential
	if seq == nil {
		seq = rank.NewSequential(0, 0, 0)
	}
	h := deps.Heuristic
	if h == nil {
		h = rank.NewHeuristic()
	}
	if when == nil {
		c, err := dsl.Compile(rerank.HybridCondition(seq.MinMappable))
		if err != nil {
			return rerank.Strategy{}, err
		}
		when = c
	}
	return rerank.Strategy{
		Name:   rerank.StrategyHybrid,
		When:   when,
		Scorer: &rerank.HybridScorer{Heuristic: h, Sequential: seq, Blender: rerank.DefaultBlender()},
	}, nil
}

// BuildHeuristic 构建启发式策略，默认恒激活
func BuildHeuristic(deps config.StrategyDeps, when *dsl.Condition) (rerank.Strategy, error) {
	h := deps.Heuristic
	if h == nil {
		h = rank.NewHeuristic()
	}
	if when == nil {
		when = dsl.MustCompile("true")
	}
	return rerank.Strategy{
		Name:   rerank.StrategyHeuristic,
		When:   when,
		Scorer: &rerank.HeuristicScorer{Heuristic: h},
	}, nil
}
