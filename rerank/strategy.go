package rerank

import (
	"context"
	"fmt"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/model"
	"github.com/rushteam/tunerank/pkg/dsl"
	"github.com/rushteam/tunerank/rank"
)

// 内置策略名
const (
	StrategyHybrid    = "hybrid"
	StrategyHeuristic = "heuristic"
)

// ScoreInput 是策略打分的全部输入，请求级只读。
type ScoreInput struct {
	RCtx       *core.RecommendContext
	Candidates []string
	Capability model.Capability
}

// Scorer 为候选打分，返回的 ScoreMap 定义域必须覆盖 Candidates。
type Scorer interface {
	Name() string
	Score(ctx context.Context, in *ScoreInput) (core.ScoreMap, error)
}

// Strategy 是带激活条件的打分策略。
// 引擎按优先级顺序选择第一个条件满足的策略；策略执行出错时继续尝试下一个。
type Strategy struct {
	Name   string
	When   *dsl.Condition
	Scorer Scorer
}

// HeuristicScorer 只使用启发式打分，始终可用。
type HeuristicScorer struct {
	Heuristic *rank.Heuristic
}

func (s *HeuristicScorer) Name() string { return StrategyHeuristic }

func (s *HeuristicScorer) Score(_ context.Context, in *ScoreInput) (core.ScoreMap, error) {
	return s.Heuristic.Score(in.RCtx, in.Candidates), nil
}

// HybridScorer 混合序列模型概率与启发式分数。
type HybridScorer struct {
	Heuristic  *rank.Heuristic
	Sequential *rank.Sequential
	Blender    Blender
}

func (s *HybridScorer) Name() string { return StrategyHybrid }

func (s *HybridScorer) Score(ctx context.Context, in *ScoreInput) (core.ScoreMap, error) {
	seq, err := s.Sequential.Score(ctx, in.Capability, in.RCtx.Recent, in.Candidates)
	if err != nil {
		return nil, err
	}
	heur := s.Heuristic.Score(in.RCtx, in.Candidates)
	return s.Blender.Hybrid(in.Candidates, seq, heur), nil
}

// HybridCondition 返回混合策略的激活条件表达式
func HybridCondition(minMappable int) string {
	if minMappable <= 0 {
		minMappable = model.MinMappable
	}
	return fmt.Sprintf("model_loaded && mappable >= %d", minMappable)
}

// DefaultStrategies 返回默认的策略优先级：
//
//	hybrid     when model_loaded && mappable >= 3
//	heuristic  when true
func DefaultStrategies(seq *rank.Sequential) []Strategy {
	if seq == nil {
		seq = rank.NewSequential(0, 0, 0)
	}
	h := rank.NewHeuristic()
	return []Strategy{
		{
			Name:   StrategyHybrid,
			When:   dsl.MustCompile(HybridCondition(seq.MinMappable)),
			Scorer: &HybridScorer{Heuristic: h, Sequential: seq, Blender: DefaultBlender()},
		},
		{
			Name:   StrategyHeuristic,
			When:   dsl.MustCompile("true"),
			Scorer: &HeuristicScorer{Heuristic: h},
		},
	}
}
