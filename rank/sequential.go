package rank

import (
	"context"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/model"
)

// DefaultTopK 是序列模型单次预测返回的最大条目数
const DefaultTopK = 500

var (
	// ErrModelNotLoaded 表示没有可用的序列模型
	ErrModelNotLoaded = core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported, "model: sequential model not loaded")

	// ErrInsufficientSequence 表示可映射的序列条目不足
	ErrInsufficientSequence = core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported, "model: not enough mappable sequence entries")
)

// Sequential 是基于序列模型的打分策略：以最近行为序列预测下一曲目概率。
//
//   - 序列先经词表映射，不在词表中的条目被丢弃
//   - 可映射条目少于 MinMappable 时返回 ErrInsufficientSequence，不做填充
//   - 只取最近 Window 个可映射条目
//   - 预测结果映射回曲目 ID，未出现在结果中的候选概率为 0
type Sequential struct {
	TopK        int
	MinMappable int
	Window      int
}

// NewSequential 创建序列打分器；参数 <= 0 时使用默认值。
func NewSequential(topK, minMappable, window int) *Sequential {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minMappable <= 0 {
		minMappable = model.MinMappable
	}
	if window <= 0 {
		window = model.DefaultWindow
	}
	return &Sequential{TopK: topK, MinMappable: minMappable, Window: window}
}

func (s *Sequential) Name() string { return "sequential" }

// Mappable 返回可映射的条目数。
func (s *Sequential) Mappable(c model.Capability, recent core.RecentSequence) int {
	if !c.Loaded() {
		return 0
	}
	return len(c.Vocab().Map(recent))
}

// Score 返回每个候选的下一曲目概率。
func (s *Sequential) Score(ctx context.Context, c model.Capability, recent core.RecentSequence, candidates []string) (core.ScoreMap, error) {
	if !c.Loaded() {
		return nil, ErrModelNotLoaded
	}
	vocab := c.Vocab()
	seq := vocab.Map(recent)
	if len(seq) < s.MinMappable {
		return nil, ErrInsufficientSequence
	}
	if len(seq) > s.Window {
		seq = seq[len(seq)-s.Window:]
	}

	topK := s.TopK
	if n := vocab.Len(); topK > n {
		topK = n
	}
	preds, err := c.Model().PredictNext(ctx, seq, topK)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "model: sequential inference failed", err)
	}

	scores := core.NewScoreMap(candidates)
	for _, p := range preds {
		id, ok := vocab.TrackID(p.Index)
		if !ok {
			continue
		}
		if _, isCandidate := scores[id]; isCandidate {
			scores[id] = core.Finite(p.Prob)
		}
	}
	return scores, nil
}
