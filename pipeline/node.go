package pipeline

import (
	"context"

	"github.com/rushteam/tunerank/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindScore       Kind = "score"       // 打分阶段：按策略为候选打分
	KindRank        Kind = "rank"        // 排序阶段：按分数排序
	KindReRank      Kind = "rerank"      // 重排阶段：截断等结果调整
	KindPostProcess Kind = "postprocess" // 后处理阶段：补充标签或最终结果修饰
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 items -> 输出 items"的形态，方便打分、排序、截断等操作串联。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
