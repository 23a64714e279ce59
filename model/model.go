package model

import "context"

// 序列模型常量
const (
	// PaddingIndex 是词表中的填充位，永远不会出现在预测结果中
	PaddingIndex = 0
	// DefaultWindow 是模型的固定上下文窗口（最近 50 个可映射条目）
	DefaultWindow = 50
	// MinMappable 是启用序列模型所需的最少可映射条目数
	MinMappable = 3
)

// Prediction 是一次下一曲目预测的结果项。
type Prediction struct {
	Index int     // 词表下标（> 0）
	Prob  float64 // 概率
}

// SequentialModel 是下一曲目预测的最小抽象：输入词表下标序列（从旧到新），
// 输出概率最高的 topK 个非填充下标（按概率降序）。
//
// 具体实现可以是本地推理（EmbeddingModel）或远程 RPC（RPCModel）。
// 实现必须可被并发调用。
type SequentialModel interface {
	Name() string
	PredictNext(ctx context.Context, seq []int, topK int) ([]Prediction, error)
}
