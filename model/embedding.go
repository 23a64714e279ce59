package model

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// EmbeddingModel 是序列模型的本地推理实现（SASRec 导出权重的轻量版本）。
//
// 推理过程：
//   - 输入：最近 ≤Window 个下标，叠加位置嵌入
//   - 以最后一个位置为 query，对整个窗口做单头缩放点积注意力，得到序列表示 h
//   - logits[j] = h · ItemEmbeddings[j] + OutputBias[j]（输出层与物品嵌入共享）
//   - 对全部词表做 softmax，返回 topK 个非填充下标
//
// 工程特征：
//   - 实时性：好（纯 CPU，O(Window·d + V·d)）
//   - 无外部依赖，权重只读，可并发调用
type EmbeddingModel struct {
	name string

	// ItemEmbeddings[idx] 是下标 idx 的物品嵌入，第 0 行是填充位
	ItemEmbeddings [][]float64
	// PositionEmbeddings[i] 是窗口内第 i 个位置（从旧到新）的位置嵌入，可为空
	PositionEmbeddings [][]float64
	// OutputBias 是输出层偏置，可为空
	OutputBias []float64
	// Window 是上下文窗口
	Window int

	dim int
}

// NewEmbeddingModel 创建本地序列模型并校验权重形状。
func NewEmbeddingModel(name string, items, positions [][]float64, bias []float64, window int) (*EmbeddingModel, error) {
	if len(items) < 2 {
		return nil, fmt.Errorf("embedding model: need at least one item besides padding, got %d rows", len(items))
	}
	dim := len(items[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedding model: empty embedding dimension")
	}
	for i, row := range items {
		if len(row) != dim {
			return nil, fmt.Errorf("embedding model: item row %d has dim %d, want %d", i, len(row), dim)
		}
	}
	for i, row := range positions {
		if len(row) != dim {
			return nil, fmt.Errorf("embedding model: position row %d has dim %d, want %d", i, len(row), dim)
		}
	}
	if len(bias) != 0 && len(bias) != len(items) {
		return nil, fmt.Errorf("embedding model: bias has %d entries, want %d", len(bias), len(items))
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if len(positions) > 0 && len(positions) < window {
		window = len(positions)
	}
	if name == "" {
		name = DefaultModelName
	}
	return &EmbeddingModel{
		name:               name,
		ItemEmbeddings:     items,
		PositionEmbeddings: positions,
		OutputBias:         bias,
		Window:             window,
		dim:                dim,
	}, nil
}

func (m *EmbeddingModel) Name() string {
	return m.name
}

// VocabSize 返回输出维度（含填充位）。
func (m *EmbeddingModel) VocabSize() int {
	return len(m.ItemEmbeddings)
}

// PredictNext 预测下一曲目（实现 SequentialModel）。
func (m *EmbeddingModel) PredictNext(ctx context.Context, seq []int, topK int) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(seq) > m.Window {
		seq = seq[len(seq)-m.Window:]
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("embedding model: empty sequence")
	}

	// 输入表示：物品嵌入 + 位置嵌入（位置按窗口右对齐）
	offset := 0
	if len(m.PositionEmbeddings) > 0 {
		offset = len(m.PositionEmbeddings) - len(seq)
		if offset < 0 {
			offset = 0
		}
	}
	xs := make([][]float64, len(seq))
	for i, idx := range seq {
		if idx <= PaddingIndex || idx >= len(m.ItemEmbeddings) {
			return nil, fmt.Errorf("embedding model: index %d out of range [1, %d)", idx, len(m.ItemEmbeddings))
		}
		x := make([]float64, m.dim)
		copy(x, m.ItemEmbeddings[idx])
		if len(m.PositionEmbeddings) > 0 {
			addTo(x, m.PositionEmbeddings[offset+i])
		}
		xs[i] = x
	}

	// 最后位置做 query 的单头注意力
	q := xs[len(xs)-1]
	scale := 1 / math.Sqrt(float64(m.dim))
	attn := make([]float64, len(xs))
	for i, x := range xs {
		attn[i] = dot(q, x) * scale
	}
	softmaxInPlace(attn)

	h := make([]float64, m.dim)
	for i, x := range xs {
		for d := range h {
			h[d] += attn[i] * x[d]
		}
	}

	logits := make([]float64, len(m.ItemEmbeddings))
	for j, e := range m.ItemEmbeddings {
		logits[j] = dot(h, e)
		if len(m.OutputBias) > 0 {
			logits[j] += m.OutputBias[j]
		}
	}
	softmaxInPlace(logits)

	return topPredictions(logits, topK), nil
}

// topPredictions 返回概率最高的 topK 个非填充下标；同概率按下标升序。
func topPredictions(probs []float64, topK int) []Prediction {
	preds := make([]Prediction, 0, len(probs))
	for idx, p := range probs {
		if idx == PaddingIndex {
			continue
		}
		preds = append(preds, Prediction{Index: idx, Prob: p})
	}
	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Prob > preds[j].Prob
	})
	if topK > 0 && len(preds) > topK {
		preds = preds[:topK]
	}
	return preds
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func addTo(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func softmaxInPlace(xs []float64) {
	if len(xs) == 0 {
		return
	}
	hi := math.Inf(-1)
	for _, x := range xs {
		if x > hi {
			hi = x
		}
	}
	var sum float64
	for i, x := range xs {
		xs[i] = math.Exp(x - hi)
		sum += xs[i]
	}
	for i := range xs {
		xs[i] /= sum
	}
}

var _ SequentialModel = (*EmbeddingModel)(nil)
