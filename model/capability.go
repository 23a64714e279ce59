package model

import (
	"sync/atomic"
)

// 结果中的模型名
const (
	// DefaultModelName 是已加载序列模型的默认名称
	DefaultModelName = "sasrec"
	// HeuristicModelName 是未加载序列模型时结果中报告的名称
	HeuristicModelName = "heuristic-seq"
)

// Capability 是序列模型的运行时能力：NoModel 或 Loaded(model, vocab)。
// 进程启动时选定一次，显式传入引擎；值不可变。
type Capability struct {
	model SequentialModel
	vocab *Vocabulary
}

// NoModel 返回未加载模型的能力。
func NoModel() Capability {
	return Capability{}
}

// NewLoaded 返回已加载模型的能力；model 或 vocab 为空时等价于 NoModel。
func NewLoaded(m SequentialModel, vocab *Vocabulary) Capability {
	if m == nil || vocab == nil || vocab.Len() == 0 {
		return NoModel()
	}
	return Capability{model: m, vocab: vocab}
}

// Loaded 判断模型是否可用。
func (c Capability) Loaded() bool {
	return c.model != nil
}

// Model 返回模型；NoModel 时为 nil。
func (c Capability) Model() SequentialModel {
	return c.model
}

// Vocab 返回词表；NoModel 时为 nil。
func (c Capability) Vocab() *Vocabulary {
	return c.vocab
}

// Name 返回结果中报告的模型名。
func (c Capability) Name() string {
	if c.model == nil {
		return HeuristicModelName
	}
	return c.model.Name()
}

// Holder 持有进程级的模型能力，热更新通过原子指针替换，
// 进行中的请求始终看到一致的 (model, vocab) 组合。
type Holder struct {
	p atomic.Pointer[Capability]
}

// NewHolder 创建 Holder。
func NewHolder(c Capability) *Holder {
	h := &Holder{}
	h.Swap(c)
	return h
}

// Load 返回当前能力。
func (h *Holder) Load() Capability {
	if h == nil {
		return NoModel()
	}
	if c := h.p.Load(); c != nil {
		return *c
	}
	return NoModel()
}

// Swap 原子替换能力，返回旧值。
func (h *Holder) Swap(c Capability) Capability {
	old := h.p.Swap(&c)
	if c.Loaded() {
		ModelLoaded.Set(1)
	} else {
		ModelLoaded.Set(0)
	}
	if old == nil {
		return NoModel()
	}
	return *old
}
