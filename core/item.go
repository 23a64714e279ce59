package core

import "github.com/rushteam/tunerank/pkg/utils"

// Item 是重排链路中的统一承载结构：候选位置、分数、外部特征、标签。
// Labels 用于解释与观测；Score 用于排序决策；Position 是候选在输入中的原始下标，
// 同分时按 Position 升序决胜。
type Item struct {
	ID       string
	Position int
	Score    float64
	Features map[string]float64
	Labels   map[string]utils.Label
}

func NewItem(id string, position int) *Item {
	return &Item{
		ID:       id,
		Position: position,
		Score:    0,
		Features: make(map[string]float64),
		Labels:   make(map[string]utils.Label),
	}
}

// NewItems 按候选顺序构建 Item 列表。
func NewItems(ids []string) []*Item {
	items := make([]*Item, len(ids))
	for i, id := range ids {
		items[i] = NewItem(id, i)
	}
	return items
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}
