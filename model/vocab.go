package model

import "fmt"

// Vocabulary 是训练时确定的曲目 ID <-> 词表下标映射，下标 0 保留给填充位。
// 构建后只读，可并发访问。
type Vocabulary struct {
	forward  map[string]int
	backward map[int]string
}

// NewVocabulary 按顺序构建词表：items[i] 的下标为 i+1。重复的 ID 保留第一次出现。
func NewVocabulary(items []string) *Vocabulary {
	v := &Vocabulary{
		forward:  make(map[string]int, len(items)),
		backward: make(map[int]string, len(items)),
	}
	for i, id := range items {
		if id == "" {
			continue
		}
		if _, ok := v.forward[id]; ok {
			continue
		}
		v.forward[id] = i + 1
		v.backward[i+1] = id
	}
	return v
}

// NewVocabularyFromMap 由训练任务导出的 forward map 构建词表。
// 下标必须 > 0 且唯一。
func NewVocabularyFromMap(forward map[string]int) (*Vocabulary, error) {
	v := &Vocabulary{
		forward:  make(map[string]int, len(forward)),
		backward: make(map[int]string, len(forward)),
	}
	for id, idx := range forward {
		if idx <= PaddingIndex {
			return nil, fmt.Errorf("vocabulary: track %q has reserved index %d", id, idx)
		}
		if other, dup := v.backward[idx]; dup {
			return nil, fmt.Errorf("vocabulary: index %d shared by %q and %q", idx, other, id)
		}
		v.forward[id] = idx
		v.backward[idx] = id
	}
	return v, nil
}

// Index 返回曲目的词表下标。
func (v *Vocabulary) Index(trackID string) (int, bool) {
	if v == nil {
		return 0, false
	}
	idx, ok := v.forward[trackID]
	return idx, ok
}

// TrackID 返回词表下标对应的曲目 ID；填充位与未知下标返回 ("", false)。
func (v *Vocabulary) TrackID(idx int) (string, bool) {
	if v == nil || idx == PaddingIndex {
		return "", false
	}
	id, ok := v.backward[idx]
	return id, ok
}

// Len 返回词表中的曲目数（不含填充位）。
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.forward)
}

// MaxIndex 返回最大下标。
func (v *Vocabulary) MaxIndex() int {
	if v == nil {
		return 0
	}
	hi := 0
	for idx := range v.backward {
		if idx > hi {
			hi = idx
		}
	}
	return hi
}

// Map 把曲目序列映射为下标序列，丢弃不在词表中的条目，保持原有顺序。
func (v *Vocabulary) Map(seq []string) []int {
	out := make([]int, 0, len(seq))
	for _, id := range seq {
		if idx, ok := v.Index(id); ok {
			out = append(out, idx)
		}
	}
	return out
}
