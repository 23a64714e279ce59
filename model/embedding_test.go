package model

import (
	"context"
	"testing"
)

// 下标 1 与 [1,0] 方向一致，下标 3 相反
func testEmbeddingModel(t *testing.T) *EmbeddingModel {
	t.Helper()
	m, err := NewEmbeddingModel("", [][]float64{
		{0, 0},
		{1, 0},
		{0, 1},
		{-1, 0},
	}, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestEmbeddingModel_PredictNext(t *testing.T) {
	m := testEmbeddingModel(t)
	if m.Name() != DefaultModelName {
		t.Errorf("Name() = %q, want %q", m.Name(), DefaultModelName)
	}

	preds, err := m.PredictNext(context.Background(), []int{1, 1, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 2 {
		t.Fatalf("len(preds) = %d, want 2", len(preds))
	}
	if preds[0].Index != 1 {
		t.Errorf("top prediction = %d, want 1", preds[0].Index)
	}
	for i, p := range preds {
		if p.Index == PaddingIndex {
			t.Error("padding must never be predicted")
		}
		if i > 0 && p.Prob > preds[i-1].Prob {
			t.Error("predictions must be ordered by probability")
		}
	}

	all, err := m.PredictNext(context.Background(), []int{1, 2}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("topK=0 should return every non-padding index, got %d", len(all))
	}
	var sum float64
	for _, p := range all {
		sum += p.Prob
	}
	if sum <= 0 || sum >= 1 {
		t.Errorf("sum of non-padding probabilities = %v, want in (0,1)", sum)
	}
}

func TestEmbeddingModel_Window(t *testing.T) {
	m := testEmbeddingModel(t)
	m.Window = 2
	// 窗口外的越界下标不参与推理
	if _, err := m.PredictNext(context.Background(), []int{99, 1, 2}, 1); err != nil {
		t.Errorf("index outside the window should be ignored, got %v", err)
	}
	if _, err := m.PredictNext(context.Background(), []int{1, 99}, 1); err == nil {
		t.Error("out of range index should fail")
	}
}

func TestNewEmbeddingModel_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		items [][]float64
		pos   [][]float64
		bias  []float64
	}{
		{"only padding", [][]float64{{0}}, nil, nil},
		{"ragged items", [][]float64{{0, 0}, {1}}, nil, nil},
		{"ragged positions", [][]float64{{0, 0}, {1, 1}}, [][]float64{{1}}, nil},
		{"bias length", [][]float64{{0, 0}, {1, 1}}, nil, []float64{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEmbeddingModel("x", tt.items, tt.pos, tt.bias, 0); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEmbeddingModel_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := testEmbeddingModel(t).PredictNext(ctx, []int{1}, 1); err == nil {
		t.Error("canceled context should fail")
	}
}
