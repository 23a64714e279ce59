package conv

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   float64
		wantOK bool
	}{
		{"float64", 0.25, 0.25, true},
		{"int", 3, 3, true},
		{"numeric string", " 0.7 ", 0.7, true},
		{"json number", json.Number("0.5"), 0.5, true},
		{"bool", true, 1, true},
		{"garbage string", "loud", 0, false},
		{"nil", nil, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf string", "Inf", 0, false},
		{"slice", []int{1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFloat(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseFloat(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseFloat(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMapToFloat64(t *testing.T) {
	got := MapToFloat64(map[string]any{
		"energy":  0.8,
		"valence": "0.3",
		"mode":    "minor",
	})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %v", len(got), got)
	}
	if got["valence"] != 0.3 {
		t.Errorf("valence = %v, want 0.3", got["valence"])
	}
}
