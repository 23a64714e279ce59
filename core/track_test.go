package core

import (
	"math"
	"reflect"
	"testing"
)

func TestParseAudioFeatures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]float64
	}{
		{"object", `{"energy": 0.8, "tempo": 120}`, map[string]float64{"energy": 0.8, "tempo": 120}},
		{"string values", `{"energy": "0.6", "mode": "minor"}`, map[string]float64{"energy": 0.6}},
		{"double encoded", `"{\"valence\": 0.2}"`, map[string]float64{"valence": 0.2}},
		{"non-finite dropped", `{"energy": "NaN", "valence": 0.1}`, map[string]float64{"valence": 0.1}},
		{"empty", ``, map[string]float64{}},
		{"garbage", `[1, 2`, map[string]float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAudioFeatures([]byte(tt.raw)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAudioFeatures(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTrackMetadata_Feature(t *testing.T) {
	var nilMeta *TrackMetadata
	if nilMeta.Feature(FeatureEnergy) != 0 || nilMeta.HasFeature(FeatureEnergy) {
		t.Error("nil metadata should have no features")
	}

	m := &TrackMetadata{ID: "t1", AudioFeatures: map[string]float64{FeatureEnergy: 0.9}}
	if !m.HasFeature(FeatureEnergy) || m.Feature(FeatureEnergy) != 0.9 {
		t.Errorf("energy = %v", m.Feature(FeatureEnergy))
	}
	if m.HasFeature(FeatureValence) {
		t.Error("valence should be missing")
	}
}

func TestScoreMap_Restrict(t *testing.T) {
	m := ScoreMap{"t1": 0.5, "t2": math.NaN(), "extra": 1, "t4": math.Inf(1)}
	got := m.Restrict([]string{"t1", "t2", "t3", "t4"})
	want := ScoreMap{"t1": 0.5, "t2": 0, "t3": 0, "t4": 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Restrict() = %v, want %v", got, want)
	}
}

func TestFeatureResult_Fold(t *testing.T) {
	ok := FeatureResult{Bundle: FeatureBundle{User: map[string]float64{"skip_rate_7d": 0.2}}}
	if !ok.Ok() || ok.Fold().Empty() {
		t.Error("successful result should keep its bundle")
	}

	failed := FeatureResult{Bundle: FeatureBundle{User: map[string]float64{"x": 1}}, Err: ErrStoreNotFound}
	if failed.Ok() || !failed.Fold().Empty() {
		t.Error("failed result should fold to an empty bundle")
	}
}
