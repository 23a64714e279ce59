package rank

import (
	"math"
	"testing"

	"github.com/rushteam/tunerank/core"
)

const eps = 1e-12

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func TestHeuristic_BasePriorOnly(t *testing.T) {
	scores := NewHeuristic().Score(&core.RecommendContext{}, []string{"t1", "t2", "t3"})

	want := map[string]float64{"t1": 1.0, "t2": 0.5, "t3": 1.0 / 3}
	for id, w := range want {
		if !near(scores[id], w) {
			t.Errorf("score[%s] = %v, want %v", id, scores[id], w)
		}
	}
	if len(scores) != 3 {
		t.Errorf("len = %d, want 3", len(scores))
	}
}

func TestHeuristic_PriorMonotonic(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	scores := NewHeuristic().Score(&core.RecommendContext{}, ids)
	for i := 1; i < len(ids); i++ {
		if scores[ids[i]] > scores[ids[i-1]] {
			t.Errorf("prior not monotonic at %d: %v > %v", i, scores[ids[i]], scores[ids[i-1]])
		}
	}
}

func TestHeuristic_Continuity(t *testing.T) {
	meta := map[string]*core.TrackMetadata{
		"t1":     {ID: "t1", Artist: "A", Genre: "rock"},
		"t2":     {ID: "t2", Artist: "B", Genre: "jazz"},
		"t3":     {ID: "t3", Artist: "C", Genre: "pop"},
		"anchor": {ID: "anchor", Artist: "B", Genre: "metal"},
	}
	candidates := []string{"t1", "t2", "t3"}

	baseline := NewHeuristic().Score(&core.RecommendContext{Metadata: meta}, candidates)
	boosted := NewHeuristic().Score(&core.RecommendContext{
		Metadata: meta,
		Recent:   core.RecentSequence{"x", "anchor"},
	}, candidates)

	if !near(boosted["t2"]-baseline["t2"], ContinuityArtistBoost) {
		t.Errorf("t2 boost = %v, want %v", boosted["t2"]-baseline["t2"], ContinuityArtistBoost)
	}
	for _, id := range []string{"t1", "t3"} {
		if boosted[id] != baseline[id] {
			t.Errorf("%s changed without continuity: %v vs %v", id, boosted[id], baseline[id])
		}
	}
}

func TestHeuristic_UnknownAnchor(t *testing.T) {
	meta := map[string]*core.TrackMetadata{"t1": {ID: "t1", Artist: "A", Genre: "rock"}}
	candidates := []string{"t1"}

	none := NewHeuristic().Score(&core.RecommendContext{Metadata: meta}, candidates)
	unknown := NewHeuristic().Score(&core.RecommendContext{
		Metadata: meta,
		Recent:   core.RecentSequence{"ghost"},
	}, candidates)
	if none["t1"] != unknown["t1"] {
		t.Errorf("unknown anchor changed score: %v vs %v", unknown["t1"], none["t1"])
	}
}

func TestContinuity_EmptyFields(t *testing.T) {
	anchor := &core.TrackMetadata{}
	if got := Continuity(&core.TrackMetadata{}, anchor); got != 0 {
		t.Errorf("empty artist/genre should not match, got %v", got)
	}
	if got := Continuity(&core.TrackMetadata{Artist: "A", Genre: "g"}, &core.TrackMetadata{Artist: "A", Genre: "g"}); !near(got, 0.25) {
		t.Errorf("Continuity = %v, want 0.25", got)
	}
}

func TestInterest(t *testing.T) {
	profile := &core.InterestProfile{
		TopArtists: map[string]float64{"A": 0.5, "Z": math.NaN()},
		TopGenres:  map[string]float64{"jazz": 1},
	}
	tests := []struct {
		name string
		m    *core.TrackMetadata
		want float64
	}{
		{"artist and genre", &core.TrackMetadata{Artist: "A", Genre: "jazz"}, 0.20*0.5 + 0.15},
		{"genre only", &core.TrackMetadata{Artist: "Q", Genre: "jazz"}, 0.15},
		{"non-finite weight", &core.TrackMetadata{Artist: "Z"}, 0},
		{"missing metadata", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interest(tt.m, profile); !near(got, tt.want) {
				t.Errorf("Interest() = %v, want %v", got, tt.want)
			}
		})
	}
	if Interest(&core.TrackMetadata{Artist: "A"}, nil) != 0 {
		t.Error("nil profile should contribute nothing")
	}
}

func TestContextBoosts(t *testing.T) {
	m := &core.TrackMetadata{AudioFeatures: map[string]float64{
		core.FeatureEnergy:       0.8,
		core.FeatureValence:      0.6,
		core.FeatureDanceability: 0.4,
	}}
	activity := []struct {
		activity core.Activity
		want     float64
	}{
		{core.ActivityExercise, 0.10*0.8 + 0.05*0.4},
		{core.ActivityRelax, 0.10 * (1 - 0.8)},
		{core.ActivityParty, 0.12*0.4 + 0.06*0.8},
		{core.ActivityWork, 0.05 * (1 - 0.3)},
		{"SLEEP", 0},
		{"", 0},
	}
	for _, tt := range activity {
		t.Run(string(tt.activity), func(t *testing.T) {
			if got := ActivityBoost(m, tt.activity); !near(got, tt.want) {
				t.Errorf("ActivityBoost(%s) = %v, want %v", tt.activity, got, tt.want)
			}
		})
	}

	mood := []struct {
		mood core.Mood
		want float64
	}{
		{core.MoodCalm, 0.08 * (1 - 0.8)},
		{core.MoodEnergetic, 0.08 * 0.8},
		{core.MoodHappy, 0.07 * 0.6},
		{core.MoodSad, 0.07 * (1 - 0.6)},
		{"ANGRY", 0},
	}
	for _, tt := range mood {
		t.Run(string(tt.mood), func(t *testing.T) {
			if got := MoodBoost(m, tt.mood); !near(got, tt.want) {
				t.Errorf("MoodBoost(%s) = %v, want %v", tt.mood, got, tt.want)
			}
		})
	}

	// 缺失音频特征按 0 处理
	if got := ActivityBoost(nil, core.ActivityRelax); !near(got, 0.10) {
		t.Errorf("RELAX with no metadata = %v, want 0.10", got)
	}
}

func TestHeuristic_DuplicateCandidates(t *testing.T) {
	scores := NewHeuristic().Score(nil, []string{"t1", "t2", "t1"})
	if scores["t1"] != 1.0 {
		t.Errorf("duplicate candidate should keep its first position, got %v", scores["t1"])
	}
}
