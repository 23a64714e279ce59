package core

import (
	"reflect"
	"testing"
)

func TestRecentSequence(t *testing.T) {
	seq := RecentSequence{"a", "b", "c", "d"}

	if anchor, ok := seq.Anchor(); !ok || anchor != "d" {
		t.Errorf("Anchor() = (%q, %v), want (d, true)", anchor, ok)
	}
	if _, ok := RecentSequence(nil).Anchor(); ok {
		t.Error("empty sequence should have no anchor")
	}

	tests := []struct {
		n    int
		want RecentSequence
	}{
		{2, RecentSequence{"c", "d"}},
		{4, seq},
		{10, seq},
		{0, seq},
	}
	for _, tt := range tests {
		if got := seq.Tail(tt.n); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tail(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestParseInterestProfile(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantOK      bool
		wantArtists map[string]float64
		wantGenres  map[string]float64
	}{
		{
			name:        "object",
			raw:         `{"topArtists": {"A": 0.8}, "topGenres": {"jazz": 0.5}}`,
			wantOK:      true,
			wantArtists: map[string]float64{"A": 0.8},
			wantGenres:  map[string]float64{"jazz": 0.5},
		},
		{
			name:        "double encoded",
			raw:         `"{\"topArtists\": {\"A\": 0.3}}"`,
			wantOK:      true,
			wantArtists: map[string]float64{"A": 0.3},
			wantGenres:  map[string]float64{},
		},
		{
			name:        "lenient weights",
			raw:         `{"topArtists": {"A": "0.4", "B": "loud", "C": null}, "topGenres": [1, 2]}`,
			wantOK:      true,
			wantArtists: map[string]float64{"A": 0.4, "B": 0, "C": 0},
			wantGenres:  map[string]float64{},
		},
		{name: "empty", raw: ``, wantOK: false},
		{name: "null", raw: `null`, wantOK: false},
		{name: "garbage", raw: `{not json`, wantOK: false},
		{name: "encoded garbage", raw: `"not json"`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ParseInterestProfile([]byte(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if p != nil {
					t.Errorf("profile = %+v, want nil", p)
				}
				return
			}
			if !reflect.DeepEqual(p.TopArtists, tt.wantArtists) {
				t.Errorf("TopArtists = %v, want %v", p.TopArtists, tt.wantArtists)
			}
			if !reflect.DeepEqual(p.TopGenres, tt.wantGenres) {
				t.Errorf("TopGenres = %v, want %v", p.TopGenres, tt.wantGenres)
			}
		})
	}
}

func TestInterestProfile_NilSafe(t *testing.T) {
	var p *InterestProfile
	if _, ok := p.ArtistWeight("A"); ok {
		t.Error("nil profile should have no artist weight")
	}
	if _, ok := p.GenreWeight("pop"); ok {
		t.Error("nil profile should have no genre weight")
	}
}

func TestEventType_Valid(t *testing.T) {
	for _, et := range []EventType{EventPlay, EventLike, EventSkip} {
		if !et.Valid() {
			t.Errorf("%s should be valid", et)
		}
	}
	if EventType("SHARE").Valid() {
		t.Error("SHARE should be invalid")
	}
}
