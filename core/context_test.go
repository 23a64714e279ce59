package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestRerankRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       RerankRequest
		wantErr   error
		wantLimit int
	}{
		{"zero limit", RerankRequest{CandidateIDs: []string{"t1"}}, ErrInvalidLimit, 0},
		{"explicit limit", RerankRequest{CandidateIDs: []string{"t1"}, Limit: 5}, nil, 5},
		{"min limit", RerankRequest{CandidateIDs: []string{"t1"}, Limit: 1}, nil, 1},
		{"max limit", RerankRequest{CandidateIDs: []string{"t1"}, Limit: MaxLimit}, nil, MaxLimit},
		{"empty candidates", RerankRequest{Limit: 5}, ErrEmptyCandidates, 5},
		{"limit above max", RerankRequest{CandidateIDs: []string{"t1"}, Limit: MaxLimit + 1}, ErrInvalidLimit, MaxLimit + 1},
		{"negative limit", RerankRequest{CandidateIDs: []string{"t1"}, Limit: -1}, ErrInvalidLimit, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil && !IsInvalidInput(err) {
				t.Errorf("caller error %v should be INVALID_INPUT", err)
			}
			if req.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", req.Limit, tt.wantLimit)
			}
		})
	}
}

func TestDedupCandidates(t *testing.T) {
	got := DedupCandidates([]string{"t1", "t2", "t1", "t3", "t2"})
	want := []string{"t1", "t2", "t3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DedupCandidates() = %v, want %v", got, want)
	}
}

func TestRecommendContext_Hints(t *testing.T) {
	var empty RecommendContext
	if empty.Mood() != "" || empty.Activity() != "" {
		t.Error("nil context should yield empty hints")
	}

	rctx := &RecommendContext{Context: &InteractionContext{Mood: MoodCalm, Activity: ActivityWork}}
	if rctx.Mood() != MoodCalm || rctx.Activity() != ActivityWork {
		t.Errorf("hints = %q/%q", rctx.Mood(), rctx.Activity())
	}
}
