package feature

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/tunerank/core"
)

type fakeSource struct {
	mu          sync.Mutex
	user        map[string]float64
	userErr     error
	tracks      map[string]map[string]float64
	batchErr    error
	failTracks  map[string]bool
	delay       time.Duration
	trackCalls  atomic.Int32
	batchCalled atomic.Int32
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) UserFeatures(ctx context.Context, userID string) (map[string]float64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.userErr != nil {
		return nil, s.userErr
	}
	return s.user, nil
}

func (s *fakeSource) TrackFeatures(ctx context.Context, ids []string) (map[string]map[string]float64, error) {
	s.trackCalls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if len(ids) > 1 {
		s.batchCalled.Add(1)
		if s.batchErr != nil {
			return nil, s.batchErr
		}
	}
	out := make(map[string]map[string]float64)
	for _, id := range ids {
		if s.failTracks[id] {
			return nil, errors.New("lookup failed: " + id)
		}
		if f, ok := s.tracks[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func TestFetcher_Disabled(t *testing.T) {
	var f *Fetcher
	if f.Enabled() {
		t.Fatal("nil fetcher should be disabled")
	}
	res := NewFetcher(nil).Fetch(context.Background(), "u1", []string{"t1"}, nil)
	if res.Ok() || !res.Fold().Empty() {
		t.Errorf("disabled fetch = %+v, want unavailable and empty fold", res)
	}
}

func TestFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name       string
		source     *fakeSource
		trackIDs   []string
		wantOK     bool
		wantTracks []string
		wantUser   bool
	}{
		{
			name: "batch ok",
			source: &fakeSource{
				user:   map[string]float64{"skip_rate_7d": 0.2},
				tracks: map[string]map[string]float64{"t1": {"energy": 0.9}, "t2": {"energy": 0.1}},
			},
			trackIDs:   []string{"t1", "t2", "t3"},
			wantOK:     true,
			wantTracks: []string{"t1", "t2"},
			wantUser:   true,
		},
		{
			name: "batch fails, per-track isolation drops only failing track",
			source: &fakeSource{
				user:       map[string]float64{"skip_rate_7d": 0.2},
				tracks:     map[string]map[string]float64{"t1": {"energy": 0.9}, "t2": {"energy": 0.1}},
				batchErr:   errors.New("batch down"),
				failTracks: map[string]bool{"t2": true},
			},
			trackIDs:   []string{"t1", "t2"},
			wantOK:     true,
			wantTracks: []string{"t1"},
			wantUser:   true,
		},
		{
			name: "user fails, tracks still returned",
			source: &fakeSource{
				userErr: errors.New("user view missing"),
				tracks:  map[string]map[string]float64{"t1": {"energy": 0.9}},
			},
			trackIDs:   []string{"t1"},
			wantOK:     true,
			wantTracks: []string{"t1"},
		},
		{
			name: "everything fails",
			source: &fakeSource{
				userErr:    errors.New("down"),
				batchErr:   errors.New("down"),
				failTracks: map[string]bool{"t1": true, "t2": true},
			},
			trackIDs: []string{"t1", "t2"},
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(tt.source, WithTimeout(time.Second))
			res := f.Fetch(context.Background(), "u1", tt.trackIDs, nil)
			if res.Ok() != tt.wantOK {
				t.Fatalf("Ok() = %v, want %v (err=%v)", res.Ok(), tt.wantOK, res.Err)
			}
			if !tt.wantOK {
				if !core.IsUnavailable(res.Err) {
					t.Errorf("err = %v, want UNAVAILABLE", res.Err)
				}
				if !res.Fold().Empty() {
					t.Error("Fold() of failure should be empty")
				}
				return
			}
			bundle := res.Fold()
			if len(bundle.Tracks) != len(tt.wantTracks) {
				t.Fatalf("tracks = %v, want %v", bundle.Tracks, tt.wantTracks)
			}
			for _, id := range tt.wantTracks {
				if bundle.Track(id) == nil {
					t.Errorf("missing track %s", id)
				}
			}
			if (len(bundle.User) > 0) != tt.wantUser {
				t.Errorf("user = %v, wantUser %v", bundle.User, tt.wantUser)
			}
		})
	}
}

func TestFetcher_Timeout(t *testing.T) {
	src := &fakeSource{delay: 200 * time.Millisecond}
	f := NewFetcher(src, WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := f.Fetch(context.Background(), "u1", []string{"t1", "t2"}, &core.InteractionContext{Activity: core.ActivityParty})
	if res.Ok() {
		t.Fatal("slow source should be reported unavailable")
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("Fetch took %v, timeout not honored", elapsed)
	}
}

// stuckSource 不检查 ctx，直到 release 关闭才返回
type stuckSource struct {
	release chan struct{}
}

func (s *stuckSource) Name() string { return "stuck" }

func (s *stuckSource) UserFeatures(context.Context, string) (map[string]float64, error) {
	<-s.release
	return map[string]float64{}, nil
}

func (s *stuckSource) TrackFeatures(context.Context, []string) (map[string]map[string]float64, error) {
	<-s.release
	return map[string]map[string]float64{}, nil
}

func TestFetcher_TimeoutWithSourceIgnoringContext(t *testing.T) {
	src := &stuckSource{release: make(chan struct{})}
	t.Cleanup(func() { close(src.release) })
	f := NewFetcher(src, WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := f.Fetch(context.Background(), "u1", []string{"t1"}, nil)
	if res.Ok() {
		t.Fatal("stuck source should be reported unavailable")
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Fetch took %v, timeout not honored", elapsed)
	}
}

func TestFetcher_DropsNonFinite(t *testing.T) {
	src := &fakeSource{
		user:   map[string]float64{"avg_energy": math.NaN(), "like_rate_7d": 0.4},
		tracks: map[string]map[string]float64{"t1": {"energy": math.Inf(1), "valence": 0.5}},
	}
	bundle := NewFetcher(src).Fetch(context.Background(), "u1", []string{"t1"}, nil).Fold()
	if _, ok := bundle.User["avg_energy"]; ok {
		t.Error("NaN user feature should be dropped")
	}
	if _, ok := bundle.Track("t1")["energy"]; ok {
		t.Error("Inf track feature should be dropped")
	}
	if bundle.Track("t1")["valence"] != 0.5 {
		t.Errorf("valence = %v, want 0.5", bundle.Track("t1")["valence"])
	}
}

func TestFetcher_BreakerOpens(t *testing.T) {
	src := &fakeSource{
		userErr:    errors.New("down"),
		batchErr:   errors.New("down"),
		failTracks: map[string]bool{"t1": true},
	}
	f := NewFetcher(src, WithBreaker(BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute}))
	for i := 0; i < 2; i++ {
		f.Fetch(context.Background(), "u1", []string{"t1"}, nil)
	}
	if f.BreakerState() != "open" {
		t.Fatalf("BreakerState() = %q, want open", f.BreakerState())
	}

	calls := src.trackCalls.Load()
	res := f.Fetch(context.Background(), "u1", []string{"t1"}, nil)
	if res.Ok() {
		t.Error("open breaker should short-circuit")
	}
	if src.trackCalls.Load() != calls {
		t.Error("source should not be called while breaker is open")
	}
}

func TestFetcher_Cache(t *testing.T) {
	src := &fakeSource{tracks: map[string]map[string]float64{"t1": {"energy": 0.9}, "t2": {"energy": 0.2}}}
	cache := NewMemoryFeatureCache(100, time.Minute)
	defer cache.Close()
	f := NewFetcher(src, WithCache(cache, 0))

	f.Fetch(context.Background(), "u1", []string{"t1", "t2"}, nil)
	calls := src.trackCalls.Load()

	bundle := f.Fetch(context.Background(), "u1", []string{"t1", "t2"}, nil).Fold()
	if src.trackCalls.Load() != calls {
		t.Error("second fetch should be served from cache")
	}
	if bundle.Track("t2")["energy"] != 0.2 {
		t.Errorf("cached t2 = %v", bundle.Track("t2"))
	}
}
