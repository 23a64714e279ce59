package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/tunerank/core"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreWithCleanup(0)
	defer s.Close()

	if _, err := s.Get(ctx, "track:meta:t1"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get missing key err = %v, want not found", err)
	}
	if err := s.Set(ctx, "track:meta:t1", []byte(`{"id":"t1"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, "track:meta:t1")
	if err != nil || string(got) != `{"id":"t1"}` {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	batch, err := s.BatchGet(ctx, []string{"track:meta:t1", "track:meta:t2"})
	if err != nil {
		t.Fatalf("BatchGet() error = %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("BatchGet() len = %d, want 1", len(batch))
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreWithCleanup(0)
	defer s.Close()

	s.data["k"] = &entry{value: []byte("v"), expire: time.Now().Add(-time.Second)}
	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Errorf("expired key err = %v, want not found", err)
	}
}

func TestMemoryStore_ZRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreWithCleanup(0)
	defer s.Close()

	for i, m := range []string{"a", "b", "c", "d"} {
		if err := s.ZAdd(ctx, "z", float64(i), m); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"all", 0, -1, []string{"d", "c", "b", "a"}},
		{"head", 0, 1, []string{"d", "c"}},
		{"past end", 2, 10, []string{"b", "a"}},
		{"empty", 3, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ZRange(ctx, "z", tt.start, tt.stop)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ZRange(%d, %d) = %v, want %v", tt.start, tt.stop, got, tt.want)
			}
		})
	}
}

func TestMemoryStore_ZTrim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreWithCleanup(0)
	defer s.Close()

	for i := 0; i < 5; i++ {
		_ = s.ZAdd(ctx, "z", float64(i), string(rune('a'+i)))
	}
	if err := s.ZTrim(ctx, "z", 2); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ZRange(ctx, "z", 0, -1)
	if !reflect.DeepEqual(got, []string{"e", "d"}) {
		t.Errorf("after ZTrim = %v, want [e d]", got)
	}
	if _, err := s.ZScore(ctx, "z", "a"); !core.IsStoreNotFound(err) {
		t.Errorf("trimmed member err = %v, want not found", err)
	}
}

func TestMemoryStore_Hash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreWithCleanup(0)
	defer s.Close()

	_ = s.HSet(ctx, "h", "energy", []byte("0.8"))
	_ = s.HSet(ctx, "h", "valence", []byte("0.2"))
	all, err := s.HGetAll(ctx, "h")
	if err != nil || len(all) != 2 || string(all["energy"]) != "0.8" {
		t.Fatalf("HGetAll() = %q, %v", all, err)
	}
	missing, err := s.HGetAll(ctx, "nope")
	if err != nil || len(missing) != 0 {
		t.Errorf("missing hash = %v, %v, want empty", missing, err)
	}
}
