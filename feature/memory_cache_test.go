package feature

import (
	"testing"
	"time"
)

func TestMemoryFeatureCache_Expiry(t *testing.T) {
	c := NewMemoryFeatureCache(10, time.Minute)
	defer c.Close()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.SetTracks(map[string]map[string]float64{"t1": {"energy": 0.5}}, 0)
	hits, misses := c.GetTracks([]string{"t1", "t2"})
	if len(hits) != 1 || len(misses) != 1 || misses[0] != "t2" {
		t.Fatalf("hits=%v misses=%v", hits, misses)
	}

	now = now.Add(2 * time.Minute)
	hits, misses = c.GetTracks([]string{"t1"})
	if len(hits) != 0 || len(misses) != 1 {
		t.Errorf("expired entry still served: hits=%v", hits)
	}
}

func TestMemoryFeatureCache_EvictsLRU(t *testing.T) {
	c := NewMemoryFeatureCache(2, time.Minute)
	defer c.Close()
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.SetTracks(map[string]map[string]float64{"t1": {}}, 0)
	now = now.Add(time.Second)
	c.SetTracks(map[string]map[string]float64{"t2": {}}, 0)
	now = now.Add(time.Second)
	c.GetTracks([]string{"t1"}) // t1 最近访问
	now = now.Add(time.Second)
	c.SetTracks(map[string]map[string]float64{"t3": {}}, 0)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	_, misses := c.GetTracks([]string{"t1", "t2", "t3"})
	if len(misses) != 1 || misses[0] != "t2" {
		t.Errorf("misses = %v, want [t2] evicted", misses)
	}
}
