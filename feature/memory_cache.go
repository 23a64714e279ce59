package feature

import (
	"sync"
	"time"
)

// MemoryFeatureCache 是曲目特征的内存缓存，过期 + LRU 淘汰。
// 曲目特征由离线任务按天物化，短 TTL 缓存可显著减少对特征库的访问。
type MemoryFeatureCache struct {
	mu              sync.Mutex
	entries         map[string]*cacheEntry
	maxSize         int
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	cleanupTicker   *time.Ticker
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
}

type cacheEntry struct {
	features   map[string]float64
	expireTime time.Time
	accessTime time.Time
}

// NewMemoryFeatureCache 创建内存特征缓存
func NewMemoryFeatureCache(maxSize int, defaultTTL time.Duration) *MemoryFeatureCache {
	if maxSize <= 0 {
		maxSize = 10000
	}
	cache := &MemoryFeatureCache{
		entries:         make(map[string]*cacheEntry),
		maxSize:         maxSize,
		defaultTTL:      defaultTTL,
		cleanupInterval: 1 * time.Minute,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	cache.cleanupTicker = time.NewTicker(cache.cleanupInterval)
	go cache.cleanup()

	return cache
}

func (c *MemoryFeatureCache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanExpired()
		case <-c.stopCleanup:
			c.cleanupTicker.Stop()
			return
		}
	}
}

func (c *MemoryFeatureCache) cleanExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, entry := range c.entries {
		if now.After(entry.expireTime) {
			delete(c.entries, id)
		}
	}
	for len(c.entries) > c.maxSize {
		c.evictLRU()
	}
}

// evictLRU 删除最久未访问的条目，调用方持有锁
func (c *MemoryFeatureCache) evictLRU() {
	var (
		oldestKey  string
		oldestTime time.Time
		first      = true
	)
	for key, entry := range c.entries {
		if first || entry.accessTime.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.accessTime
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// GetTracks 返回命中的曲目特征与未命中的曲目 ID（保持输入顺序）。
func (c *MemoryFeatureCache) GetTracks(trackIDs []string) (hits map[string]map[string]float64, misses []string) {
	hits = make(map[string]map[string]float64, len(trackIDs))
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range trackIDs {
		entry, ok := c.entries[id]
		if !ok || now.After(entry.expireTime) {
			misses = append(misses, id)
			continue
		}
		entry.accessTime = now
		hits[id] = entry.features
	}
	return hits, misses
}

// SetTracks 写入曲目特征；ttl <= 0 时使用默认 TTL。
func (c *MemoryFeatureCache) SetTracks(features map[string]map[string]float64, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, f := range features {
		if _, exists := c.entries[id]; !exists && len(c.entries) >= c.maxSize {
			c.evictLRU()
		}
		c.entries[id] = &cacheEntry{
			features:   f,
			expireTime: now.Add(ttl),
			accessTime: now,
		}
	}
}

// Invalidate 删除指定曲目的缓存
func (c *MemoryFeatureCache) Invalidate(trackID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, trackID)
}

// Len 返回当前缓存条目数
func (c *MemoryFeatureCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear 清空缓存
func (c *MemoryFeatureCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Close 关闭缓存，停止清理协程
func (c *MemoryFeatureCache) Close() {
	c.closeOnce.Do(func() { close(c.stopCleanup) })
}
