package feature

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tunerank/core"
)

const (
	// DefaultTimeout 是单次请求内特征拉取的总预算
	DefaultTimeout = 300 * time.Millisecond
	// DefaultPerTrackConcurrency 是批量失败后逐曲目查询的并发上限
	DefaultPerTrackConcurrency = 8
)

// BreakerConfig 是特征库熔断器配置
type BreakerConfig struct {
	// FailureThreshold 连续失败多少次后熔断
	FailureThreshold uint32
	// OpenTimeout 熔断后多久进入半开
	OpenTimeout time.Duration
	// MaxRequests 半开状态允许的探测请求数
	MaxRequests uint32
}

// DefaultBreakerConfig 返回默认熔断配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		MaxRequests:      1,
	}
}

// Fetcher 实现 core.FeatureFetcher。
//
// 拉取策略：
//   - 整体超时（默认 300ms），超时或熔断时返回 Unavailable
//   - 用户特征与曲目特征并发拉取
//   - 曲目特征先批量；批量失败时逐曲目并发查询，单个曲目失败只丢弃该曲目
//   - NaN / ±Inf 特征值被丢弃
//   - 曲目特征可选内存缓存
//
// source 为 nil 时 Enabled() 为 false，Fetch 始终返回 Unavailable。
type Fetcher struct {
	source      Source
	timeout     time.Duration
	concurrency int
	breaker     *gobreaker.CircuitBreaker[core.FeatureBundle]
	cache       *MemoryFeatureCache
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// FetcherOption 配置 Fetcher
type FetcherOption func(*Fetcher)

// WithTimeout 设置拉取总超时
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithCache 为曲目特征启用内存缓存
func WithCache(cache *MemoryFeatureCache, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = cache
		f.cacheTTL = ttl
	}
}

// WithPerTrackConcurrency 设置逐曲目查询的并发上限
func WithPerTrackConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithBreaker 覆盖默认熔断配置
func WithBreaker(cfg BreakerConfig) FetcherOption {
	return func(f *Fetcher) {
		f.breaker = newBreaker(f.sourceName(), cfg, f)
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger.With().Str("component", "feature_fetcher").Logger()
	}
}

// NewFetcher 创建特征拉取器
func NewFetcher(source Source, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:      source,
		timeout:     DefaultTimeout,
		concurrency: DefaultPerTrackConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.breaker == nil {
		f.breaker = newBreaker(f.sourceName(), DefaultBreakerConfig(), f)
	}
	return f
}

func newBreaker(name string, cfg BreakerConfig, f *Fetcher) *gobreaker.CircuitBreaker[core.FeatureBundle] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	return gobreaker.NewCircuitBreaker[core.FeatureBundle](gobreaker.Settings{
		Name:        "feature." + name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("feature store circuit breaker state changed")
		},
	})
}

func (f *Fetcher) sourceName() string {
	if f == nil || f.source == nil {
		return "none"
	}
	return f.source.Name()
}

// Enabled 返回是否配置了特征源
func (f *Fetcher) Enabled() bool {
	return f != nil && f.source != nil
}

// BreakerState 返回熔断器状态（closed / half-open / open）
func (f *Fetcher) BreakerState() string {
	if !f.Enabled() {
		return "disabled"
	}
	return f.breaker.State().String()
}

type fetchOutcome struct {
	bundle core.FeatureBundle
	err    error
}

// Fetch 拉取用户与候选曲目的外部特征（实现 core.FeatureFetcher）
func (f *Fetcher) Fetch(ctx context.Context, userID string, trackIDs []string, ictx *core.InteractionContext) core.FeatureResult {
	if !f.Enabled() {
		return core.FeatureResult{Err: ErrFeatureStoreDisabled}
	}

	start := time.Now()
	name := f.source.Name()
	defer func() { FetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	// 特征源未必响应 ctx，超时以这里的 select 为准
	done := make(chan fetchOutcome, 1)
	go func() {
		bundle, err := f.breaker.Execute(func() (core.FeatureBundle, error) {
			return f.fetch(ctx, userID, trackIDs)
		})
		done <- fetchOutcome{bundle: bundle, err: err}
	}()

	var (
		bundle core.FeatureBundle
		err    error
	)
	select {
	case out := <-done:
		bundle, err = out.bundle, out.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		outcome := "unavailable"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		FetchTotal.WithLabelValues(name, outcome).Inc()

		ev := f.logger.Debug().Err(err).Str("user_id", userID).Int("tracks", len(trackIDs))
		if ictx != nil {
			ev = ev.Str("activity", string(ictx.Activity)).Str("mood", string(ictx.Mood))
		}
		ev.Msg("feature store unavailable")

		return core.FeatureResult{
			Err: core.WrapDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, ErrFeatureServiceUnavailable.Message, err),
		}
	}

	outcome := "ok"
	if len(bundle.Tracks) < len(trackIDs) {
		outcome = "partial"
	}
	FetchTotal.WithLabelValues(name, outcome).Inc()
	return core.FeatureResult{Bundle: bundle}
}

// fetch 并发拉取用户与曲目特征。两部分都失败时才返回错误（计入熔断）。
func (f *Fetcher) fetch(ctx context.Context, userID string, trackIDs []string) (core.FeatureBundle, error) {
	var (
		user              map[string]float64
		tracks            map[string]map[string]float64
		userErr, trackErr error
	)

	hits, misses := map[string]map[string]float64{}, trackIDs
	if f.cache != nil {
		hits, misses = f.cache.GetTracks(trackIDs)
		CacheLookupsTotal.WithLabelValues("hit").Add(float64(len(hits)))
		CacheLookupsTotal.WithLabelValues("miss").Add(float64(len(misses)))
	}

	var g errgroup.Group
	g.Go(func() error {
		user, userErr = f.source.UserFeatures(ctx, userID)
		return nil
	})
	g.Go(func() error {
		tracks, trackErr = f.fetchTracks(ctx, misses)
		return nil
	})
	_ = g.Wait()

	if userErr != nil && trackErr != nil {
		return core.FeatureBundle{}, errors.Join(userErr, trackErr)
	}
	if userErr != nil {
		f.logger.Debug().Err(userErr).Str("user_id", userID).Msg("user features unavailable")
	}
	if trackErr != nil {
		f.logger.Debug().Err(trackErr).Int("tracks", len(misses)).Msg("track features unavailable")
	}

	tracks = sanitizeTracks(tracks)
	if f.cache != nil && len(tracks) > 0 {
		f.cache.SetTracks(tracks, f.cacheTTL)
	}
	for id, feats := range hits {
		if tracks == nil {
			tracks = make(map[string]map[string]float64, len(hits))
		}
		tracks[id] = feats
	}

	return core.FeatureBundle{
		User:   sanitize(user),
		Tracks: tracks,
	}, nil
}

// fetchTracks 先批量查询；批量失败时逐曲目并发查询，全部失败才返回错误。
func (f *Fetcher) fetchTracks(ctx context.Context, trackIDs []string) (map[string]map[string]float64, error) {
	if len(trackIDs) == 0 {
		return map[string]map[string]float64{}, nil
	}

	batch, batchErr := f.source.TrackFeatures(ctx, trackIDs)
	if batchErr == nil {
		return batch, nil
	}
	if ctx.Err() != nil {
		return nil, batchErr
	}

	var (
		mu     sync.Mutex
		result = make(map[string]map[string]float64, len(trackIDs))
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, id := range trackIDs {
		g.Go(func() error {
			one, err := f.source.TrackFeatures(gctx, []string{id})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return nil
			}
			if feats, ok := one[id]; ok {
				result[id] = feats
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed == len(trackIDs) {
		return nil, batchErr
	}
	return result, nil
}

func sanitize(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}

func sanitizeTracks(tracks map[string]map[string]float64) map[string]map[string]float64 {
	if len(tracks) == 0 {
		return tracks
	}
	out := make(map[string]map[string]float64, len(tracks))
	for id, feats := range tracks {
		out[id] = sanitize(feats)
	}
	return out
}

var _ core.FeatureFetcher = (*Fetcher)(nil)
