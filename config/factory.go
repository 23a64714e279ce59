package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/feast"
	"github.com/rushteam/tunerank/feature"
	"github.com/rushteam/tunerank/model"
	"github.com/rushteam/tunerank/rank"
	"github.com/rushteam/tunerank/rerank"
	"github.com/rushteam/tunerank/signal"
	"github.com/rushteam/tunerank/store"
)

// App 是按配置装配好的服务组件
type App struct {
	Config  *Config
	Engine  *rerank.Engine
	Models  *model.Holder
	Signals SignalRepository

	closers []func() error
}

// SignalRepository 是信号存储需要提供的全部能力
type SignalRepository interface {
	core.MetadataProvider
	core.SignalProvider
	Close() error
}

// Close 按装配的逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build 按配置装配信号存储、外部特征、序列模型、策略与引擎。
// 模型加载失败不是致命错误：记录日志后以无模型状态启动。
func Build(ctx context.Context, cfg *Config, logger zerolog.Logger) (*App, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &App{Config: cfg}

	kv, err := buildKV(ctx, cfg, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	repo, err := buildSignals(ctx, cfg, kv)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Signals = repo
	app.closers = append(app.closers, repo.Close)

	fetcher, err := buildFeatures(cfg, kv, app, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	capability, err := model.LoadSequential(cfg.Model.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Model.Path).Msg("sequential model not loaded, heuristic only")
		capability = model.NoModel()
	}
	app.Models = model.NewHolder(capability)

	deps := StrategyDeps{
		Heuristic:  rank.NewHeuristic(),
		Sequential: rank.NewSequential(cfg.Model.TopK, cfg.Model.MinMappable, cfg.Model.Window),
	}
	strategies, err := BuildStrategies(cfg.Strategies, deps)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []rerank.EngineOption{
		rerank.WithModelHolder(app.Models),
		rerank.WithStrategies(strategies),
		rerank.WithSequenceCap(cfg.Signals.SequenceCap),
		rerank.WithLogger(logger),
	}
	if fetcher != nil {
		opts = append(opts, rerank.WithFeatureFetcher(fetcher))
	}
	app.Engine = rerank.NewEngine(repo, repo, opts...)

	logger.Info().
		Str("signals", cfg.Signals.Backend).
		Str("features", cfg.Features.Backend).
		Bool("model_loaded", capability.Loaded()).
		Str("model", capability.Name()).
		Msg("rerank engine ready")
	return app, nil
}

// buildKV 在需要时创建 KV 存储：redis 信号后端或 store 特征后端
func buildKV(ctx context.Context, cfg *Config, app *App) (core.KeyValueStore, error) {
	switch {
	case cfg.Signals.Backend == BackendMemory:
		kv := store.NewMemoryStore()
		app.closers = append(app.closers, kv.Close)
		return kv, nil
	case cfg.Signals.Backend == BackendRedis || cfg.Features.Backend == FeaturesStore:
		kv, err := store.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, kv.Close)
		return kv, nil
	}
	return nil, nil
}

func buildSignals(ctx context.Context, cfg *Config, kv core.KeyValueStore) (SignalRepository, error) {
	switch cfg.Signals.Backend {
	case BackendSQLite:
		repo, err := signal.OpenSQLite(cfg.Signals.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	case BackendRedis, BackendMemory:
		// KV 由 buildKV 统一关闭
		return &kvRepository{StoreRepository: signal.NewStoreRepository(kv,
			signal.WithTimelineCap(cfg.Signals.TimelineCap))}, nil
	}
	return nil, fmt.Errorf("signals.backend %q not supported", cfg.Signals.Backend)
}

// kvRepository 的 KV 连接由 App 持有，自身 Close 为空操作
type kvRepository struct {
	*signal.StoreRepository
}

func (r *kvRepository) Close() error { return nil }

func buildFeatures(cfg *Config, kv core.KeyValueStore, app *App, logger zerolog.Logger) (*feature.Fetcher, error) {
	fc := cfg.Features
	var source feature.Source
	switch fc.Backend {
	case FeaturesNone:
		return nil, nil
	case FeaturesFeast:
		opts := []feast.ClientOption{feast.WithTimeout(fc.Timeout)}
		if fc.UseGRPC {
			opts = append(opts, feast.WithGRPC())
		}
		if fc.Token != "" {
			authType := "bearer"
			if fc.UseGRPC {
				authType = "static"
			}
			opts = append(opts, feast.WithAuth(&feast.AuthConfig{Type: authType, Token: fc.Token}))
		}
		client, err := feast.NewClient(fc.Endpoint, fc.Project, opts...)
		if err != nil {
			return nil, fmt.Errorf("feast client: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		source = feature.NewFeastSource(client, fc.Mapping)
	case FeaturesStore:
		if kv == nil {
			return nil, fmt.Errorf("features.backend store requires a kv store")
		}
		if fc.Layout == feature.LayoutHash {
			source = feature.NewHashStoreSource(kv, feature.KeyPrefix{})
		} else {
			source = feature.NewStoreSource(kv, feature.KeyPrefix{})
		}
	default:
		return nil, fmt.Errorf("features.backend %q not supported", fc.Backend)
	}

	opts := []feature.FetcherOption{
		feature.WithTimeout(fc.Timeout),
		feature.WithBreaker(feature.BreakerConfig{
			FailureThreshold: fc.Breaker.FailureThreshold,
			OpenTimeout:      fc.Breaker.OpenTimeout,
			MaxRequests:      fc.Breaker.MaxRequests,
		}),
		feature.WithLogger(logger),
	}
	if fc.CacheSize > 0 && fc.CacheTTL > 0 {
		cache := feature.NewMemoryFeatureCache(fc.CacheSize, fc.CacheTTL)
		app.closers = append(app.closers, func() error {
			cache.Close()
			return nil
		})
		opts = append(opts, feature.WithCache(cache, fc.CacheTTL))
	}
	return feature.NewFetcher(source, opts...), nil
}
