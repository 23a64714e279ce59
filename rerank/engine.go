package rerank

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/feature"
	"github.com/rushteam/tunerank/model"
	"github.com/rushteam/tunerank/pipeline"
	"github.com/rushteam/tunerank/pkg/dsl"
)

type requestIDKey struct{}

// WithRequestID 把请求 ID 写入 context，用于日志关联
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom 读取请求 ID，不存在时返回空字符串
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Engine 是候选重排引擎。
//
// 一次 Rerank 调用：
//   - 校验请求（空候选、limit 越界为调用方错误）
//   - 并发拉取元数据、最近序列、兴趣画像、外部特征；只有元数据存储故障会导致失败
//   - 在唯一的折叠点把外部特征失败折叠为空 Bundle
//   - 按策略优先级打分（hybrid → heuristic），排序，截断
//
// 引擎本身无可变状态；模型通过 model.Holder 原子替换，可被任意并发请求共享。
type Engine struct {
	metadata    core.MetadataProvider
	signals     core.SignalProvider
	features    core.FeatureFetcher
	models      *model.Holder
	strategies  []Strategy
	sequenceCap int
	logger      zerolog.Logger
	now         func() time.Time
}

// EngineOption 配置 Engine
type EngineOption func(*Engine)

// WithFeatureFetcher 设置外部特征拉取器（可选）
func WithFeatureFetcher(f core.FeatureFetcher) EngineOption {
	return func(e *Engine) { e.features = f }
}

// WithModelHolder 设置序列模型持有者
func WithModelHolder(h *model.Holder) EngineOption {
	return func(e *Engine) {
		if h != nil {
			e.models = h
		}
	}
}

// WithStrategies 覆盖默认策略优先级
func WithStrategies(strategies []Strategy) EngineOption {
	return func(e *Engine) {
		if len(strategies) > 0 {
			e.strategies = strategies
		}
	}
}

// WithSequenceCap 设置最近序列长度上限
func WithSequenceCap(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.sequenceCap = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger.With().Str("component", "rerank_engine").Logger()
	}
}

// WithClock 设置时钟（测试用）
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine 创建重排引擎。signals 可为 nil（只使用调用方提供的序列与画像）。
func NewEngine(metadata core.MetadataProvider, signals core.SignalProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		metadata:    metadata,
		signals:     signals,
		models:      model.NewHolder(model.NoModel()),
		sequenceCap: core.DefaultRecentSequenceCap,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.strategies) == 0 {
		e.strategies = DefaultStrategies(nil)
	}
	return e
}

// signals 是一次请求拉取到的全部信号
type signals struct {
	meta     map[string]*core.TrackMetadata
	recent   core.RecentSequence
	interest *core.InterestProfile
	features core.FeatureResult
}

// Rerank 执行一次重排。
func (e *Engine) Rerank(ctx context.Context, req *core.RerankRequest) (*core.RankedResult, error) {
	start := time.Now()
	if req == nil || req.UserID == "" {
		return nil, core.ErrEmptyUserID
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	candidates := core.DedupCandidates(req.CandidateIDs)
	requestID := RequestIDFrom(ctx)
	log := e.logger.With().Str("user_id", req.UserID).Str("request_id", requestID).Logger()

	sig, err := e.fetch(ctx, req, candidates, log)
	if err != nil {
		RerankDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Error().Err(err).Msg("rerank failed: metadata unavailable")
		return nil, err
	}

	// 外部特征唯一的折叠点
	if !sig.features.Ok() && e.features != nil && e.features.Enabled() {
		DegradedTotal.WithLabelValues("feature_store").Inc()
		log.Debug().Err(sig.features.Err).Msg("feature store unavailable, continuing without external features")
	}
	bundle := sig.features.Fold()

	e.resolveAnchor(ctx, sig, candidates, log)

	rctx := &core.RecommendContext{
		UserID:       req.UserID,
		RequestID:    requestID,
		Context:      req.Context,
		Recent:       sig.recent,
		Interest:     sig.interest,
		Metadata:     feature.MergeTrackMetadata(sig.meta, bundle),
		UserFeatures: bundle.User,
	}

	capability := e.models.Load()
	facts := dsl.Facts{
		ModelLoaded:       capability.Loaded(),
		Mappable:          len(capability.Vocab().Map(sig.recent)),
		SequenceLen:       len(sig.recent),
		Candidates:        len(candidates),
		FeaturesAvailable: !bundle.Empty(),
		HasProfile:        sig.interest != nil,
		Mood:              string(rctx.Mood()),
		Activity:          string(rctx.Activity()),
	}
	if facts.ModelLoaded && facts.Mappable < model.MinMappable {
		log.Debug().Int("mappable", facts.Mappable).Msg("sequence below floor for sequential model")
	}

	p := &pipeline.Pipeline{Nodes: []pipeline.Node{
		&ScoreNode{Strategies: e.strategies, Facts: facts, Capability: capability, Logger: log},
		&FeatureLabelNode{Bundle: bundle},
		&SortNode{},
		&TopNNode{N: req.Limit},
	}}
	items, err := p.Run(ctx, rctx, core.NewItems(candidates))
	if err != nil {
		RerankDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}

	strategy := StrategyHeuristic
	if lbl, ok := rctx.GetLabel(LabelStrategy); ok {
		strategy = lbl.Value
	}
	StrategyTotal.WithLabelValues(strategy).Inc()

	result := &core.RankedResult{
		Tracks:      make([]core.ScoredTrack, 0, len(items)),
		Strategy:    strategy,
		Model:       capability.Name(),
		GeneratedAt: e.now().UTC(),
	}
	for _, it := range items {
		st := core.ScoredTrack{TrackID: it.ID, Score: core.Finite(it.Score)}
		if req.Explain {
			st.Labels = it.Labels
		}
		result.Tracks = append(result.Tracks, st)
	}

	RerankDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	log.Debug().
		Str("strategy", strategy).
		Str("model", result.Model).
		Int("candidates", len(candidates)).
		Int("returned", len(result.Tracks)).
		Dur("elapsed", time.Since(start)).
		Msg("rerank completed")
	return result, nil
}

// fetch 并发拉取各路信号。元数据失败返回错误，其他失败降级为空。
func (e *Engine) fetch(ctx context.Context, req *core.RerankRequest, candidates []string, log zerolog.Logger) (*signals, error) {
	sig := &signals{
		recent:   req.RecentSequence.Tail(e.sequenceCap),
		interest: req.InterestProfile,
		features: core.FeatureResult{Err: feature.ErrFeatureStoreDisabled},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		meta, err := e.metadata.FetchTrackMetadata(gctx, candidates)
		if err != nil {
			return err
		}
		sig.meta = meta
		return nil
	})

	if req.RecentSequence == nil && e.signals != nil {
		g.Go(func() error {
			recent, err := e.signals.FetchRecentSequence(gctx, req.UserID, e.sequenceCap)
			if err != nil {
				DegradedTotal.WithLabelValues("recent_sequence").Inc()
				log.Warn().Err(err).Msg("recent sequence unavailable")
				return nil
			}
			sig.recent = recent.Tail(e.sequenceCap)
			return nil
		})
	}

	if req.InterestProfile == nil && e.signals != nil {
		g.Go(func() error {
			profile, err := e.signals.FetchInterestProfile(gctx, req.UserID)
			if err != nil {
				DegradedTotal.WithLabelValues("interest_profile").Inc()
				log.Warn().Err(err).Msg("interest profile unavailable")
				return nil
			}
			sig.interest = profile
			return nil
		})
	}

	if e.features != nil && e.features.Enabled() {
		g.Go(func() error {
			sig.features = e.features.Fetch(gctx, req.UserID, candidates, req.Context)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if core.IsDomainError(err) {
			return nil, err
		}
		return nil, core.WrapDomainError(core.ModuleSignal, core.ErrorCodeUnavailable, "signal: fetch track metadata", err)
	}
	if sig.meta == nil {
		sig.meta = make(map[string]*core.TrackMetadata)
	}
	return sig, nil
}

// resolveAnchor 锚点不在候选中时单独查询其元数据；失败时跳过连续性加分。
func (e *Engine) resolveAnchor(ctx context.Context, sig *signals, candidates []string, log zerolog.Logger) {
	anchor, ok := sig.recent.Anchor()
	if !ok {
		return
	}
	if _, known := sig.meta[anchor]; known {
		return
	}
	for _, id := range candidates {
		if id == anchor {
			return
		}
	}
	meta, err := e.metadata.FetchTrackMetadata(ctx, []string{anchor})
	if err != nil {
		DegradedTotal.WithLabelValues("anchor_metadata").Inc()
		log.Debug().Err(err).Str("anchor", anchor).Msg("anchor metadata unavailable, skipping continuity")
		return
	}
	if m, ok := meta[anchor]; ok {
		sig.meta[anchor] = m
	}
}

// Health 返回运行状态
func (e *Engine) Health() core.Health {
	c := e.models.Load()
	return core.Health{
		SequentialModelLoaded: c.Loaded(),
		FeatureStoreEnabled:   e.features != nil && e.features.Enabled(),
		Model:                 c.Name(),
	}
}

// ReloadModel 从 path 重新加载序列模型并原子替换；失败时保留当前模型。
func (e *Engine) ReloadModel(path string) (core.Health, error) {
	c, err := e.models.Reload(path)
	if err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("sequential model reload failed, keeping current model")
		return e.Health(), err
	}
	e.logger.Info().Str("path", path).Str("model", c.Name()).Int("vocabulary", c.Vocab().Len()).Msg("sequential model reloaded")
	return e.Health(), nil
}
