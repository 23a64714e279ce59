package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/model"
)

// MaxUserIDLength 是 externalUserId 的最大长度
const MaxUserIDLength = 255

// maxBodyBytes 限制请求体大小
const maxBodyBytes = 1 << 20

// Reranker 是 HTTP 层依赖的引擎能力
type Reranker interface {
	Rerank(ctx context.Context, req *core.RerankRequest) (*core.RankedResult, error)
	Health() core.Health
	ReloadModel(path string) (core.Health, error)
}

// Handler 是重排服务的 HTTP 入口
type Handler struct {
	engine     Reranker
	logger     zerolog.Logger
	adminToken string
	modelPath  string
	timeout    time.Duration
}

// Option 配置 Handler
type Option func(*Handler)

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger.With().Str("component", "http").Logger()
	}
}

// WithAdminToken 设置 /admin 路由的 Bearer Token；为空时 /admin 不鉴权
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.adminToken = token }
}

// WithModelPath 设置模型重载的默认路径
func WithModelPath(path string) Option {
	return func(h *Handler) { h.modelPath = path }
}

// WithRequestTimeout 设置单次重排请求的超时
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New 创建 Handler
func New(engine Reranker, opts ...Option) *Handler {
	h := &Handler{
		engine:  engine,
		logger:  zerolog.Nop(),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes 返回挂载了全部路由的 chi 路由器
//
//	POST /rerank
//	GET  /health
//	GET  /metrics
//	POST /train
//	POST /admin/model/reload
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestID)
	r.Use(h.accessLog)
	r.Use(Metrics)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/rerank", h.Rerank)
	r.Post("/train", h.Train)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/model/reload", h.ReloadModel)
	})
	return r
}

// RerankRequest 是 POST /rerank 的请求体
type RerankRequest struct {
	ExternalUserID    string                   `json:"externalUserId"`
	CandidateTrackIDs []string                 `json:"candidateTrackIds"`
	Context           *core.InteractionContext `json:"context,omitempty"`
	// RecentSequence 由旧到新；缺省或 null 时从信号存储读取，[] 表示没有最近行为
	RecentSequence []string `json:"recentSequence,omitempty"`
	// InterestGraph 缺省或无法解析时从信号存储读取
	InterestGraph json.RawMessage `json:"interestGraph,omitempty"`
	// Limit 缺省时取 core.DefaultLimit；显式的 0 交由引擎按非法输入拒绝
	Limit   *int `json:"limit,omitempty"`
	Explain bool `json:"explain,omitempty"`
}

// RerankResponse 是 POST /rerank 的响应体
type RerankResponse struct {
	Tracks      []core.ScoredTrack `json:"tracks"`
	Strategy    string             `json:"strategy"`
	Model       string             `json:"model"`
	GeneratedAt time.Time          `json:"generatedAt"`
	RequestID   string             `json:"requestId,omitempty"`
}

// HealthResponse 是 GET /health 的响应体
type HealthResponse struct {
	Status string `json:"status"`
	core.Health
	// ModelLoaded 与 SequentialModelLoaded 相同，兼容旧客户端
	ModelLoaded bool `json:"modelLoaded"`
}

// ErrorResponse 是错误响应体
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func (req *RerankRequest) toDomain() (*core.RerankRequest, error) {
	if req.ExternalUserID == "" {
		return nil, core.ErrEmptyUserID
	}
	if len(req.ExternalUserID) > MaxUserIDLength {
		return nil, core.NewDomainError(core.ModuleRerank, core.ErrorCodeInvalidInput, "rerank: user id too long")
	}
	out := &core.RerankRequest{
		UserID:       req.ExternalUserID,
		CandidateIDs: req.CandidateTrackIDs,
		Context:      req.Context,
		Limit:        core.DefaultLimit,
		Explain:      req.Explain,
	}
	if req.Limit != nil {
		out.Limit = *req.Limit
	}
	if req.RecentSequence != nil {
		out.RecentSequence = core.RecentSequence(req.RecentSequence)
	}
	if profile, ok := core.ParseInterestProfile(req.InterestGraph); ok {
		out.InterestProfile = profile
	}
	return out, nil
}

// Rerank 处理 POST /rerank
func (h *Handler) Rerank(w http.ResponseWriter, r *http.Request) {
	var body RerankRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_JSON", err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.engine.Rerank(ctx, req)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, &RerankResponse{
		Tracks:      res.Tracks,
		Strategy:    res.Strategy,
		Model:       res.Model,
		GeneratedAt: res.GeneratedAt,
		RequestID:   GetRequestID(r.Context()),
	})
}

// Health 处理 GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.engine.Health()
	respondJSON(w, http.StatusOK, &HealthResponse{
		Status:      "ok",
		Health:      health,
		ModelLoaded: health.SequentialModelLoaded,
	})
}

// Train 处理 POST /train。训练在离线任务中完成，服务只通过重载接口接收新模型。
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"trained": false,
		"reason":  "training_not_enabled",
		"next":    "run the offline training job and POST /admin/model/reload",
	})
}

type reloadRequest struct {
	Path string `json:"path"`
}

// ReloadModel 处理 POST /admin/model/reload。请求体可选，缺省使用配置的模型路径。
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	var body reloadRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, http.StatusBadRequest, "INVALID_JSON", err)
		return
	}
	path := body.Path
	if path == "" {
		path = h.modelPath
	}
	if path == "" {
		respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, errors.New("model path is not configured"))
		return
	}

	health, err := h.engine.ReloadModel(path)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	h.logger.Info().Str("path", path).Str("model", health.Model).Msg("model reloaded via admin api")
	respondJSON(w, http.StatusOK, &HealthResponse{
		Status:      "reloaded",
		Health:      health,
		ModelLoaded: health.SequentialModelLoaded,
	})
}

// respondDomainError 把领域错误映射为 HTTP 状态码
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := core.ErrorCodeInternalError
	switch {
	case core.IsInvalidInput(err):
		status, code = http.StatusBadRequest, core.ErrorCodeInvalidInput
	case errors.Is(err, model.ErrArtifactNotFound):
		status, code = http.StatusNotFound, core.ErrorCodeNotFound
	case core.IsUnavailable(err):
		status, code = http.StatusServiceUnavailable, core.ErrorCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
	}
	respondError(w, r, status, code, err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // 响应写入失败无法恢复
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	respondJSON(w, status, &ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: GetRequestID(r.Context()),
	})
}
