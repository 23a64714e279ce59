package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/feature"
	"github.com/rushteam/tunerank/model"
	"github.com/rushteam/tunerank/rank"
	"github.com/rushteam/tunerank/store"
)

// ConfigPathEnvVar 指定配置文件路径的环境变量
const ConfigPathEnvVar = "TUNERANK_CONFIG"

// 信号存储后端
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// 外部特征后端
const (
	FeaturesNone  = "none"
	FeaturesFeast = "feast"
	FeaturesStore = "store"
)

// Config 是 rerankd 的完整配置。
//
// 加载顺序（后者覆盖前者）：内置默认值 → YAML 配置文件 → 环境变量。
type Config struct {
	Server     ServerConfig      `koanf:"server" yaml:"server"`
	Log        LogConfig         `koanf:"log" yaml:"log"`
	Signals    SignalsConfig     `koanf:"signals" yaml:"signals"`
	Redis      store.RedisConfig `koanf:"redis" yaml:"redis"`
	Model      ModelConfig       `koanf:"model" yaml:"model"`
	Features   FeaturesConfig    `koanf:"features" yaml:"features"`
	Strategies []StrategyConfig  `koanf:"strategies" yaml:"strategies"`
}

// ServerConfig 是 HTTP 服务配置
type ServerConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RequestTimeout 是单次 /rerank 调用的上限
	RequestTimeout time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	// AdminToken 非空时，/admin 路由要求 Bearer Token
	AdminToken string `koanf:"admin_token" yaml:"admin_token"`
}

// LogConfig 是日志配置
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`   // debug | info | warn | error
	Format string `koanf:"format" yaml:"format"` // json | console
}

// SignalsConfig 是曲目元数据与用户信号存储配置
type SignalsConfig struct {
	Backend      string `koanf:"backend" yaml:"backend"`
	DatabasePath string `koanf:"database_path" yaml:"database_path"`
	// SequenceCap 最近序列最多读取条数
	SequenceCap int `koanf:"sequence_cap" yaml:"sequence_cap"`
	// TimelineCap KV 后端每个用户保留的交互条数
	TimelineCap int64 `koanf:"timeline_cap" yaml:"timeline_cap"`
}

// ModelConfig 是序列模型配置
type ModelConfig struct {
	// Path 为空或文件不存在时不加载模型，只使用启发式策略
	Path        string `koanf:"path" yaml:"path"`
	TopK        int    `koanf:"top_k" yaml:"top_k"`
	MinMappable int    `koanf:"min_mappable" yaml:"min_mappable"`
	Window      int    `koanf:"window" yaml:"window"`
}

// FeaturesConfig 是外部特征库配置
type FeaturesConfig struct {
	Backend   string                 `koanf:"backend" yaml:"backend"`
	Layout    feature.Layout         `koanf:"layout" yaml:"layout"`
	Endpoint  string                 `koanf:"endpoint" yaml:"endpoint"`
	Project   string                 `koanf:"project" yaml:"project"`
	UseGRPC   bool                   `koanf:"use_grpc" yaml:"use_grpc"`
	Token     string                 `koanf:"token" yaml:"token"`
	Timeout   time.Duration          `koanf:"timeout" yaml:"timeout"`
	CacheSize int                    `koanf:"cache_size" yaml:"cache_size"`
	CacheTTL  time.Duration          `koanf:"cache_ttl" yaml:"cache_ttl"`
	Breaker   BreakerConfig          `koanf:"breaker" yaml:"breaker"`
	Mapping   feature.FeatureMapping `koanf:"mapping" yaml:"mapping"`
}

// BreakerConfig 是特征库熔断配置
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold" yaml:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout" yaml:"open_timeout"`
	MaxRequests      uint32        `koanf:"max_requests" yaml:"max_requests"`
}

// StrategyConfig 是一个打分策略及其激活条件。
// When 为空时使用该策略类型的默认条件。
type StrategyConfig struct {
	Name string `koanf:"name" yaml:"name"`
	When string `koanf:"when" yaml:"when"`
}

// Default 返回内置默认配置
func Default() *Config {
	breaker := feature.DefaultBreakerConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Signals: SignalsConfig{
			Backend:      BackendSQLite,
			DatabasePath: "tunerank.db",
			SequenceCap:  core.DefaultRecentSequenceCap,
			TimelineCap:  500,
		},
		Redis: store.RedisConfig{
			Addr: "localhost:6379",
		},
		Model: ModelConfig{
			Path:        "",
			TopK:        rank.DefaultTopK,
			MinMappable: model.MinMappable,
			Window:      model.DefaultWindow,
		},
		Features: FeaturesConfig{
			Backend:   FeaturesNone,
			Layout:    feature.LayoutJSON,
			Project:   "tunerank",
			Timeout:   feature.DefaultTimeout,
			CacheSize: 10000,
			CacheTTL:  5 * time.Minute,
			Breaker: BreakerConfig{
				FailureThreshold: breaker.FailureThreshold,
				OpenTimeout:      breaker.OpenTimeout,
				MaxRequests:      breaker.MaxRequests,
			},
			Mapping: feature.DefaultFeatureMapping(),
		},
		Strategies: []StrategyConfig{
			{Name: "hybrid"},
			{Name: "heuristic"},
		},
	}
}

// Load 加载配置。path 为空时读取 TUNERANK_CONFIG；仍为空则只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(ConfigPathEnvVar)
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envMappings 把环境变量映射到配置路径。
// 兼容部署脚本沿用的 DATABASE_PATH / SEQUENTIAL_MODEL_PATH。
var envMappings = map[string]string{
	"tunerank_server_addr":             "server.addr",
	"tunerank_server_read_timeout":     "server.read_timeout",
	"tunerank_server_write_timeout":    "server.write_timeout",
	"tunerank_server_shutdown_timeout": "server.shutdown_timeout",
	"tunerank_server_request_timeout":  "server.request_timeout",
	"tunerank_admin_token":             "server.admin_token",

	"tunerank_log_level":  "log.level",
	"tunerank_log_format": "log.format",

	"tunerank_signals_backend": "signals.backend",
	"tunerank_database_path":   "signals.database_path",
	"database_path":            "signals.database_path",
	"tunerank_sequence_cap":    "signals.sequence_cap",
	"tunerank_timeline_cap":    "signals.timeline_cap",

	"tunerank_redis_addr":     "redis.addr",
	"tunerank_redis_password": "redis.password",
	"tunerank_redis_db":       "redis.db",

	"tunerank_model_path":         "model.path",
	"sequential_model_path":       "model.path",
	"tunerank_model_top_k":        "model.top_k",
	"tunerank_model_min_mappable": "model.min_mappable",
	"tunerank_model_window":       "model.window",

	"tunerank_features_backend":  "features.backend",
	"tunerank_features_layout":   "features.layout",
	"tunerank_features_endpoint": "features.endpoint",
	"tunerank_feast_endpoint":    "features.endpoint",
	"tunerank_features_project":  "features.project",
	"tunerank_features_use_grpc": "features.use_grpc",
	"tunerank_features_token":    "features.token",
	"tunerank_features_timeout":  "features.timeout",
}

// envTransformFunc 把环境变量名转换为配置路径，未知变量返回空字符串被忽略
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Signals.Backend {
	case BackendSQLite:
		if c.Signals.DatabasePath == "" {
			return fmt.Errorf("signals.database_path is required for sqlite backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("signals.backend %q not supported (sqlite, redis, memory)", c.Signals.Backend)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Signals.SequenceCap <= 0 {
		return fmt.Errorf("signals.sequence_cap must be positive, got %d", c.Signals.SequenceCap)
	}

	if c.Model.TopK <= 0 {
		return fmt.Errorf("model.top_k must be positive, got %d", c.Model.TopK)
	}
	if c.Model.MinMappable <= 0 {
		return fmt.Errorf("model.min_mappable must be positive, got %d", c.Model.MinMappable)
	}
	if c.Model.Window <= 0 {
		return fmt.Errorf("model.window must be positive, got %d", c.Model.Window)
	}

	switch c.Features.Backend {
	case FeaturesNone:
	case FeaturesFeast:
		if c.Features.Endpoint == "" {
			return fmt.Errorf("features.endpoint is required for feast backend")
		}
		if c.Features.Project == "" {
			return fmt.Errorf("features.project is required for feast backend")
		}
	case FeaturesStore:
		if c.Signals.Backend == BackendSQLite && c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for store feature backend")
		}
		if c.Features.Layout != feature.LayoutJSON && c.Features.Layout != feature.LayoutHash {
			return fmt.Errorf("features.layout %q not supported (json, hash)", c.Features.Layout)
		}
	default:
		return fmt.Errorf("features.backend %q not supported (none, feast, store)", c.Features.Backend)
	}
	if c.Features.Timeout <= 0 {
		return fmt.Errorf("features.timeout must be positive, got %s", c.Features.Timeout)
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	seen := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategies[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("strategies[%d]: duplicate strategy %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

const redactedValue = "******"

// Redacted 返回隐藏了密钥字段的副本，用于打印
func (c *Config) Redacted() *Config {
	out := *c
	if out.Server.AdminToken != "" {
		out.Server.AdminToken = redactedValue
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redactedValue
	}
	if out.Features.Token != "" {
		out.Features.Token = redactedValue
	}
	return &out
}

// YAML 把生效配置编码为 YAML（密钥已隐藏）
func (c *Config) YAML() ([]byte, error) {
	return yamlv3.Marshal(c.Redacted())
}
