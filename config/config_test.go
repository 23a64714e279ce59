package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/tunerank/config"
	_ "github.com/rushteam/tunerank/config/builders"
	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/feature"
	"github.com/rushteam/tunerank/rerank"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tunerank.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(config.ConfigPathEnvVar, "")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := config.Default()
	if cfg.Server.Addr != want.Server.Addr {
		t.Errorf("server.addr = %q, want %q", cfg.Server.Addr, want.Server.Addr)
	}
	if cfg.Features.Timeout != 300*time.Millisecond {
		t.Errorf("features.timeout = %s, want 300ms", cfg.Features.Timeout)
	}
	if cfg.Model.MinMappable != 3 {
		t.Errorf("model.min_mappable = %d, want 3", cfg.Model.MinMappable)
	}
	if len(cfg.Strategies) != 2 || cfg.Strategies[0].Name != "hybrid" || cfg.Strategies[1].Name != "heuristic" {
		t.Errorf("strategies = %+v, want [hybrid heuristic]", cfg.Strategies)
	}
	if len(cfg.Features.Mapping.TrackFeatures) == 0 {
		t.Error("features.mapping.track_features should carry defaults")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9100"
signals:
  backend: memory
model:
  top_k: 200
features:
  backend: feast
  endpoint: "http://feast:6566"
  timeout: 250ms
strategies:
  - name: heuristic
    when: "true"
`)
	t.Setenv("TUNERANK_MODEL_TOP_K", "120")
	t.Setenv("TUNERANK_SERVER_REQUEST_TIMEOUT", "750ms")
	t.Setenv("SEQUENTIAL_MODEL_PATH", "/models/sasrec.msgpack")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Errorf("server.addr = %q, want :9100", cfg.Server.Addr)
	}
	if cfg.Signals.Backend != config.BackendMemory {
		t.Errorf("signals.backend = %q, want memory", cfg.Signals.Backend)
	}
	if cfg.Model.TopK != 120 {
		t.Errorf("model.top_k = %d, want env override 120", cfg.Model.TopK)
	}
	if cfg.Model.Path != "/models/sasrec.msgpack" {
		t.Errorf("model.path = %q", cfg.Model.Path)
	}
	if cfg.Server.RequestTimeout != 750*time.Millisecond {
		t.Errorf("server.request_timeout = %s, want env override 750ms", cfg.Server.RequestTimeout)
	}
	if cfg.Features.Timeout != 250*time.Millisecond {
		t.Errorf("features.timeout = %s, want 250ms", cfg.Features.Timeout)
	}
	// 未在文件中出现的字段保留默认值
	if cfg.Model.Window != config.Default().Model.Window {
		t.Errorf("model.window = %d, want default", cfg.Model.Window)
	}
	if len(cfg.Strategies) != 1 || cfg.Strategies[0].Name != "heuristic" {
		t.Errorf("strategies = %+v, want [heuristic]", cfg.Strategies)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"defaults are valid", func(c *config.Config) {}, ""},
		{"unknown signals backend", func(c *config.Config) { c.Signals.Backend = "postgres" }, "signals.backend"},
		{"sqlite without path", func(c *config.Config) { c.Signals.DatabasePath = "" }, "database_path"},
		{"feast without endpoint", func(c *config.Config) { c.Features.Backend = config.FeaturesFeast }, "features.endpoint"},
		{"zero request timeout", func(c *config.Config) { c.Server.RequestTimeout = 0 }, "server.request_timeout"},
		{"unknown store layout", func(c *config.Config) {
			c.Features.Backend = config.FeaturesStore
			c.Signals.Backend = config.BackendMemory
			c.Features.Layout = "csv"
		}, "features.layout"},
		{"zero feature timeout", func(c *config.Config) { c.Features.Timeout = 0 }, "features.timeout"},
		{"non-positive top_k", func(c *config.Config) { c.Model.TopK = 0 }, "model.top_k"},
		{"no strategies", func(c *config.Config) { c.Strategies = nil }, "strategy"},
		{"duplicate strategy", func(c *config.Config) {
			c.Strategies = []config.StrategyConfig{{Name: "heuristic"}, {Name: "heuristic"}}
		}, "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStrategies(t *testing.T) {
	if err := config.ValidateStrategies([]config.StrategyConfig{{Name: "hybrid"}, {Name: "heuristic"}}); err != nil {
		t.Fatalf("builtin strategies rejected: %v", err)
	}
	err := config.ValidateStrategies([]config.StrategyConfig{{Name: "popularity"}})
	if err == nil || !strings.Contains(err.Error(), "heuristic") {
		t.Fatalf("unknown strategy error = %v, want supported list", err)
	}
	if err := config.ValidateStrategies([]config.StrategyConfig{{Name: "hybrid", When: "mappable +"}}); err == nil {
		t.Fatal("bad when expression should be rejected")
	}
}

func TestSupportedTypes(t *testing.T) {
	got := config.SupportedTypes()
	want := []string{"heuristic", "hybrid"}
	if len(got) != len(want) {
		t.Fatalf("SupportedTypes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SupportedTypes()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildStrategies_CustomCondition(t *testing.T) {
	strategies, err := config.BuildStrategies([]config.StrategyConfig{
		{Name: "hybrid", When: "model_loaded && mappable >= 5"},
		{Name: "heuristic"},
	}, config.StrategyDeps{})
	if err != nil {
		t.Fatalf("BuildStrategies() error = %v", err)
	}
	if len(strategies) != 2 {
		t.Fatalf("len = %d, want 2", len(strategies))
	}
	if got := strategies[0].When.String(); got != "model_loaded && mappable >= 5" {
		t.Errorf("hybrid when = %q", got)
	}
	if got := strategies[1].When.String(); got != "true" {
		t.Errorf("heuristic when = %q, want true", got)
	}
}

func TestBuild_MemoryBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Signals.Backend = config.BackendMemory

	app, err := config.Build(t.Context(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer app.Close()

	health := app.Engine.Health()
	if health.SequentialModelLoaded || health.FeatureStoreEnabled {
		t.Errorf("Health() = %+v, want no model and no feature store", health)
	}

	res, err := app.Engine.Rerank(t.Context(), &core.RerankRequest{
		UserID:       "u1",
		CandidateIDs: []string{"t1", "t2", "t3"},
		Limit:        3,
	})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if res.Strategy != rerank.StrategyHeuristic {
		t.Errorf("strategy = %q, want heuristic", res.Strategy)
	}
	if got := strings.Join(res.IDs(), ","); got != "t1,t2,t3" {
		t.Errorf("ids = %s, want input order", got)
	}
}

func TestBuild_StoreFeaturesHashLayout(t *testing.T) {
	cfg := config.Default()
	cfg.Signals.Backend = config.BackendMemory
	cfg.Features.Backend = config.FeaturesStore
	cfg.Features.Layout = feature.LayoutHash

	app, err := config.Build(t.Context(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer app.Close()
	if !app.Engine.Health().FeatureStoreEnabled {
		t.Error("store feature backend should enable the feature fetcher")
	}
}

func TestBuild_BadModelFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.msgpack")
	if err := os.WriteFile(path, []byte("not a model"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Signals.Backend = config.BackendMemory
	cfg.Model.Path = path

	app, err := config.Build(t.Context(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer app.Close()
	if app.Models.Load().Loaded() {
		t.Error("corrupt model should leave the engine without a model")
	}
}

func TestBuild_SQLiteBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Signals.DatabasePath = filepath.Join(t.TempDir(), "signals.db")

	app, err := config.Build(t.Context(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestConfig_YAMLRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Features.Token = "feast-secret"
	cfg.Redis.Password = "redis-secret"

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	s := string(out)
	if strings.Contains(s, "feast-secret") || strings.Contains(s, "redis-secret") {
		t.Errorf("secrets leaked:\n%s", s)
	}
	if !strings.Contains(s, "timeout: 300ms") {
		t.Errorf("durations should be human readable:\n%s", s)
	}
	if cfg.Features.Token != "feast-secret" {
		t.Error("YAML() must not mutate the config")
	}
}

func TestConfig_YAMLRoundTripsThroughLoad(t *testing.T) {
	t.Setenv(config.ConfigPathEnvVar, "")
	cfg := config.Default()
	cfg.Signals.Backend = config.BackendMemory
	cfg.Model.TopK = 77

	out, err := cfg.YAML()
	if err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	loaded, err := config.Load(writeConfig(t, string(out)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Model.TopK != 77 || loaded.Signals.Backend != config.BackendMemory {
		t.Errorf("loaded = %+v", loaded.Model)
	}
	if loaded.Features.Timeout != cfg.Features.Timeout {
		t.Errorf("features.timeout = %s, want %s", loaded.Features.Timeout, cfg.Features.Timeout)
	}
}
