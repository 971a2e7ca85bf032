package app

import (
	"context"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/redlinehq/redline/internal/config"
	"github.com/redlinehq/redline/internal/corrector"
	"github.com/redlinehq/redline/internal/history"
	"github.com/redlinehq/redline/internal/observe"
	"github.com/redlinehq/redline/pkg/provider/llm/mock"
)

// testMetrics returns an isolated metrics instance.
func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m
}

func TestNew_DefaultsToMemoryStore(t *testing.T) {
	t.Parallel()
	a, err := New(context.Background(), &config.Config{}, nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := a.store.(*history.Memory); !ok {
		t.Errorf("store: got %T, want *history.Memory", a.store)
	}
	if a.corrector != nil {
		t.Error("corrector should be nil without an LLM provider")
	}
	if a.mcpServer != nil {
		t.Error("mcp server should be nil when disabled")
	}
	if a.apiServer == nil {
		t.Error("api server should always be constructed")
	}
}

func TestNew_WithLLMProvider(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Corrector: config.CorrectorConfig{Temperature: 0.3, MaxTokens: 1024},
	}
	providers := &Providers{
		LLM: &mock.Provider{Model: "test-model"},
	}

	a, err := New(context.Background(), cfg, providers, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.corrector == nil {
		t.Fatal("corrector should be built from the LLM provider")
	}
	if a.corrector.ModelID() != "test-model" {
		t.Errorf("model: got %q, want test-model", a.corrector.ModelID())
	}
	st := a.corrector.Settings()
	if st.Temperature != 0.3 || st.MaxTokens != 1024 {
		t.Errorf("settings not taken from config: %+v", st)
	}
}

func TestNew_MCPEnabled(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{MCP: config.MCPConfig{Enabled: true}}

	a, err := New(context.Background(), cfg, nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.mcpServer == nil {
		t.Error("mcp server should be constructed when enabled")
	}
}

func TestNew_InjectedStore(t *testing.T) {
	t.Parallel()
	store := history.NewMemory()
	// A DSN is configured, but the injected store must win.
	cfg := &config.Config{
		History: config.HistoryConfig{PostgresDSN: "postgres://unreachable/void"},
	}

	a, err := New(context.Background(), cfg, nil, WithStore(store), WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.store != store {
		t.Error("injected store should be used as-is")
	}
}

func TestApplyConfigChange(t *testing.T) {
	t.Parallel()
	var level slog.LevelVar
	level.Set(slog.LevelInfo)

	providers := &Providers{LLM: &mock.Provider{}}
	cfg := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogInfo},
		Corrector: config.CorrectorConfig{Temperature: 0.1},
		History:   config.HistoryConfig{RecentLimit: 50},
	}

	a, err := New(context.Background(), cfg, providers,
		WithMetrics(testMetrics(t)),
		WithLogLevelVar(&level),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := &config.Config{
		Server:    config.ServerConfig{LogLevel: config.LogDebug},
		Corrector: config.CorrectorConfig{Temperature: 0.8, MaxTokens: 2048},
		History:   config.HistoryConfig{RecentLimit: 100},
	}
	a.applyConfigChange(cfg, updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level: got %v, want debug", level.Level())
	}
	st := a.corrector.Settings()
	if st.Temperature != 0.8 || st.MaxTokens != 2048 {
		t.Errorf("corrector settings not applied: %+v", st)
	}
}

func TestApplyConfigChange_NoCorrector(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	a, err := New(context.Background(), cfg, nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Must not panic when the corrector is absent.
	updated := &config.Config{Corrector: config.CorrectorConfig{Temperature: 0.9}}
	a.applyConfigChange(cfg, updated)
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a, err := New(context.Background(), &config.Config{}, nil, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("first shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	t.Parallel()
	got := settingsFromConfig(config.CorrectorConfig{
		Temperature:  0.5,
		MaxTokens:    256,
		Explanations: true,
		Timeout:      30 * time.Second,
	})
	want := corrector.Settings{
		Temperature:  0.5,
		MaxTokens:    256,
		Explanations: true,
		Timeout:      30 * time.Second,
	}
	if got != want {
		t.Errorf("settings: got %+v, want %+v", got, want)
	}
}
