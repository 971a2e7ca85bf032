// Package app wires all Redline subsystems into a running application.
//
// The App struct owns the full lifecycle: [New] creates and connects all
// subsystems (history store, corrector, HTTP API, MCP server), [App.Run]
// serves until the context is cancelled, and [App.Shutdown] tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/config"
	"github.com/redlinehq/redline/internal/corrector"
	"github.com/redlinehq/redline/internal/history"
	"github.com/redlinehq/redline/internal/mcpserver"
	"github.com/redlinehq/redline/internal/observe"
	"github.com/redlinehq/redline/pkg/provider/embeddings"
	llm "github.com/redlinehq/redline/pkg/provider/llm"
)

// defaultListenAddr is used when server.listen_addr is not configured.
const defaultListenAddr = ":8080"

// defaultEmbeddingDimensions matches OpenAI text-embedding-3-small, the most
// common embeddings configuration.
const defaultEmbeddingDimensions = 1536

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	store     history.Store
	corrector *corrector.Corrector
	apiServer *api.Server
	mcpServer *mcpserver.Server
	watcher   *config.Watcher

	// logLevel, when set, is retargeted on config hot reload.
	logLevel *slog.LevelVar

	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for [New]. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a history store instead of creating one from config.
func WithStore(s history.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects a metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the App the level var backing the process logger so
// that config hot reload can retarget it.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. History store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Corrector ─────────────────────────────────────────────────────
	a.initCorrector()

	// ── 3. HTTP API ──────────────────────────────────────────────────────
	a.initAPI()

	// ── 4. MCP server ────────────────────────────────────────────────────
	if cfg.MCP.Enabled {
		a.mcpServer = mcpserver.New(a.corrector)
	}

	return a, nil
}

// initStore connects the PostgreSQL history store, or falls back to the
// in-memory store when no DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	if dsn := a.cfg.History.PostgresDSN; dsn != "" {
		dims := a.cfg.History.EmbeddingDimensions
		if dims == 0 {
			dims = defaultEmbeddingDimensions
		}
		store, err := history.NewPostgres(ctx, dsn, dims)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		slog.Info("history store connected", "backend", "postgres", "dimensions", dims)
		return nil
	}

	a.store = history.NewMemory()
	slog.Info("history store connected", "backend", "memory")
	return nil
}

// initCorrector builds the corrector when an LLM provider is configured.
func (a *App) initCorrector() {
	if a.providers.LLM == nil {
		slog.Warn("no LLM provider configured; /v1/correct and /v1/live are disabled")
		return
	}
	a.corrector = corrector.New(a.providers.LLM,
		corrector.WithSettings(settingsFromConfig(a.cfg.Corrector)),
		corrector.WithMetrics(a.metrics),
	)
	slog.Info("corrector ready", "model", a.corrector.ModelID())
}

// initAPI assembles the HTTP server from whatever subsystems are available.
func (a *App) initAPI() {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	opts := []api.Option{
		api.WithMetrics(a.metrics),
		api.WithRecentLimit(a.cfg.History.RecentLimit),
	}
	if a.corrector != nil {
		opts = append(opts, api.WithCorrector(a.corrector))
	}
	if a.providers.Embeddings != nil {
		opts = append(opts, api.WithEmbeddings(a.providers.Embeddings))
	}
	a.apiServer = api.New(addr, a.store, opts...)
}

// ─── Config hot reload ───────────────────────────────────────────────────────

// WatchConfig starts polling path for config changes and applies the
// hot-reloadable subset (log level, corrector tuning, history page size) as
// they arrive. Call before Run.
func (a *App) WatchConfig(path string) error {
	w, err := config.NewWatcher(path, a.applyConfigChange)
	if err != nil {
		return fmt.Errorf("app: watch config: %w", err)
	}
	a.watcher = w
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

// applyConfigChange is the watcher callback. Only changes that are safe
// without a restart are applied; everything else is ignored until the next
// start.
func (a *App) applyConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CorrectorChanged && a.corrector != nil {
		a.corrector.ApplySettings(settingsFromConfig(d.NewCorrector))
		slog.Info("corrector settings changed",
			"temperature", d.NewCorrector.Temperature,
			"max_tokens", d.NewCorrector.MaxTokens,
			"explanations", d.NewCorrector.Explanations,
		)
	}
	if d.RecentLimitChanged {
		a.apiServer.SetRecentLimit(d.NewRecentLimit)
		slog.Info("history page size changed", "recent_limit", d.NewRecentLimit)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP (and MCP when enabled) until ctx is cancelled or a server
// fails. On cancellation the HTTP server drains gracefully before Run
// returns.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("api server listening", "addr", a.cfg.Server.ListenAddr, "tls", true)
			return a.apiServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		}
		slog.Info("api server listening", "addr", a.cfg.Server.ListenAddr)
		return a.apiServer.ListenAndServe()
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.apiServer.Shutdown(context.Background())
	})

	if a.mcpServer != nil {
		g.Go(func() error {
			if addr := a.cfg.MCP.ListenAddr; addr != "" {
				slog.Info("mcp server listening", "addr", addr)
				return a.mcpServer.RunHTTP(gctx, addr)
			}
			slog.Info("mcp server on stdio")
			return a.mcpServer.Run(gctx)
		})
	}

	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// settingsFromConfig converts the config block to corrector settings.
func settingsFromConfig(cc config.CorrectorConfig) corrector.Settings {
	return corrector.Settings{
		Temperature:  cc.Temperature,
		MaxTokens:    cc.MaxTokens,
		Explanations: cc.Explanations,
		Timeout:      cc.Timeout,
	}
}
