package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcedge/bdrserver/config"
	"github.com/arcedge/bdrserver/core"
	"github.com/arcedge/bdrserver/core/bdr"
	"github.com/arcedge/bdrserver/core/http"
	"github.com/arcedge/bdrserver/core/pools"
	"github.com/arcedge/bdrserver/core/static"
)

// App binds a Config to an Engine and manages its lifecycle: building the
// static pool (if any mappings are configured), starting its hot-reload
// watcher, running the accept loop, and tearing both down on signal.
type App struct {
	cfg    *config.Config
	engine *core.Engine
	pool   *static.Pool
}

// New builds the static pool (when cfg names any mappings) and an Engine
// wired to it and to cfg's BDR tunables.
func New(cfg *config.Config) (*App, error) {
	var pool *static.Pool
	if len(cfg.StaticMappings) > 0 {
		mappings := make([]static.Mapping, len(cfg.StaticMappings))
		for i, m := range cfg.StaticMappings {
			mappings[i] = static.Mapping{URLPrefix: m.URLPrefix, FSRoot: m.FSRoot}
		}
		p, err := static.New(mappings, cfg.MaxMemSpace)
		if err != nil {
			return nil, fmt.Errorf("static pool init: %w", err)
		}
		if err := p.StartWatcher(); err != nil {
			return nil, fmt.Errorf("static pool watcher: %w", err)
		}
		pool = p
	}

	engine := core.NewEngine(core.EngineConfig{
		Reader: http.ReaderConfig{
			ReadTimeout: cfg.ReadTimeout,
			BufferSize:  http.DefaultWorkingBufSize,
			HeaderCap:   http.DefaultHeaderCap,
			BodyCap:     http.DefaultBodyCap,
		},
		BDR: bdr.Config{
			MaxBytes:           cfg.BDRMaxBytes,
			MaxEntryAge:        cfg.BDRMaxEntryAge(),
			RevalidateHits:     cfg.BDRRevalidateHits,
			LatencyThresholdMs: cfg.BDRLatencyThresholdMs,
		},
		StaticPool: pool,
	})

	return &App{cfg: cfg, engine: engine, pool: pool}, nil
}

// NewWithEngine wraps a pre-configured Engine, letting callers register
// routes and middleware before the App owns its lifecycle.
func NewWithEngine(cfg *config.Config, engine *core.Engine) *App {
	return &App{cfg: cfg, engine: engine}
}

// Engine returns the underlying engine for route and middleware
// registration.
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Run applies GC tuning, starts the signal-triggered shutdown watcher, and
// blocks in the accept loop until Shutdown is called.
func (a *App) Run() error {
	if a.cfg.Env == "production" {
		pools.OptimizeForHighThroughput()
	} else {
		pools.OptimizeForLowLatency()
	}

	go a.awaitSignal()

	log.Printf("bdrserver starting on %s [%s]", a.cfg.Addr(), a.cfg.Env)
	return a.engine.Run(a.cfg.Addr())
}

// awaitSignal waits for SIGINT/SIGTERM and shuts the engine's listener
// down cleanly; in-flight connections finish their current request before
// their goroutine exits (spec §5 shutdown semantics).
func (a *App) awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("signal received: %v, shutting down", sig)

	if a.pool != nil {
		a.pool.Stop()
	}
	if err := a.engine.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
