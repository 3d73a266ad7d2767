package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/engram-dev/engram/internal/core"
	"github.com/engram-dev/engram/internal/memory"
	"github.com/engram-dev/engram/internal/provider"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Config holds the engine.summarizer module configuration.
type Config struct {
	// Threshold is the unsummarized-message count that triggers a run.
	Threshold int `yaml:"threshold"`

	// Timeout bounds each capability call within a run.
	Timeout time.Duration `yaml:"timeout"`

	// ChunkTTL is the memory chunk time-to-live.
	ChunkTTL time.Duration `yaml:"chunk_ttl"`

	// Workers bounds cross-conversation run parallelism.
	Workers int `yaml:"workers"`
}

func (c *Config) defaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ChunkTTL == 0 {
		c.ChunkTTL = DefaultChunkTTL
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
}

func (c *Config) validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("summarizer: threshold must be positive, got %d", c.Threshold)
	}
	if c.Timeout < 0 || c.ChunkTTL < 0 || c.Workers < 0 {
		return fmt.Errorf("summarizer: timeout, chunk_ttl and workers must be non-negative")
	}
	return nil
}

// Module is the engine.summarizer module. It owns the Engine, the
// coalescing Scheduler, and the trigger Observer, and registers the latter
// two as services for the gateway.
type Module struct {
	config   Config
	appCtx   *core.AppContext
	logger   *slog.Logger
	engine   *Engine
	sched    *Scheduler
	observer *Observer
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "engine.summarizer",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("summarizer: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. The scheduler and observer are
// created here so other modules can resolve them; their store and provider
// dependencies are bound in Start, once every module has provisioned.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger

	m.sched = NewScheduler(m.runEngine, m.config.Workers, m.logger)
	ctx.RegisterService("summarizer.scheduler", m.sched)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter. Resolves stores and capability providers
// from the service registry and wires the engine and observer.
func (m *Module) Start() error {
	source, err := resolveService[memory.MessageSource](m.appCtx, "store.messages")
	if err != nil {
		return err
	}
	boards, err := resolveService[memory.BoardStore](m.appCtx, "store.boards")
	if err != nil {
		return err
	}
	summarize, err := resolveService[provider.Summarizer](m.appCtx, "provider.summarizer")
	if err != nil {
		return err
	}
	embed, err := resolveService[provider.Embedder](m.appCtx, "provider.embedder")
	if err != nil {
		return err
	}

	m.engine = NewEngine(EngineParams{
		Source:     source,
		Boards:     boards,
		Summarizer: summarize,
		Embedder:   embed,
		Timeout:    m.config.Timeout,
		ChunkTTL:   m.config.ChunkTTL,
		Logger:     m.logger,
	})

	m.observer = NewObserver(source, boards, m.sched, m.config.Threshold, m.logger)
	m.appCtx.RegisterService("summarizer.observer", m.observer)

	m.logger.Info("summarizer engine started",
		"threshold", m.config.Threshold,
		"timeout", m.config.Timeout,
		"chunk_ttl", m.config.ChunkTTL,
		"workers", m.config.Workers,
	)
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.sched == nil {
		return nil
	}
	return m.sched.Stop(ctx)
}

// runEngine indirects through the module so the scheduler can be created
// before the engine's dependencies are resolvable.
func (m *Module) runEngine(ctx context.Context, conversationID string) error {
	if m.engine == nil {
		return fmt.Errorf("summarizer: engine not started")
	}
	return m.engine.Run(ctx, conversationID)
}

// resolveService fetches a typed service from the registry.
func resolveService[T any](ctx *core.AppContext, name string) (T, error) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, fmt.Errorf("summarizer: required service %q not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("summarizer: service %q has unexpected type %T", name, svc)
	}
	return typed, nil
}
