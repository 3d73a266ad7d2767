package workingmem

import (
	"fmt"
	"log/slog"

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
	_ core.Starter      = (*Module)(nil)
)

// Config holds the engine.workingmem module configuration.
type Config struct {
	// RecentLimit caps the raw-message fallback (K).
	RecentLimit int `yaml:"recent_limit"`
}

func (c *Config) defaults() {
	if c.RecentLimit == 0 {
		c.RecentLimit = DefaultRecentLimit
	}
}

// Module is the engine.workingmem module. It wires the Manager from the
// store and embedder services and registers it for the gateway and the
// MCP tool surface.
type Module struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "engine.workingmem",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("workingmem: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	return nil
}

// Start implements core.Starter. Dependencies are resolved here, after all
// modules have provisioned and registered their services.
func (m *Module) Start() error {
	source, ok1 := m.appCtx.Service("store.messages")
	boards, ok2 := m.appCtx.Service("store.boards")
	chunks, ok3 := m.appCtx.Service("store.chunks")
	archive, ok4 := m.appCtx.Service("store.archive")
	embed, ok5 := m.appCtx.Service("provider.embedder")
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return fmt.Errorf("workingmem: missing store or embedder services")
	}

	src, ok1 := source.(memory.MessageSource)
	bs, ok2 := boards.(memory.BoardStore)
	cs, ok3 := chunks.(memory.ChunkStore)
	as, ok4 := archive.(memory.ArchiveStore)
	em, ok5 := embed.(provider.Embedder)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return fmt.Errorf("workingmem: service has unexpected type")
	}

	manager := NewManager(ManagerParams{
		Source:   src,
		Boards:   bs,
		Chunks:   cs,
		Archive:  as,
		Embedder: em,
		Logger:   m.logger,
	})

	m.appCtx.RegisterService("workingmem.manager", manager)
	m.appCtx.RegisterService("workingmem.recent_limit", m.config.RecentLimit)

	m.logger.Info("working memory manager started", "recent_limit", m.config.RecentLimit)
	return nil
}
