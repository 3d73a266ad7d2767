// Package mcptool exposes the working-memory read operations as MCP tools,
// so agent hosts can query boards, memory chunks, and the summary archive
// over the Model Context Protocol.
package mcptool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/engram-dev/engram/internal/core"
	"github.com/engram-dev/engram/internal/workingmem"
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

// Server identity advertised to connecting MCP clients.
const (
	serverName    = "engram"
	serverVersion = "0.1.0"
)

// Config holds the mcp.server module configuration.
type Config struct {
	// Enabled gates the whole module; the MCP surface is opt-in.
	Enabled bool `yaml:"enabled"`

	// Bind is the listen address for the streamable HTTP transport.
	Bind string `yaml:"bind"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8765"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Module is the mcp.server module.
type Module struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger

	manager     *workingmem.Manager
	recentLimit int
	httpServer  *server.StreamableHTTPServer
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "mcp.server",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("mcptool: decode config: %w", err)
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

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if !m.config.Enabled {
		return nil
	}
	if _, err := net.ResolveTCPAddr("tcp", m.config.Bind); err != nil {
		return fmt.Errorf("mcptool: invalid bind address %q", m.config.Bind)
	}
	return nil
}

// Start implements core.Starter. Resolves the working-memory manager, builds
// the MCP server with the tool set, and serves it over streamable HTTP.
func (m *Module) Start() error {
	if !m.config.Enabled {
		return nil
	}

	svc, ok := m.appCtx.Service("workingmem.manager")
	if !ok {
		return errors.New("mcptool: workingmem.manager service not registered")
	}
	manager, ok := svc.(*workingmem.Manager)
	if !ok {
		return fmt.Errorf("mcptool: workingmem.manager has unexpected type %T", svc)
	}
	m.manager = manager

	if svc, ok := m.appCtx.Service("workingmem.recent_limit"); ok {
		if limit, ok := svc.(int); ok {
			m.recentLimit = limit
		}
	}

	mcpServer := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
	)
	m.registerTools(mcpServer)

	m.httpServer = server.NewStreamableHTTPServer(mcpServer)

	go func() {
		m.logger.Info("mcp server listening", "addr", m.config.Bind)
		if err := m.httpServer.Start(m.config.Bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("mcp server error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()
	return m.httpServer.Shutdown(shutdownCtx)
}
