// Package sqlite implements the persistent store.sqlite module backing all
// four store contracts (messages, boards, chunks, archive) with a single
// database. It uses modernc.org/sqlite (pure Go, no CGO) with WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/engram-dev/engram/internal/core"
	"github.com/engram-dev/engram/internal/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ memory.MessageSource   = (*messageStore)(nil)
	_ memory.MessageRecorder = (*messageStore)(nil)
	_ memory.BoardStore      = (*boardStore)(nil)
	_ memory.ChunkStore      = (*chunkStore)(nil)
	_ memory.ArchiveStore    = (*archiveStore)(nil)
	_ core.Configurable      = (*Module)(nil)
	_ core.Provisioner       = (*Module)(nil)
	_ core.Validator         = (*Module)(nil)
	_ core.Stopper           = (*Module)(nil)
)

// Module is the store.sqlite module providing all store services backed by
// one database file.
type Module struct {
	config   Config
	db       *sql.DB
	logger   *slog.Logger
	messages *messageStore
	boards   *boardStore
	chunks   *chunkStore
	archive  *archiveStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "store.sqlite",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("sqlite: decode config: %w", err)
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	if dir := filepath.Dir(m.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", m.config.Path)
	if err != nil {
		return fmt.Errorf("sqlite: open %s: %w", m.config.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	if m.config.walEnabled() {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(context.Background(), fmt.Sprintf("PRAGMA busy_timeout=%d", m.config.BusyTimeout)); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return err
	}

	m.db = db
	m.messages = &messageStore{db: db}
	m.boards = &boardStore{db: db}
	m.chunks = &chunkStore{db: db}
	m.archive = &archiveStore{db: db}

	ctx.RegisterService("store.messages", m.messages)
	ctx.RegisterService("store.message_recorder", m.messages)
	ctx.RegisterService("store.boards", m.boards)
	ctx.RegisterService("store.chunks", m.chunks)
	ctx.RegisterService("store.archive", m.archive)

	m.logger.Info("sqlite store module provisioned",
		"path", m.config.Path,
		"wal", m.config.walEnabled(),
	)

	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	if err := m.db.PingContext(context.Background()); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("sqlite store module stopping")
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Messages returns the MessageSource implementation.
func (m *Module) Messages() memory.MessageSource { return m.messages }

// Recorder returns the MessageRecorder implementation.
func (m *Module) Recorder() memory.MessageRecorder { return m.messages }

// Boards returns the BoardStore implementation.
func (m *Module) Boards() memory.BoardStore { return m.boards }

// Chunks returns the ChunkStore implementation.
func (m *Module) Chunks() memory.ChunkStore { return m.chunks }

// Archive returns the ArchiveStore implementation.
func (m *Module) Archive() memory.ArchiveStore { return m.archive }
