package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/engram-dev/engram/internal/core"
	"github.com/engram-dev/engram/internal/memory"
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

// DefaultArchiveRetention is how long archive entries are kept before the
// retention job prunes them.
const DefaultArchiveRetention = 90 * 24 * time.Hour

// Config holds the cron.jobs module configuration.
type Config struct {
	// ReapSchedule is the cron expression for the chunk reaper.
	ReapSchedule string `yaml:"reap_schedule"`

	// RetentionSchedule is the cron expression for archive pruning.
	RetentionSchedule string `yaml:"retention_schedule"`

	// ArchiveRetention is how long archive entries are kept.
	ArchiveRetention time.Duration `yaml:"archive_retention"`
}

func (c *Config) defaults() {
	if c.ArchiveRetention == 0 {
		c.ArchiveRetention = DefaultArchiveRetention
	}
}

// Module is the cron.jobs module. It runs the periodic maintenance jobs
// against the memory stores: chunk TTL reaping and archive retention.
type Module struct {
	config Config
	appCtx *core.AppContext
	logger *slog.Logger
	sched  *Scheduler
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cron.jobs",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cron: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.sched = NewScheduler(m.logger)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.ArchiveRetention < 0 {
		return fmt.Errorf("cron: archive_retention must be non-negative, got %s", m.config.ArchiveRetention)
	}
	return nil
}

// Start implements core.Starter. Resolves the stores, registers the jobs
// and starts the scheduler.
func (m *Module) Start() error {
	chunks, err := resolveService[memory.ChunkStore](m.appCtx, "store.chunks")
	if err != nil {
		return err
	}
	archive, err := resolveService[memory.ArchiveStore](m.appCtx, "store.archive")
	if err != nil {
		return err
	}

	jobs := []Job{
		&ChunkReaperJob{
			Chunks:       chunks,
			ScheduleExpr: m.config.ReapSchedule,
			Logger:       m.logger,
		},
		&ArchiveRetentionJob{
			Archive:      archive,
			Retention:    m.config.ArchiveRetention,
			ScheduleExpr: m.config.RetentionSchedule,
			Logger:       m.logger,
		},
	}
	for _, j := range jobs {
		if err := m.sched.RegisterJob(j); err != nil {
			return err
		}
	}

	if err := m.sched.Start(); err != nil {
		return err
	}

	m.logger.Info("maintenance jobs scheduled",
		"archive_retention", m.config.ArchiveRetention,
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

// resolveService fetches a typed service from the registry.
func resolveService[T any](ctx *core.AppContext, name string) (T, error) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, fmt.Errorf("cron: required service %q not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("cron: service %q has unexpected type %T", name, svc)
	}
	return typed, nil
}
