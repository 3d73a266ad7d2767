package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrRunInFlight indicates a run for the conversation is already scheduled
// or executing. The duplicate trigger is coalesced, never queued: the
// in-flight run (or the next trigger) picks up the whole pending window.
var ErrRunInFlight = errors.New("summarizer run already in flight")

// DefaultWorkers bounds cross-conversation parallelism.
const DefaultWorkers = 4

// RunFunc executes one summarizer run for a conversation.
type RunFunc func(ctx context.Context, conversationID string) error

// Scheduler enforces single-writer-per-conversation execution of summarizer
// runs on a bounded worker pool. Runs for distinct conversations proceed in
// parallel; a duplicate for the same conversation is rejected with
// ErrRunInFlight while the first is pending or running.
type Scheduler struct {
	mu      sync.Mutex
	states  map[string]context.CancelFunc
	stopped bool

	run    RunFunc
	sem    chan struct{}
	logger *slog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler executing run with at most workers
// concurrent runs.
func NewScheduler(run RunFunc, workers int, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		states:    make(map[string]context.CancelFunc),
		run:       run,
		sem:       make(chan struct{}, workers),
		logger:    logger,
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// Schedule requests a run for the conversation. Returns ErrRunInFlight when
// a run is already pending or executing for it (the coalescing guarantee),
// or an error after Stop. A nil return means exactly one run will execute,
// unless cancelled before it starts.
func (s *Scheduler) Schedule(conversationID string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("summarizer: scheduler stopped")
	}
	if _, inFlight := s.states[conversationID]; inFlight {
		s.mu.Unlock()
		coalescedTotal.Inc()
		return ErrRunInFlight
	}

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.states[conversationID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(runCtx, conversationID)
	return nil
}

// Cancel aborts a scheduled-but-not-yet-started run and signals an
// executing run's context. An executing run's capability timeout is its
// cancellation boundary; committed state is never rolled back.
func (s *Scheduler) Cancel(conversationID string) {
	s.mu.Lock()
	cancel, ok := s.states[conversationID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Scheduler) execute(ctx context.Context, conversationID string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.states, conversationID)
		s.mu.Unlock()
	}()

	// Wait for a worker slot; a cancel while queued skips the run entirely.
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return
	}
	if ctx.Err() != nil {
		return
	}

	if err := s.run(ctx, conversationID); err != nil {
		// Failures are absorbed here: the pending window is retried on the
		// next natural trigger and no caller sees the error.
		s.logger.Warn("summarizer run failed, window remains pending",
			"conversation", conversationID,
			"error", err,
		)
	}
}

// Stop cancels all pending runs and waits for executing ones, bounded by
// the given context.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports whether a run is pending or executing for the
// conversation.
func (s *Scheduler) InFlight(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[conversationID]
	return ok
}
