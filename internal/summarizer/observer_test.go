package summarizer

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/engram-dev/engram/internal/memory"
	"github.com/engram-dev/engram/internal/memory/memorytest"
)

func newObserverHarness(t *testing.T, threshold int) (*memorytest.Store, *Observer, *atomic.Int64) {
	t.Helper()

	store := memorytest.NewStore()
	var runs atomic.Int64
	sched := NewScheduler(func(context.Context, string) error {
		runs.Add(1)
		return nil
	}, 2, nil)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	return store, NewObserver(store, store, sched, threshold, nil), &runs
}

func TestObserverBelowThresholdDoesNotTrigger(t *testing.T) {
	t.Parallel()

	store, obs, runs := newObserverHarness(t, 5)
	seedConversation(store, "c1", 4)

	obs.MessageAppended(context.Background(), "c1")

	if got := runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0", got)
	}
}

func TestObserverTriggersAtThreshold(t *testing.T) {
	t.Parallel()

	store, obs, runs := newObserverHarness(t, 5)
	seedConversation(store, "c1", 5)

	obs.MessageAppended(context.Background(), "c1")

	waitFor(t, func() bool { return runs.Load() == 1 })
}

func TestObserverCountsOnlyUnsummarizedMessages(t *testing.T) {
	t.Parallel()

	store, obs, runs := newObserverHarness(t, 5)
	seedConversation(store, "c1", 8)
	store.SeedBoard(memory.SummaryBoard{ConversationID: "c1", Summary: "s", MessageCount: 5})

	// 8 total, 5 summarized: 3 pending, below the threshold.
	obs.MessageAppended(context.Background(), "c1")

	if got := runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0", got)
	}

	// Two more messages reach the threshold again.
	seedConversation(store, "c1", 2)
	obs.MessageAppended(context.Background(), "c1")

	waitFor(t, func() bool { return runs.Load() == 1 })
}

func TestObserverAbsorbsCoalescedTriggers(t *testing.T) {
	t.Parallel()

	store := memorytest.NewStore()
	seedConversation(store, "c1", 5)

	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int64
	sched := NewScheduler(func(context.Context, string) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}, 2, nil)
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	obs := NewObserver(store, store, sched, 5, nil)

	obs.MessageAppended(context.Background(), "c1")
	<-started

	// Messages keep arriving while the run is in flight; every trigger is
	// coalesced, none panics or queues.
	for i := 0; i < 3; i++ {
		seedConversation(store, "c1", 1)
		obs.MessageAppended(context.Background(), "c1")
	}
	close(release)
	waitFor(t, func() bool { return !sched.InFlight("c1") })

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestObserverDefaultThreshold(t *testing.T) {
	t.Parallel()

	obs := NewObserver(nil, nil, nil, 0, nil)
	if got := obs.Threshold(); got != DefaultThreshold {
		t.Errorf("Threshold() = %d, want %d", got, DefaultThreshold)
	}
}
