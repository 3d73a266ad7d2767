package summarizer

import (
	"reflect"
	"testing"
	"time"

	"github.com/engram-dev/engram/internal/memory"
)

func TestFoldReplacesTextAndGrowsCount(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prior := memory.SummaryBoard{
		ConversationID:   "c1",
		Summary:          "old summary",
		ImportantFacts:   []string{"fact a"},
		ActionItems:      []string{"do x"},
		PendingQuestions: []string{"why?"},
		ContextNotes:     "old notes",
		MessageCount:     10,
		LastUpdated:      now.Add(-time.Hour),
	}
	update := memory.SummaryUpdate{
		Summary:          "new summary",
		ImportantFacts:   []string{"fact b", "fact c"},
		ActionItems:      nil,
		PendingQuestions: []string{"when?"},
		ContextNotes:     "new notes",
	}

	got := Fold(prior, update, 7, now)

	want := memory.SummaryBoard{
		ConversationID:   "c1",
		Summary:          "new summary",
		ImportantFacts:   []string{"fact b", "fact c"},
		ActionItems:      nil,
		PendingQuestions: []string{"when?"},
		ContextNotes:     "new notes",
		MessageCount:     17,
		LastUpdated:      now,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fold() = %+v, want %+v", got, want)
	}
}

func TestFoldFromEmptySeed(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	seed := memory.SummaryBoard{ConversationID: "c2"}
	update := memory.SummaryUpdate{Summary: "first summary"}

	got := Fold(seed, update, 5, now)

	if got.MessageCount != 5 {
		t.Errorf("MessageCount = %d, want 5", got.MessageCount)
	}
	if got.Summary != "first summary" {
		t.Errorf("Summary = %q, want %q", got.Summary, "first summary")
	}
	if got.ConversationID != "c2" {
		t.Errorf("ConversationID = %q, want %q", got.ConversationID, "c2")
	}
}

func TestFoldDoesNotAliasUpdateSlices(t *testing.T) {
	t.Parallel()

	update := memory.SummaryUpdate{
		Summary:        "s",
		ImportantFacts: []string{"original"},
	}
	got := Fold(memory.SummaryBoard{}, update, 1, time.Now())

	update.ImportantFacts[0] = "mutated"
	if got.ImportantFacts[0] != "original" {
		t.Error("Fold shares backing array with the update")
	}
}
