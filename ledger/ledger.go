// Package ledger accumulates per-task outcomes into a deterministic,
// auditable record of what a run produced.
//
// The ledger's append path is the only state mutated by multiple
// workers during a run; appends serialize under a mutex to preserve
// the append-once invariant. Finalization reorders outcomes by tile
// identity so the summary is independent of completion order.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pithecene-io/stainfetch/types"
)

// Ledger is an append-only, thread-safe accumulator of task outcomes.
type Ledger struct {
	mu         sync.Mutex
	outcomes   []types.TaskOutcome
	seen       map[string]struct{}
	skipFailed bool
	summary    *Summary
}

// Summary is the finalized view of a run's outcomes.
type Summary struct {
	// Total is the number of settled tasks.
	Total int `json:"total" msgpack:"total"`
	// Succeeded counts tasks whose bytes were fetched and written.
	Succeeded int `json:"succeeded" msgpack:"succeeded"`
	// SkippedExisting counts existence short-circuits.
	SkippedExisting int `json:"skipped_existing" msgpack:"skipped_existing"`
	// Synthesized counts fake-image synthesis copies.
	Synthesized int `json:"synthesized" msgpack:"synthesized"`
	// Failed counts tasks that settled without producing a file.
	Failed int `json:"failed" msgpack:"failed"`
	// Bytes is the total bytes written or found on disk.
	Bytes int64 `json:"bytes" msgpack:"bytes"`
	// HasHardFailure is true when at least one task failed and the
	// failure-tolerance policy is disabled; the run as a whole must
	// then be reported as unsuccessful.
	HasHardFailure bool `json:"has_hard_failure" msgpack:"has_hard_failure"`
	// Outcomes is the full outcome list ordered by plate id, position,
	// sample index, z tag and channel name, never by completion time.
	Outcomes []types.TaskOutcome `json:"outcomes" msgpack:"outcomes"`
}

// New creates a ledger. skipFailed carries the run's failure-tolerance
// policy into hard-failure determination at finalize time.
func New(skipFailed bool) *Ledger {
	return &Ledger{
		seen:       make(map[string]struct{}),
		skipFailed: skipFailed,
	}
}

// Record appends one outcome. Exactly one outcome may be recorded per
// task; a second append for the same destination is rejected, as is
// any append after finalization.
func (l *Ledger) Record(outcome types.TaskOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.summary != nil {
		return fmt.Errorf("ledger already finalized, rejecting outcome for %s", outcome.DestPath)
	}
	if _, dup := l.seen[outcome.DestPath]; dup {
		return fmt.Errorf("duplicate outcome for %s", outcome.DestPath)
	}
	l.seen[outcome.DestPath] = struct{}{}
	l.outcomes = append(l.outcomes, outcome)
	return nil
}

// Len returns the number of recorded outcomes.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.outcomes)
}

// Finalize computes the summary. Idempotent: a second call returns the
// same summary without re-deriving state.
func (l *Ledger) Finalize() *Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.summary != nil {
		return l.summary
	}

	ordered := make([]types.TaskOutcome, len(l.outcomes))
	copy(ordered, l.outcomes)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := &ordered[i], &ordered[j]
		if a.Key.PlateID != b.Key.PlateID {
			return a.Key.PlateID < b.Key.PlateID
		}
		if a.Key.Position != b.Key.Position {
			return a.Key.Position < b.Key.Position
		}
		if a.Key.Sample != b.Key.Sample {
			return a.Key.Sample < b.Key.Sample
		}
		if a.Key.ZSlice != b.Key.ZSlice {
			return a.Key.ZSlice < b.Key.ZSlice
		}
		return a.Channel < b.Channel
	})

	summary := &Summary{
		Total:    len(ordered),
		Outcomes: ordered,
	}
	for i := range ordered {
		o := &ordered[i]
		summary.Bytes += o.Bytes
		switch o.Status {
		case types.StatusSuccess:
			summary.Succeeded++
		case types.StatusSkippedExisting:
			summary.SkippedExisting++
		case types.StatusSkippedSynthesized:
			summary.Synthesized++
		case types.StatusFailed:
			summary.Failed++
		}
	}
	summary.HasHardFailure = summary.Failed > 0 && !l.skipFailed

	l.summary = summary
	return summary
}
