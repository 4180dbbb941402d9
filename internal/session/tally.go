package session

import (
	"context"
	"sync"

	"github.com/launchlab/shotcore/internal/lifecycle"
)

// #region tally
// Tally keeps in-memory aggregates. It is safe for concurrent use so HUD
// readers can query it while the engine publishes.
type Tally struct {
	mu  sync.Mutex
	agg Aggregates
}

// NewTally creates an empty tally.
func NewTally() *Tally {
	return &Tally{agg: Aggregates{ByReason: make(map[lifecycle.RefusalReason]int)}}
}

// Record counts one decision.
func (t *Tally) Record(d lifecycle.Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agg.Total++
	if d.Finalized() {
		t.agg.Accepted++
		return
	}
	t.agg.Refused++
	t.agg.ByReason[d.Refusal]++
}

// Publish implements lifecycle.Sink.
func (t *Tally) Publish(_ context.Context, d lifecycle.Decision) error {
	t.Record(d)
	return nil
}

// Aggregates returns a copy of the current counts.
func (t *Tally) Aggregates() Aggregates {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.agg
	out.ByReason = make(map[lifecycle.RefusalReason]int, len(t.agg.ByReason))
	for k, v := range t.agg.ByReason {
		out.ByReason[k] = v
	}
	return out
}
// #endregion tally
