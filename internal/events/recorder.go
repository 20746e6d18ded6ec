package events

import (
	"context"
	"sync"
)

// Recorder keeps published outcomes in memory.
type Recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// Publish appends the outcome.
func (r *Recorder) Publish(_ context.Context, o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

// Outcomes returns a copy of what was published.
func (r *Recorder) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

var _ Publisher = (*Recorder)(nil)
