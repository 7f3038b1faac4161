package server

import (
	"sync"
	"time"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/builder"
)

// Status is the JSON snapshot served at /v1/status.
type Status struct {
	RunID      string             `json:"run_id"`
	Step       string             `json:"step,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	PoetsDone  int                `json:"poets_done"`
	PoemsDone  int                `json:"poems_done"`
	LastPoet   *builder.PoetEvent `json:"last_poet,omitempty"`
	Summary    *builder.Summary   `json:"summary,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Tracker records run progress for the status endpoint. It is safe for
// concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker returns a Tracker for one run.
func NewTracker(runID string) *Tracker {
	return &Tracker{status: Status{RunID: runID}}
}

// Begin marks the start of a step.
func (t *Tracker) Begin(step string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Step = step
	t.status.StartedAt = &at
	t.status.FinishedAt = nil
}

// PoetDone is passed to the builder as its OnPoetDone hook.
func (t *Tracker) PoetDone(ev builder.PoetEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.PoetsDone++
	t.status.PoemsDone += ev.Stored
	t.status.LastPoet = &ev
}

// Finish records the outcome of the current step.
func (t *Tracker) Finish(sum *builder.Summary, err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.FinishedAt = &at
	t.status.Summary = sum
	if err != nil {
		t.status.Error = err.Error()
	}
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
