// Package progress tracks run state for logging and the status API.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// Snapshot is a read-only view of a run, served by the status API.
type Snapshot struct {
	RunID        string    `json:"run_id"`
	TotalItems   int       `json:"total_items"`
	Round        int       `json:"round"`
	MaxRetries   int       `json:"max_retries"`
	Attempts     int       `json:"attempts"`
	Succeeded    int       `json:"succeeded"`
	NotFound     int       `json:"not_found"`
	PendingRetry int       `json:"pending_retry"`
	Done         bool      `json:"done"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Tracker accumulates run progress. All methods are safe for concurrent use
// and safe on a nil receiver, so callers can leave progress unwired.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	clock  scrape.Clock
	logger *zap.Logger
}

// NewTracker creates a Tracker for one run.
func NewTracker(runID string, totalItems, maxRetries int, clock scrape.Clock, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := clock.Now()
	return &Tracker{
		snap: Snapshot{
			RunID:      runID,
			TotalItems: totalItems,
			MaxRetries: maxRetries,
			StartedAt:  now,
			UpdatedAt:  now,
		},
		clock:  clock,
		logger: logger,
	}
}

// RoundStarted records the beginning of a dispatch round.
func (t *Tracker) RoundStarted(round, pending int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.Round = round
	t.snap.PendingRetry = pending
	t.snap.UpdatedAt = t.clock.Now()
	t.mu.Unlock()
	t.logger.Info("round started", zap.Int("round", round), zap.Int("pending", pending))
}

// AttemptObserved folds one worker attempt into the counters.
func (t *Tracker) AttemptObserved(attempt scrape.Attempt) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.Attempts++
	switch attempt.Outcome.Kind {
	case scrape.OutcomeSuccess:
		t.snap.Succeeded++
	case scrape.OutcomeNotFound:
		t.snap.NotFound++
	}
	t.snap.UpdatedAt = t.clock.Now()
	t.mu.Unlock()
}

// RoundFinished records the post-merge pending set size.
func (t *Tracker) RoundFinished(round, pendingNext int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.PendingRetry = pendingNext
	t.snap.UpdatedAt = t.clock.Now()
	t.mu.Unlock()
	t.logger.Info("round finished", zap.Int("round", round), zap.Int("pending_next", pendingNext))
}

// RunFinished marks the run done.
func (t *Tracker) RunFinished() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.snap.Done = true
	t.snap.UpdatedAt = t.clock.Now()
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
