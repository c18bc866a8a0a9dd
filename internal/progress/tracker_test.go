package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestTracker() *Tracker {
	clock := &stepClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
	return NewTracker("run-1", 5, 1, clock, zap.NewNop())
}

func attempt(kind scrape.OutcomeKind) scrape.Attempt {
	return scrape.Attempt{Item: scrape.WorkItem{Row: 1}, Outcome: scrape.Outcome{Kind: kind}}
}

func TestTrackerCounters(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	tr.RoundStarted(0, 5)
	tr.AttemptObserved(attempt(scrape.OutcomeSuccess))
	tr.AttemptObserved(attempt(scrape.OutcomeSuccess))
	tr.AttemptObserved(attempt(scrape.OutcomeNotFound))
	tr.AttemptObserved(attempt(scrape.OutcomeFetchFailed))
	tr.AttemptObserved(attempt(scrape.OutcomeParseFailed))
	tr.RoundFinished(0, 2)

	snap := tr.Snapshot()
	require.Equal(t, "run-1", snap.RunID)
	require.Equal(t, 5, snap.TotalItems)
	require.Equal(t, 5, snap.Attempts)
	require.Equal(t, 2, snap.Succeeded)
	require.Equal(t, 1, snap.NotFound)
	require.Equal(t, 2, snap.PendingRetry)
	require.False(t, snap.Done)
	require.True(t, snap.UpdatedAt.After(snap.StartedAt))
}

func TestTrackerRunFinished(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	tr.RunFinished()
	require.True(t, tr.Snapshot().Done)
}

func TestTrackerNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var tr *Tracker
	tr.RoundStarted(0, 3)
	tr.AttemptObserved(attempt(scrape.OutcomeSuccess))
	tr.RoundFinished(0, 0)
	tr.RunFinished()
	require.Equal(t, Snapshot{}, tr.Snapshot())
}

func TestTrackerConcurrentAttempts(t *testing.T) {
	t.Parallel()

	tr := newTestTracker()
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				tr.AttemptObserved(attempt(scrape.OutcomeSuccess))
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	snap := tr.Snapshot()
	require.Equal(t, 100, snap.Attempts)
	require.Equal(t, 100, snap.Succeeded)
}
