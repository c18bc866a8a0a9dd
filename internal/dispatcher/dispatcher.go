// Package dispatcher partitions the worklist across workers and drives the
// bounded retry rounds.
package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/appmeta-scraper/internal/metrics"
	"github.com/JakeFAU/appmeta-scraper/internal/progress"
	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// ShardProcessor processes one shard for one round, returning exactly one
// Attempt per input item, in input order.
type ShardProcessor interface {
	Process(ctx context.Context, round int, items []scrape.WorkItem) []scrape.Attempt
}

// Config controls Dispatcher behavior.
type Config struct {
	// WorkerCount is the number of parallel shards per round. Must be >= 1.
	WorkerCount int
	// MaxRetries is the number of retry rounds after the initial pass.
	MaxRetries int
	// RunID tags published events.
	RunID string
	// Topic is the Pub/Sub topic for round summaries; empty disables
	// publishing.
	Topic string
}

// Result is the final, fully accounted partition of the worklist: the row
// sets of Records, NotFound outcomes, and Failed always partition the input
// exactly.
type Result struct {
	Records  map[int]scrape.Record
	Failed   []scrape.WorkItem
	Outcomes map[int]scrape.Outcome
	Items    map[int]scrape.WorkItem
	// Rounds is the number of dispatch rounds actually executed.
	Rounds int
}

// Rows returns the succeeded records ordered by row.
func (r Result) Rows() []scrape.ResultRow {
	rows := make([]scrape.ResultRow, 0, len(r.Records))
	for row, rec := range r.Records {
		rows = append(rows, scrape.ResultRow{
			Item:   r.Items[row],
			Record: rec,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Item.Row < rows[j].Item.Row })
	return rows
}

// Dispatcher owns the run state and the round/merge loop. Workers are pure
// shard-to-attempts functions; all shared state is mutated here, between
// barrier-synchronized rounds.
type Dispatcher struct {
	proc      ShardProcessor
	cfg       Config
	tracker   *progress.Tracker
	publisher scrape.Publisher
	clock     scrape.Clock
	logger    *zap.Logger
}

// New constructs a Dispatcher. tracker and publisher may be nil.
func New(
	proc ShardProcessor,
	cfg Config,
	tracker *progress.Tracker,
	publisher scrape.Publisher,
	clock scrape.Clock,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		proc:      proc,
		cfg:       cfg,
		tracker:   tracker,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Run executes round 0 plus up to MaxRetries retry rounds over the worklist
// and returns the final partition. Every input row ends with exactly one
// terminal outcome: Success, NotFound, or a retryable failure promoted to
// terminal once rounds are exhausted. Per-item failures never abort the
// run; only invalid configuration does.
func (d *Dispatcher) Run(ctx context.Context, worklist []scrape.WorkItem) (Result, error) {
	if d.proc == nil {
		return Result{}, fmt.Errorf("no shard processor configured")
	}
	if d.cfg.WorkerCount < 1 {
		return Result{}, fmt.Errorf("worker count must be >= 1, got %d", d.cfg.WorkerCount)
	}
	if d.cfg.MaxRetries < 0 {
		return Result{}, fmt.Errorf("max retries must be >= 0, got %d", d.cfg.MaxRetries)
	}

	state := newRunState(worklist)
	d.logger.Info("run started",
		zap.String("run_id", d.cfg.RunID),
		zap.Int("items", len(state.pending)),
		zap.Int("workers", d.cfg.WorkerCount),
		zap.Int("max_retries", d.cfg.MaxRetries),
	)

	roundsRun := 0
	for round := 0; round <= d.cfg.MaxRetries; round++ {
		if len(state.pending) == 0 {
			break
		}
		if err := ctx.Err(); err != nil && round > 0 {
			// Round 0 always dispatches so every row gets an outcome; the
			// workers report canceled items as fetch-failed. Pending items
			// here already carry a retryable outcome from the previous
			// round, so skipping further rounds keeps them accounted.
			d.logger.Warn("run canceled, skipping remaining rounds",
				zap.Int("round", round),
				zap.Int("pending", len(state.pending)),
			)
			break
		}

		d.tracker.RoundStarted(round, len(state.pending))
		metrics.ObserveRound()
		metrics.SetPendingItems(len(state.pending))

		attempts := d.dispatchRound(ctx, round, state.pending)
		state.merge(round, attempts)
		roundsRun++

		for _, a := range attempts {
			d.tracker.AttemptObserved(a)
		}
		d.tracker.RoundFinished(round, len(state.pending))
		d.publishRoundSummary(ctx, round, len(attempts), len(state.pending))
	}

	result := Result{
		Records:  state.records(),
		Failed:   state.failed(),
		Outcomes: state.outcomes,
		Items:    state.items,
		Rounds:   roundsRun,
	}
	d.tracker.RunFinished()
	metrics.SetPendingItems(0)
	d.publishRunDone(ctx, result)
	d.logger.Info("run finished",
		zap.String("run_id", d.cfg.RunID),
		zap.Int("succeeded", len(result.Records)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// dispatchRound fans the pending set out across the worker pool and blocks
// until every shard reports back. Rounds are barrier-synchronized: nothing
// merges until all workers in the round have finished.
func (d *Dispatcher) dispatchRound(ctx context.Context, round int, pending []scrape.WorkItem) []scrape.Attempt {
	shards := shard(pending, d.cfg.WorkerCount)
	results := make(chan []scrape.Attempt, len(shards))

	var wg sync.WaitGroup
	for _, sh := range shards {
		wg.Add(1)
		go func(items []scrape.WorkItem) {
			defer wg.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			results <- d.proc.Process(ctx, round, items)
		}(sh)
	}
	wg.Wait()
	close(results)

	attempts := make([]scrape.Attempt, 0, len(pending))
	for batch := range results {
		attempts = append(attempts, batch...)
		for _, a := range batch {
			metrics.ObserveAttempt(string(a.Outcome.Kind))
		}
	}
	return attempts
}

func (d *Dispatcher) publishRoundSummary(ctx context.Context, round, attempts, pendingNext int) {
	if d.publisher == nil || d.cfg.Topic == "" {
		return
	}
	event := scrape.RunEvent{
		Event:       scrape.EventRoundDone,
		RunID:       d.cfg.RunID,
		Round:       round,
		Attempts:    attempts,
		PendingNext: pendingNext,
		Timestamp:   d.now(),
	}
	if _, err := d.publisher.Publish(ctx, d.cfg.Topic, event); err != nil {
		d.logger.Warn("round summary publish failed", zap.Int("round", round), zap.Error(err))
	}
}

func (d *Dispatcher) publishRunDone(ctx context.Context, result Result) {
	if d.publisher == nil || d.cfg.Topic == "" {
		return
	}
	event := scrape.RunEvent{
		Event:     scrape.EventRunDone,
		RunID:     d.cfg.RunID,
		Succeeded: len(result.Records),
		Failed:    len(result.Failed),
		Timestamp: d.now(),
	}
	if _, err := d.publisher.Publish(ctx, d.cfg.Topic, event); err != nil {
		d.logger.Warn("run done publish failed", zap.Error(err))
	}
}

func (d *Dispatcher) now() string {
	if d.clock == nil {
		return ""
	}
	return d.clock.Now().Format("2006-01-02T15:04:05Z07:00")
}
