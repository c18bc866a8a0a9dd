// Package worker executes one shard of the worklist end-to-end.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/appmeta-scraper/internal/metrics"
	"github.com/JakeFAU/appmeta-scraper/internal/pacing"
	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// Config controls Worker behavior.
type Config struct {
	// Delay is the politeness pause between items within a shard.
	Delay time.Duration
	// RunID tags archived snapshots.
	RunID string
	// SnapshotPrefix prefixes snapshot object paths.
	SnapshotPrefix string
	// ContentType is used for archived snapshots.
	ContentType string
}

// Worker owns exactly one browser session for the duration of one shard.
// It produces one Attempt per input item, in input order, and never lets a
// single item's failure abort the remainder of the shard.
type Worker struct {
	sessions  scrape.SessionFactory
	extractor scrape.Extractor
	snapshots scrape.SnapshotStore
	hasher    scrape.Hasher
	pace      *pacing.Limiter
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. snapshots and hasher may be nil to disable
// archiving.
func New(
	sessions scrape.SessionFactory,
	extractor scrape.Extractor,
	snapshots scrape.SnapshotStore,
	hasher scrape.Hasher,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		sessions:  sessions,
		extractor: extractor,
		snapshots: snapshots,
		hasher:    hasher,
		pace:      pacing.New(cfg.Delay),
		cfg:       cfg,
		logger:    logger,
	}
}

// Process runs the shard against a fresh session. The session is released on
// every exit path. Session creation failure is the worker-crash case: every
// item in the shard is reported fetch-failed and re-enters the retry pool.
func (w *Worker) Process(ctx context.Context, round int, items []scrape.WorkItem) []scrape.Attempt {
	attempts := make([]scrape.Attempt, 0, len(items))

	session, err := w.sessions.NewSession(ctx)
	if err != nil {
		w.logger.Error("session creation failed", zap.Int("round", round), zap.Error(err))
		reason := fmt.Sprintf("worker crash: %v", err)
		for _, item := range items {
			attempts = append(attempts, scrape.Attempt{
				Item:    item,
				Round:   round,
				Outcome: scrape.FetchFailed(reason),
			})
		}
		return attempts
	}
	defer session.Close()

	for _, item := range items {
		// The bucket starts full, so this never delays the shard's first
		// item. A canceled context surfaces as the item's own
		// canceled-before-attempt outcome below.
		if err := w.pace.Wait(ctx); err != nil {
			w.logger.Debug("pacing interrupted", zap.Int("row", item.Row), zap.Error(err))
		}
		start := time.Now()
		attempt := w.processItem(ctx, round, session, item)
		metrics.ObserveItemDuration(string(attempt.Outcome.Kind), time.Since(start))
		attempts = append(attempts, attempt)
	}
	return attempts
}

func (w *Worker) processItem(ctx context.Context, round int, session scrape.Session, item scrape.WorkItem) (attempt scrape.Attempt) {
	attempt = scrape.Attempt{Item: item, Round: round}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic",
				zap.Int("row", item.Row),
				zap.String("url", item.URL),
				zap.Any("panic", r),
			)
			attempt.Outcome = scrape.FetchFailed(fmt.Sprintf("worker crash: panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		attempt.Outcome = scrape.FetchFailed(fmt.Sprintf("canceled before attempt: %v", err))
		return attempt
	}

	page, err := session.Fetch(ctx, item.URL)
	if err != nil {
		w.logger.Warn("fetch failed",
			zap.Int("row", item.Row),
			zap.String("url", item.URL),
			zap.Int("round", round),
			zap.Error(err),
		)
		attempt.Outcome = scrape.FetchFailed(err.Error())
		return attempt
	}

	w.archive(ctx, item, page)

	rec, err := w.extractor.Extract(page)
	switch {
	case errors.Is(err, scrape.ErrNoData):
		w.logger.Info("no app data on page", zap.Int("row", item.Row), zap.String("url", item.URL))
		attempt.Outcome = scrape.NotFound()
	case err != nil:
		w.logger.Warn("extraction failed",
			zap.Int("row", item.Row),
			zap.String("url", item.URL),
			zap.Int("round", round),
			zap.Error(err),
		)
		attempt.Outcome = scrape.ParseFailed(err.Error())
	default:
		attempt.Outcome = scrape.Success(rec)
	}
	return attempt
}

// archive stores the raw rendered page when a snapshot store is configured.
// Archive failures are logged and never affect the item's outcome.
func (w *Worker) archive(ctx context.Context, item scrape.WorkItem, page string) {
	if w.snapshots == nil || w.hasher == nil {
		return
	}
	fp, err := w.hasher.Fingerprint([]byte(page))
	if err != nil {
		w.logger.Warn("snapshot fingerprint failed", zap.Int("row", item.Row), zap.Error(err))
		return
	}
	path := fmt.Sprintf("%s/%s/%d-%s.html", w.cfg.SnapshotPrefix, w.cfg.RunID, item.Row, fp)
	uri, err := w.snapshots.Put(ctx, path, w.cfg.ContentType, []byte(page))
	if err != nil {
		w.logger.Warn("snapshot write failed", zap.Int("row", item.Row), zap.Error(err))
		return
	}
	w.logger.Debug("snapshot archived", zap.Int("row", item.Row), zap.String("uri", uri))
}
