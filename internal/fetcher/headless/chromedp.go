// Package headless provides browser sessions backed by chromedp.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// defaultWaitExpression polls until the downloads estimate has been hydrated
// by the page's scripts; the profile pages render their shells before any
// data arrives.
const defaultWaitExpression = `(() => {
	const label = Array.from(document.querySelectorAll('span'))
		.find((el) => el.textContent.includes('Estimated Downloads'));
	if (!label) { return false; }
	let anchor = label;
	for (let i = 0; i < 2 && anchor.parentElement; i++) { anchor = anchor.parentElement; }
	const sibling = anchor.nextElementSibling;
	return !!sibling && sibling.textContent.trim() !== '';
})()`

// Config controls the behavior of the headless session factory.
type Config struct {
	// Visible disables headless mode; outcomes are unaffected, it only
	// aids debugging.
	Visible           bool
	UserAgent         string
	NavigationTimeout time.Duration
	// WaitExpression is a JS predicate polled after navigation until it
	// returns true. Empty selects defaultWaitExpression.
	WaitExpression string
	// BlockResources suppresses image/stylesheet/font loads for speed.
	BlockResources bool
}

// Factory implements scrape.SessionFactory. It owns one exec allocator;
// every session it creates is an independent browser process.
type Factory struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewFactory creates a session factory backed by chromedp.
func NewFactory(cfg Config, logger *zap.Logger) *Factory {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.WaitExpression == "" {
		cfg.WaitExpression = defaultWaitExpression
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !cfg.Visible),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if cfg.BlockResources {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Factory{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}
}

// Close cancels the allocator context, tearing down any remaining browsers.
func (f *Factory) Close() {
	f.allocCancel()
}

// NewSession launches a fresh browser and verifies it started. A failure
// here is the worker-crash path: the caller reports every item in its shard
// as fetch-failed.
func (f *Factory) NewSession(ctx context.Context) (scrape.Session, error) {
	browserCtx, browserCancel := chromedp.NewContext(f.allocator)

	warmupCtx, warmupCancel := context.WithTimeout(browserCtx, f.cfg.NavigationTimeout)
	stop := context.AfterFunc(ctx, warmupCancel)
	err := chromedp.Run(warmupCtx)
	stop()
	warmupCancel()
	if err != nil {
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &session{
		cfg:    f.cfg,
		ctx:    browserCtx,
		cancel: browserCancel,
		logger: f.logger,
	}, nil
}

type session struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// Fetch navigates to url, waits for the page data to hydrate, and returns
// the rendered DOM. The navigation is bounded by the configured timeout and
// by the caller's context.
func (s *session) Fetch(ctx context.Context, url string) (string, error) {
	taskCtx, taskCancel := context.WithTimeout(s.ctx, s.cfg.NavigationTimeout)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	start := time.Now()
	var page string
	actions := []chromedp.Action{
		s.setupAction(),
		chromedp.Navigate(url),
		chromedp.Poll(s.cfg.WaitExpression, nil, chromedp.WithPollingInterval(250*time.Millisecond)),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("fetch canceled: %w", ctxErr)
		}
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	s.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Duration("took", time.Since(start)),
		zap.Int("bytes", len(page)),
	)
	return page, nil
}

// Close tears down the browser process.
func (s *session) Close() {
	s.cancel()
}

func (s *session) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if s.cfg.BlockResources {
			blocked := []string{"*.css", "*.woff", "*.woff2", "*.ttf", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg"}
			if err := network.SetBlockedURLs(blocked).Do(ctx); err != nil {
				return fmt.Errorf("set blocked urls: %w", err)
			}
		}
		return nil
	})
}
