// Package headless renders pages in a managed Chrome instance. The
// source site builds its listing pages client-side and gates some
// article templates behind JavaScript, so headless rendering is the
// authoritative fetch path.
package headless

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/newsdesk/ft-harvester/internal/fetcher"
	"github.com/newsdesk/ft-harvester/internal/harvest"
	"github.com/newsdesk/ft-harvester/internal/metrics"
)

// Config controls the Chrome allocator and per-fetch behavior.
type Config struct {
	// UserAgent presented by the browser.
	UserAgent string
	// NavTimeout bounds a single navigation plus render settle.
	NavTimeout time.Duration
	// SettleDelay is the post-ready pause that lets late scripts
	// finish populating the page.
	SettleDelay time.Duration
	// MaxParallel caps concurrent tabs.
	MaxParallel int
	// Headful disables headless mode for local debugging.
	Headful bool
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 45 * time.Second
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 2
	}
	return c
}

// Fetcher implements harvest.Fetcher on top of a shared Chrome
// allocator. Each Fetch opens a fresh tab so page state never leaks
// between targets.
type Fetcher struct {
	cfg       Config
	logger    *zap.Logger
	allocCtx  context.Context
	cancel    context.CancelFunc
	tabs      chan struct{}
	closeOnce sync.Once
}

// New starts the Chrome allocator. Call Close when done.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !cfg.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:      cfg,
		logger:   logger,
		allocCtx: allocCtx,
		cancel:   cancel,
		tabs:     make(chan struct{}, cfg.MaxParallel),
	}
}

// Close tears down the allocator and every remaining tab.
func (f *Fetcher) Close() {
	f.closeOnce.Do(f.cancel)
}

// responseMeta captures the main document response as Chrome reports it.
type responseMeta struct {
	mu       sync.Mutex
	status   int
	finalURL string
}

func (m *responseMeta) record(status int, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.finalURL = url
}

func (m *responseMeta) get() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.finalURL
}

// Fetch renders the target in a new tab and returns the settled DOM.
func (f *Fetcher) Fetch(ctx context.Context, target harvest.Target) (harvest.Snapshot, error) {
	select {
	case f.tabs <- struct{}{}:
		defer func() { <-f.tabs }()
	case <-ctx.Done():
		return harvest.Snapshot{}, harvest.NewFetchError(harvest.FetchTimeout, target.URL, 0, ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, f.cfg.NavTimeout)
	defer cancelRun()

	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	meta := &responseMeta{}
	chromedp.ListenTarget(runCtx, func(ev any) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			meta.record(int(resp.Response.Status), resp.Response.URL)
		}
	})

	started := time.Now()
	var html, location string
	err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(target.URL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)
	elapsed := time.Since(started)
	metrics.ObserveFetchDuration(string(target.Kind), elapsed)

	if err != nil {
		return harvest.Snapshot{}, f.classify(ctx, err, target)
	}

	status, finalURL := meta.get()
	if finalURL == "" {
		finalURL = location
	}
	if finalURL == "" {
		finalURL = target.URL
	}

	if status >= 400 {
		kind := harvest.FetchNonSuccessStatus
		if status == 403 || status == 429 {
			kind = harvest.FetchBlockedOrChallenge
		}
		return harvest.Snapshot{}, harvest.NewFetchError(kind, target.URL, status, nil)
	}
	if fetcher.DetectChallenge(html) {
		return harvest.Snapshot{}, harvest.NewFetchError(harvest.FetchBlockedOrChallenge, target.URL, status, nil)
	}

	f.logger.Debug("rendered page",
		zap.String("url", target.URL),
		zap.String("final_url", finalURL),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)

	return harvest.Snapshot{
		RequestedURL: target.URL,
		FinalURL:     finalURL,
		Kind:         target.Kind,
		StatusCode:   status,
		HTML:         html,
		UsedHeadless: true,
		FetchedAt:    time.Now().UTC(),
		Duration:     elapsed,
	}, nil
}

func (f *Fetcher) classify(ctx context.Context, err error, target harvest.Target) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return harvest.NewFetchError(harvest.FetchTimeout, target.URL, 0, err)
	}
	// Chrome surfaces connection problems as net::ERR_* strings.
	return harvest.NewFetchError(harvest.FetchNetworkFailure, target.URL, 0, err)
}
