// Package probe implements the fast-path fetcher using gocolly. It is
// cheaper than a headless render and handles the article templates that
// ship their content server-side.
package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/newsdesk/ft-harvester/internal/fetcher"
	"github.com/newsdesk/ft-harvester/internal/harvest"
	"github.com/newsdesk/ft-harvester/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements harvest.Fetcher with a Colly collector. Each Fetch
// clones the base collector so hooks never leak between requests.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context, target harvest.Target) (harvest.Snapshot, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		snapshot harvest.Snapshot
		status   int
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		snapshot = harvest.Snapshot{
			RequestedURL: target.URL,
			FinalURL:     r.Request.URL.String(),
			Kind:         target.Kind,
			StatusCode:   r.StatusCode,
			HTML:         string(r.Body),
			UsedHeadless: false,
			FetchedAt:    time.Now().UTC(),
			Duration:     time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := f.visit(ctx, collector, target.URL); err != nil {
		fetchErr = err
	}
	metrics.ObserveFetchDuration(string(target.Kind), time.Since(start))

	if fetchErr != nil {
		return harvest.Snapshot{}, classify(fetchErr, target.URL, status)
	}
	if status >= 400 {
		kind := harvest.FetchNonSuccessStatus
		if status == 403 || status == 429 {
			kind = harvest.FetchBlockedOrChallenge
		}
		return harvest.Snapshot{}, harvest.NewFetchError(kind, target.URL, status, nil)
	}
	if fetcher.DetectChallenge(snapshot.HTML) {
		return harvest.Snapshot{}, harvest.NewFetchError(harvest.FetchBlockedOrChallenge, target.URL, status, nil)
	}
	return snapshot, nil
}

// visit runs the collector in a goroutine so caller cancellation is
// honored; colly itself has no context support.
func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func classify(err error, url string, status int) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.As(err, &netErr) && netErr.Timeout():
		return harvest.NewFetchError(harvest.FetchTimeout, url, status, err)
	case status == 403, status == 429:
		return harvest.NewFetchError(harvest.FetchBlockedOrChallenge, url, status, err)
	case status >= 400:
		return harvest.NewFetchError(harvest.FetchNonSuccessStatus, url, status, err)
	default:
		return harvest.NewFetchError(harvest.FetchNetworkFailure, url, status, err)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
