package harvest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/newsdesk/ft-harvester/internal/metrics"
)

// RateLimiter is the run-scoped navigation budget shared by all workers
// of a run.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Config controls Orchestrator behavior.
type Config struct {
	ListingURL          string
	ListingPages        int
	InitialListingPages int
	Workers             int
	FailureStreakLimit  int
	RunTimeout          time.Duration
	ArchivePrefix       string
	RunTopic            string
}

// Orchestrator owns the crawl run lifecycle end-to-end: listing
// discovery, per-URL fetch/extract/persist, retry policy, and the run
// summary. Only one run may be active at a time; a trigger that arrives
// while a run is active is a no-op.
type Orchestrator struct {
	fetcher    Fetcher
	extractor  Extractor
	store      ArticleStore
	archive    Archive
	publisher  Publisher
	clock      Clock
	ids        IDGenerator
	newLimiter func() RateLimiter
	retry      RetryPolicy
	cfg        Config
	logger     *zap.Logger

	runMu      sync.Mutex
	initialRun atomic.Bool

	lastMu  sync.RWMutex
	lastRun *CrawlRun
}

// New constructs an Orchestrator. Archive and publisher may be nil.
func New(
	fetcher Fetcher,
	extractor Extractor,
	store ArticleStore,
	archive Archive,
	publisher Publisher,
	clock Clock,
	ids IDGenerator,
	newLimiter func() RateLimiter,
	retry RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ListingPages <= 0 {
		cfg.ListingPages = 1
	}
	if cfg.InitialListingPages <= 0 {
		cfg.InitialListingPages = cfg.ListingPages
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 15 * time.Minute
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "pages"
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy()
	}
	o := &Orchestrator{
		fetcher:    fetcher,
		extractor:  extractor,
		store:      store,
		archive:    archive,
		publisher:  publisher,
		clock:      clock,
		ids:        ids,
		newLimiter: newLimiter,
		retry:      retry,
		cfg:        cfg,
		logger:     logger,
	}
	o.initialRun.Store(true)
	return o
}

// LastRun returns the most recent completed run summary.
func (o *Orchestrator) LastRun() (CrawlRun, bool) {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	if o.lastRun == nil {
		return CrawlRun{}, false
	}
	return *o.lastRun, true
}

// RunOnce executes one complete crawl cycle and returns its summary.
// If a run is already active the trigger is skipped, never queued.
func (o *Orchestrator) RunOnce(ctx context.Context) CrawlRun {
	if !o.runMu.TryLock() {
		o.logger.Info("run already active, skipping trigger")
		now := o.clock.Now()
		return CrawlRun{Status: RunSkipped, Started: now, Finished: now}
	}
	defer o.runMu.Unlock()

	runID, err := o.ids.NewID()
	if err != nil {
		runID = "unknown"
	}
	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	state := &runState{
		id:          runID,
		started:     o.clock.Now(),
		streakLimit: o.cfg.FailureStreakLimit,
		cancel:      cancel,
	}
	o.logger.Info("crawl run starting", zap.String("run_id", runID))

	limiter := o.newLimiter()
	urls := o.discover(runCtx, limiter, state)
	o.processAll(runCtx, limiter, state, urls)

	summary := state.summarize(o.clock.Now())
	o.finishRun(ctx, summary)
	return summary
}

// discover enumerates listing pages and returns the discovered article
// URLs, deduplicated across pages in document order. A listing page
// failure aborts only that page's contribution.
func (o *Orchestrator) discover(ctx context.Context, limiter RateLimiter, state *runState) []string {
	pages := o.cfg.ListingPages
	if o.initialRun.CompareAndSwap(true, false) {
		pages = o.cfg.InitialListingPages
	}

	seen := make(map[string]struct{})
	var urls []string
	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil || state.aborted() {
			break
		}
		listingURL := listingPageURL(o.cfg.ListingURL, page)
		found, err := o.fetchListing(ctx, limiter, listingURL)
		state.addListingPage()
		if err != nil {
			o.logger.Warn("listing page failed",
				zap.String("url", listingURL),
				zap.Error(err),
			)
			metrics.ObservePage(string(KindListing), "failed")
			continue
		}
		metrics.ObservePage(string(KindListing), "succeeded")
		for _, u := range found {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	state.setDiscovered(len(urls))
	o.logger.Info("listing discovery finished",
		zap.Int("pages", state.snapshot().ListingPages),
		zap.Int("urls", len(urls)),
	)
	return urls
}

func (o *Orchestrator) fetchListing(ctx context.Context, limiter RateLimiter, url string) ([]string, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	snapshot, err := o.fetcher.Fetch(ctx, Target{URL: url, Kind: KindListing})
	if err != nil {
		return nil, err
	}
	return o.extractor.ExtractListing(snapshot)
}

func (o *Orchestrator) processAll(ctx context.Context, limiter RateLimiter, state *runState, urls []string) {
	work := make(chan string)
	var wg sync.WaitGroup
	for range o.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range work {
				if ctx.Err() != nil || state.aborted() {
					continue
				}
				o.processURL(ctx, limiter, state, url)
			}
		}()
	}
	for _, url := range urls {
		work <- url
	}
	close(work)
	wg.Wait()
}

// processURL runs the fetch → extract → persist pipeline for one URL.
// Transient fetch errors retry with backoff; extraction and persistence
// errors fail the URL immediately. A failure never aborts the run
// unless it is a store connectivity failure or it crosses the
// consecutive-failure threshold.
func (o *Orchestrator) processURL(ctx context.Context, limiter RateLimiter, state *runState, url string) {
	var snapshot Snapshot
	attempt := 0
	for {
		var err error
		snapshot, err = o.fetchArticle(ctx, limiter, url)
		if err == nil {
			break
		}
		attempt++
		if ctx.Err() == nil && o.retry.ShouldRetry(err, attempt) {
			state.addRetry()
			o.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			o.pause(ctx, o.retry.Backoff(attempt))
			continue
		}
		o.failURL(state, url, err)
		return
	}

	o.archiveSnapshot(ctx, snapshot)

	candidate, err := o.extractor.ExtractArticle(snapshot)
	if err != nil {
		o.failURL(state, url, err)
		return
	}
	for _, warning := range candidate.Warnings {
		o.logger.Warn("extraction warning",
			zap.String("url", candidate.URL),
			zap.String("warning", warning),
		)
	}

	outcome, err := o.store.Upsert(ctx, candidate)
	if err != nil {
		if IsFatalPersist(err) {
			o.logger.Error("article store unreachable, aborting run", zap.Error(err))
			state.abort("article store unreachable: " + err.Error())
		}
		o.failURL(state, url, err)
		return
	}
	metrics.ObserveUpsert(string(outcome))
	metrics.ObservePage(string(KindArticle), "succeeded")
	state.markSuccess(outcome)
	o.logger.Debug("article persisted",
		zap.String("url", candidate.URL),
		zap.String("outcome", string(outcome)),
	)
}

func (o *Orchestrator) fetchArticle(ctx context.Context, limiter RateLimiter, url string) (Snapshot, error) {
	if err := limiter.Wait(ctx); err != nil {
		return Snapshot{}, NewFetchError(FetchTimeout, url, 0, err)
	}
	return o.fetcher.Fetch(ctx, Target{URL: url, Kind: KindArticle})
}

func (o *Orchestrator) failURL(state *runState, url string, err error) {
	metrics.ObservePage(string(KindArticle), "failed")
	o.logger.Warn("url failed", zap.String("url", url), zap.Error(err))
	state.markFailure(url, err.Error())
}

// archiveSnapshot stores the raw rendered HTML for later reprocessing.
// Archive failures are logged, never fail the URL.
func (o *Orchestrator) archiveSnapshot(ctx context.Context, snapshot Snapshot) {
	if o.archive == nil {
		return
	}
	objectPath := o.snapshotObjectPath(snapshot.FinalURL, snapshot.FetchedAt)
	uri, err := o.archive.PutObject(ctx, objectPath, "text/html; charset=utf-8", []byte(snapshot.HTML))
	if err != nil {
		o.logger.Warn("snapshot archive failed",
			zap.String("url", snapshot.FinalURL),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("snapshot archived", zap.String("uri", uri))
}

func (o *Orchestrator) snapshotObjectPath(url string, fetchedAt time.Time) string {
	urlHash := fmt.Sprintf("%x", sha256.Sum256([]byte(url)))
	return path.Join(
		o.cfg.ArchivePrefix,
		fetchedAt.UTC().Format("2006-01-02"),
		fmt.Sprintf("%s.html", urlHash),
	)
}

func (o *Orchestrator) pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// finishRun records the summary, updates metrics, and publishes the
// run-completed event.
func (o *Orchestrator) finishRun(ctx context.Context, summary CrawlRun) {
	o.lastMu.Lock()
	o.lastRun = &summary
	o.lastMu.Unlock()

	metrics.ObserveRun(string(summary.Status), summary.Elapsed())
	o.logger.Info("crawl run finished",
		zap.String("run_id", summary.ID),
		zap.String("status", string(summary.Status)),
		zap.Int("discovered", summary.Discovered),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("retries", summary.Retries),
		zap.Duration("elapsed", summary.Elapsed()),
	)

	if o.publisher == nil || o.cfg.RunTopic == "" {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := o.publisher.Publish(publishCtx, o.cfg.RunTopic, summary); err != nil {
		o.logger.Warn("run event publish failed", zap.Error(err))
	}
}

// listingPageURL maps a page number onto the source site's listing
// pagination scheme. Page 1 is the bare listing URL.
func listingPageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	return fmt.Sprintf("%s?page=%d", base, page)
}

// runState accumulates counters for one run. All mutations go through
// the mutex; workers share one instance.
type runState struct {
	mu           sync.Mutex
	id           string
	started      time.Time
	listingPages int
	discovered   int
	succeeded    int
	failed       int
	retries      int
	inserted     int
	updated      int
	unchanged    int
	failures     []URLFailure
	streak       int
	streakLimit  int
	abortReason  string
	cancel       context.CancelFunc
}

func (s *runState) addListingPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listingPages++
}

func (s *runState) setDiscovered(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discovered = n
}

func (s *runState) addRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
}

func (s *runState) markSuccess(outcome UpsertOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded++
	s.streak = 0
	switch outcome {
	case OutcomeInserted:
		s.inserted++
	case OutcomeUpdated:
		s.updated++
	case OutcomeUnchanged:
		s.unchanged++
	}
}

func (s *runState) markFailure(url, reason string) {
	s.mu.Lock()
	s.failed++
	s.failures = append(s.failures, URLFailure{URL: url, Reason: reason})
	s.streak++
	crossed := s.streakLimit > 0 && s.streak >= s.streakLimit && s.abortReason == ""
	if crossed {
		s.abortReason = fmt.Sprintf("%d consecutive url failures", s.streak)
	}
	s.mu.Unlock()
	if crossed {
		s.cancel()
	}
}

func (s *runState) abort(reason string) {
	s.mu.Lock()
	if s.abortReason == "" {
		s.abortReason = reason
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *runState) aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortReason != ""
}

func (s *runState) snapshot() CrawlRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CrawlRun{
		ID:           s.id,
		Started:      s.started,
		ListingPages: s.listingPages,
		Discovered:   s.discovered,
		Succeeded:    s.succeeded,
		Failed:       s.failed,
		Retries:      s.retries,
		Inserted:     s.inserted,
		Updated:      s.updated,
		Unchanged:    s.unchanged,
		Failures:     append([]URLFailure(nil), s.failures...),
	}
}

func (s *runState) summarize(finished time.Time) CrawlRun {
	run := s.snapshot()
	run.Finished = finished
	s.mu.Lock()
	run.AbortReason = s.abortReason
	s.mu.Unlock()
	switch {
	case run.AbortReason != "":
		run.Status = RunAborted
	case run.Failed > 0:
		run.Status = RunPartial
	default:
		run.Status = RunSucceeded
	}
	return run
}
