package cmd

import (
	"context"
	"fmt"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	archivegcs "github.com/newsdesk/ft-harvester/internal/archive/gcs"
	archivelocal "github.com/newsdesk/ft-harvester/internal/archive/local"
	"github.com/newsdesk/ft-harvester/internal/clock/system"
	"github.com/newsdesk/ft-harvester/internal/config"
	"github.com/newsdesk/ft-harvester/internal/extract"
	"github.com/newsdesk/ft-harvester/internal/fetcher"
	"github.com/newsdesk/ft-harvester/internal/fetcher/detector"
	"github.com/newsdesk/ft-harvester/internal/fetcher/headless"
	"github.com/newsdesk/ft-harvester/internal/fetcher/probe"
	"github.com/newsdesk/ft-harvester/internal/harvest"
	uuidgen "github.com/newsdesk/ft-harvester/internal/id/uuid"
	"github.com/newsdesk/ft-harvester/internal/logging"
	"github.com/newsdesk/ft-harvester/internal/metrics"
	pubsubpub "github.com/newsdesk/ft-harvester/internal/publisher/pubsub"
	"github.com/newsdesk/ft-harvester/internal/ratelimit"
	"github.com/newsdesk/ft-harvester/internal/store/postgres"
)

// app holds the wired service graph for one process.
type app struct {
	cfg          config.Config
	logger       *zap.Logger
	store        *postgres.Store
	orchestrator *harvest.Orchestrator
	closers      []func()
}

// Close releases resources in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp loads configuration and wires the store, and optionally the
// whole crawl pipeline. API-only processes skip the crawler.
func buildApp(ctx context.Context, withCrawler bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	clock := system.Clock{}
	ids := uuidgen.NewUUIDGenerator()

	store, err := postgres.NewStore(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifetime) * time.Second,
	}, clock, ids)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if err := store.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if !withCrawler {
		return a, nil
	}

	archive, err := a.buildArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	pageFetcher := a.buildFetcher(logger)

	newLimiter := func() harvest.RateLimiter {
		return ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
			Burst:             cfg.Crawler.Burst,
		})
	}
	retry := harvest.NewRetryPolicy(
		cfg.Crawler.MaxAttempts,
		time.Duration(cfg.Crawler.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.Crawler.BackoffMaxMs)*time.Millisecond,
	)

	a.orchestrator = harvest.New(
		pageFetcher,
		extract.New(),
		store,
		archive,
		publisher,
		clock,
		ids,
		newLimiter,
		retry,
		harvest.Config{
			ListingURL:          cfg.Crawler.ListingURL,
			ListingPages:        cfg.Crawler.ListingPages,
			InitialListingPages: cfg.Crawler.InitialListingPages,
			Workers:             cfg.Crawler.Workers,
			FailureStreakLimit:  cfg.Crawler.FailureStreakLimit,
			RunTimeout:          cfg.RunTimeout(),
			ArchivePrefix:       cfg.Archive.Prefix,
			RunTopic:            cfg.Publisher.TopicName,
		},
		logger,
	)
	return a, nil
}

func (a *app) buildFetcher(logger *zap.Logger) harvest.Fetcher {
	headlessFetcher := headless.New(headless.Config{
		UserAgent:   a.cfg.Headless.UserAgent,
		NavTimeout:  time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
		SettleDelay: time.Duration(a.cfg.Headless.SettleDelayMs) * time.Millisecond,
		MaxParallel: a.cfg.Headless.MaxParallel,
		Headful:     a.cfg.Headless.Headful,
	}, logger.Named("headless"))
	a.closers = append(a.closers, headlessFetcher.Close)

	var probeFetcher harvest.Fetcher
	if a.cfg.Probe.Enabled {
		probeFetcher = probe.New(probe.Config{
			UserAgent:     a.cfg.Probe.UserAgent,
			RespectRobots: a.cfg.Probe.RespectRobots,
			Timeout:       time.Duration(a.cfg.Probe.TimeoutSeconds) * time.Second,
		})
	}
	return fetcher.NewPromoting(
		probeFetcher,
		headlessFetcher,
		detector.NewHeuristic(a.cfg.Probe.PromotionThresh),
		logger.Named("fetcher"),
	)
}

func (a *app) buildArchive(ctx context.Context) (harvest.Archive, error) {
	switch a.cfg.Archive.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return archivelocal.New(archivelocal.Config{BaseDir: a.cfg.Archive.BaseDir})
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return archivegcs.New(client, archivegcs.Config{Bucket: a.cfg.Archive.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown archive backend %q", a.cfg.Archive.Backend)
	}
}

func (a *app) buildPublisher(ctx context.Context) (harvest.Publisher, error) {
	if !a.cfg.Publisher.Enabled {
		return nil, nil
	}
	client, err := gcpubsub.NewClient(ctx, a.cfg.Publisher.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return pubsubpub.New(client), nil
}
