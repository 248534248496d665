package harvest

import (
	"context"
	"time"
)

// Fetcher fetches a page and returns the rendered snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, target Target) (Snapshot, error)
}

// Extractor turns snapshots into structured output. Implementations must
// be pure functions of the snapshot: identical input, identical output,
// no external calls.
type Extractor interface {
	ExtractListing(snapshot Snapshot) ([]string, error)
	ExtractArticle(snapshot Snapshot) (CandidateRecord, error)
}

// ArticleStore owns all durable article state. The orchestrator is the
// only writer (through Upsert); the query API is a reader.
type ArticleStore interface {
	Upsert(ctx context.Context, candidate CandidateRecord) (UpsertOutcome, error)
	Query(ctx context.Context, query ArticleQuery) (ArticlePage, error)
	GetByID(ctx context.Context, id string) (Article, error)
	Ping(ctx context.Context) error
	Close()
}

// Archive writes raw page snapshots and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and article IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// RunStatusProvider exposes the most recent crawl run for the health
// endpoint.
type RunStatusProvider interface {
	LastRun() (CrawlRun, bool)
}
