// Package harvest defines core types shared across subsystems.
package harvest

import (
	"time"
)

// PageKind distinguishes listing pages from article pages.
type PageKind string

// Page kinds understood by the fetch pipeline.
const (
	KindListing PageKind = "listing"
	KindArticle PageKind = "article"
)

// Target identifies a page to fetch.
type Target struct {
	URL  string
	Kind PageKind
}

// Snapshot is the rendered result of fetching a single page.
// FinalURL absorbs redirects and is the canonical identity of the page.
type Snapshot struct {
	RequestedURL string
	FinalURL     string
	Kind         PageKind
	StatusCode   int
	HTML         string
	UsedHeadless bool
	FetchedAt    time.Time
	Duration     time.Duration
}

// CandidateRecord is a structured extraction awaiting the upsert decision.
// It is never stored as-is.
type CandidateRecord struct {
	URL         string
	Title       string
	Subtitle    *string
	Author      *string
	Body        string
	ImageURL    *string
	PublishedAt *time.Time
	WordCount   int
	ReadingTime string

	// Warnings records non-fatal extraction issues, e.g. a present but
	// unparseable published timestamp.
	Warnings []string
}

// Article is the durable entity persisted for each harvested page.
// The URL is the sole identity; two fetches of the same URL never
// produce two rows.
type Article struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Subtitle    *string    `json:"subtitle,omitempty"`
	Author      *string    `json:"author,omitempty"`
	Body        string     `json:"body"`
	ImageURL    *string    `json:"image_url,omitempty"`
	WordCount   int        `json:"word_count"`
	ReadingTime string     `json:"reading_time"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UpsertOutcome reports the persister's decision for one candidate.
type UpsertOutcome string

// Upsert outcomes.
const (
	OutcomeInserted  UpsertOutcome = "inserted"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// RunStatus is the terminal state of one crawl run.
type RunStatus string

// Run status values.
const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunAborted   RunStatus = "aborted"
	RunSkipped   RunStatus = "skipped"
)

// URLFailure records one URL that could not be processed in a run.
type URLFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// CrawlRun summarizes one complete execution of the crawl cycle.
// It exists for observability only; correctness never depends on it.
type CrawlRun struct {
	ID           string       `json:"id"`
	Started      time.Time    `json:"started_at"`
	Finished     time.Time    `json:"finished_at"`
	ListingPages int          `json:"listing_pages"`
	Discovered   int          `json:"urls_discovered"`
	Succeeded    int          `json:"urls_succeeded"`
	Failed       int          `json:"urls_failed"`
	Retries      int          `json:"retries"`
	Inserted     int          `json:"inserted"`
	Updated      int          `json:"updated"`
	Unchanged    int          `json:"unchanged"`
	Failures     []URLFailure `json:"failures,omitempty"`
	Status       RunStatus    `json:"status"`
	AbortReason  string       `json:"abort_reason,omitempty"`
}

// Elapsed returns the wall-clock duration of the run.
func (r CrawlRun) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// ArticleQuery captures the query API's filter and pagination parameters.
// PageSize is expected to be clamped into [1,100] by the caller.
type ArticleQuery struct {
	Page     int
	PageSize int
	Search   string
	Author   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// ArticlePage is one page of query results.
type ArticlePage struct {
	Items      []Article `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}
