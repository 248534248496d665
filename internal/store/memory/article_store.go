// Package memory provides an in-memory article store for tests and
// database-less development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

// Store implements harvest.ArticleStore with a mutex-guarded map keyed
// by canonical URL. It honors the same upsert contract as the Postgres
// store, including safety under concurrent invocation for one URL.
type Store struct {
	mu    sync.Mutex
	clock harvest.Clock
	ids   harvest.IDGenerator
	byURL map[string]harvest.Article
}

// New creates an empty Store.
func New(clock harvest.Clock, ids harvest.IDGenerator) *Store {
	return &Store{
		clock: clock,
		ids:   ids,
		byURL: make(map[string]harvest.Article),
	}
}

// Upsert applies the insert/update/unchanged decision for a candidate.
func (s *Store) Upsert(_ context.Context, candidate harvest.CandidateRecord) (harvest.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	existing, ok := s.byURL[candidate.URL]
	if !ok {
		id, err := s.ids.NewID()
		if err != nil {
			return "", &harvest.PersistError{Kind: harvest.PersistConnectivityFailure, Err: err}
		}
		s.byURL[candidate.URL] = harvest.Article{
			ID:          id,
			URL:         candidate.URL,
			Title:       candidate.Title,
			Subtitle:    candidate.Subtitle,
			Author:      candidate.Author,
			Body:        candidate.Body,
			ImageURL:    candidate.ImageURL,
			WordCount:   candidate.WordCount,
			ReadingTime: candidate.ReadingTime,
			PublishedAt: candidate.PublishedAt,
			ScrapedAt:   now,
			UpdatedAt:   now,
		}
		return harvest.OutcomeInserted, nil
	}

	if unchanged(existing, candidate) {
		return harvest.OutcomeUnchanged, nil
	}

	existing.Title = candidate.Title
	existing.Subtitle = candidate.Subtitle
	existing.Author = candidate.Author
	existing.Body = candidate.Body
	existing.ImageURL = candidate.ImageURL
	existing.WordCount = candidate.WordCount
	existing.ReadingTime = candidate.ReadingTime
	existing.PublishedAt = candidate.PublishedAt
	existing.UpdatedAt = now
	s.byURL[candidate.URL] = existing
	return harvest.OutcomeUpdated, nil
}

// Query filters, sorts by scraped timestamp descending, and paginates.
func (s *Store) Query(_ context.Context, query harvest.ArticleQuery) (harvest.ArticlePage, error) {
	s.mu.Lock()
	matched := make([]harvest.Article, 0, len(s.byURL))
	for _, article := range s.byURL {
		if matches(article, query) {
			matched = append(matched, article)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScrapedAt.Equal(matched[j].ScrapedAt) {
			return matched[i].ScrapedAt.After(matched[j].ScrapedAt)
		}
		return matched[i].URL < matched[j].URL
	})

	total := len(matched)
	start := (query.Page - 1) * query.PageSize
	if start > total {
		start = total
	}
	end := start + query.PageSize
	if end > total {
		end = total
	}

	return harvest.ArticlePage{
		Items:      matched[start:end],
		Total:      total,
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalPages: (total + query.PageSize - 1) / query.PageSize,
	}, nil
}

// GetByID returns one article or harvest.ErrArticleNotFound.
func (s *Store) GetByID(_ context.Context, id string) (harvest.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, article := range s.byURL {
		if article.ID == id {
			return article, nil
		}
	}
	return harvest.Article{}, harvest.ErrArticleNotFound
}

// Ping always succeeds; the map is always reachable.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// Len reports the number of stored articles (useful in tests).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byURL)
}

func matches(article harvest.Article, query harvest.ArticleQuery) bool {
	if query.Search != "" {
		needle := strings.ToLower(query.Search)
		if !strings.Contains(strings.ToLower(article.Title), needle) &&
			!strings.Contains(strings.ToLower(article.Body), needle) {
			return false
		}
	}
	if query.Author != "" {
		if article.Author == nil ||
			!strings.Contains(strings.ToLower(*article.Author), strings.ToLower(query.Author)) {
			return false
		}
	}
	if query.DateFrom != nil || query.DateTo != nil {
		if article.PublishedAt == nil {
			return false
		}
		if query.DateFrom != nil && article.PublishedAt.Before(*query.DateFrom) {
			return false
		}
		if query.DateTo != nil && article.PublishedAt.After(*query.DateTo) {
			return false
		}
	}
	return true
}

func unchanged(existing harvest.Article, candidate harvest.CandidateRecord) bool {
	return existing.Title == candidate.Title &&
		existing.Body == candidate.Body &&
		equalStringPtr(existing.Subtitle, candidate.Subtitle) &&
		equalStringPtr(existing.Author, candidate.Author) &&
		equalStringPtr(existing.ImageURL, candidate.ImageURL) &&
		equalTimePtr(existing.PublishedAt, candidate.PublishedAt)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
