package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

func strPtr(s string) *string { return &s }

func newTestStore() *Store {
	return New(&tickingClock{t: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)}, &seqIDs{})
}

func candidate(url, title, body string) harvest.CandidateRecord {
	return harvest.CandidateRecord{URL: url, Title: title, Body: body}
}

func TestUpsertIdempotence(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	ctx := context.Background()
	c := candidate("https://www.ft.com/content/a", "Title", "Body")

	outcome, err := store.Upsert(ctx, c)
	require.NoError(t, err)
	require.Equal(t, harvest.OutcomeInserted, outcome)

	outcome, err = store.Upsert(ctx, c)
	require.NoError(t, err)
	require.Equal(t, harvest.OutcomeUnchanged, outcome)

	require.Equal(t, 1, store.Len())
}

func TestUpsertUpdateAdvancesUpdatedAtOnly(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	ctx := context.Background()

	c := candidate("https://www.ft.com/content/a", "Title", "Body v1")
	_, err := store.Upsert(ctx, c)
	require.NoError(t, err)

	before, err := store.GetByID(ctx, "id-1")
	require.NoError(t, err)

	c.Body = "Body v2"
	outcome, err := store.Upsert(ctx, c)
	require.NoError(t, err)
	require.Equal(t, harvest.OutcomeUpdated, outcome)

	after, err := store.GetByID(ctx, "id-1")
	require.NoError(t, err)
	require.Equal(t, before.ScrapedAt, after.ScrapedAt)
	require.True(t, after.UpdatedAt.After(before.UpdatedAt))
	require.Equal(t, "Body v2", after.Body)
}

func TestQueryFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	ctx := context.Background()

	published := time.Date(2026, 8, 18, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		c := candidate(fmt.Sprintf("https://www.ft.com/content/%d", i), fmt.Sprintf("Story %d", i), "Body text")
		if i%2 == 0 {
			c.Author = strPtr("Jane Reporter")
		}
		if i != 3 {
			ts := published.Add(time.Duration(i) * time.Hour)
			c.PublishedAt = &ts
		}
		_, err := store.Upsert(ctx, c)
		require.NoError(t, err)
	}

	// Pagination: 5 items, pages of 2.
	page, err := store.Query(ctx, harvest.ArticleQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)

	// Most recently scraped first.
	require.Equal(t, "Story 5", page.Items[0].Title)
	require.Equal(t, "Story 4", page.Items[1].Title)

	last, err := store.Query(ctx, harvest.ArticleQuery{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)

	// Beyond the last page is empty, not an error.
	empty, err := store.Query(ctx, harvest.ArticleQuery{Page: 9, PageSize: 2})
	require.NoError(t, err)
	require.Empty(t, empty.Items)

	// Author filter is a case-insensitive substring.
	byAuthor, err := store.Query(ctx, harvest.ArticleQuery{Page: 1, PageSize: 10, Author: "jane"})
	require.NoError(t, err)
	require.Equal(t, 2, byAuthor.Total)

	// Search matches title or body.
	bySearch, err := store.Query(ctx, harvest.ArticleQuery{Page: 1, PageSize: 10, Search: "story 3"})
	require.NoError(t, err)
	require.Equal(t, 1, bySearch.Total)

	// A date range excludes rows without a published timestamp (story 3).
	from := published
	to := published.Add(10 * time.Hour)
	byDate, err := store.Query(ctx, harvest.ArticleQuery{Page: 1, PageSize: 10, DateFrom: &from, DateTo: &to})
	require.NoError(t, err)
	require.Equal(t, 4, byDate.Total)
}

func TestGetByIDNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore()
	_, err := store.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, harvest.ErrArticleNotFound)
}
