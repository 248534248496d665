package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsdesk/ft-harvester/internal/harvest"
	"github.com/newsdesk/ft-harvester/internal/store/memory"
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

type staticRuns struct {
	run harvest.CrawlRun
	ok  bool
}

func (s staticRuns) LastRun() (harvest.CrawlRun, bool) { return s.run, s.ok }

func newTestServer(t *testing.T, runs harvest.RunStatusProvider) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(&tickingClock{t: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)}, &seqIDs{})
	return NewServer(store, runs, 5*time.Second, zap.NewNop()), store
}

func seedArticles(t *testing.T, store *memory.Store, n int) {
	t.Helper()
	published := time.Date(2026, 8, 18, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		candidate := harvest.CandidateRecord{
			URL:   fmt.Sprintf("https://www.ft.com/content/%d", i),
			Title: fmt.Sprintf("Story %d", i),
			Body:  "Body text",
		}
		if i != 3 {
			ts := published.Add(time.Duration(i) * time.Hour)
			candidate.PublishedAt = &ts
		}
		_, err := store.Upsert(context.Background(), candidate)
		require.NoError(t, err)
	}
}

func doRequest(t *testing.T, server *Server, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	body := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestListArticlesPaginates(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, nil)
	seedArticles(t, store, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/articles?page=1&page_size=2", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var page harvest.ArticlePage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Equal(t, 2, page.PageSize)
	require.Len(t, page.Items, 2)
	require.Equal(t, "Story 5", page.Items[0].Title)
}

func TestListArticlesDateRangeExcludesUnknownPublished(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, nil)
	seedArticles(t, store, 5)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/articles?date_from=2026-08-18&date_to=2026-08-19", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var page harvest.ArticlePage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	// Story 3 has no published timestamp and is excluded from any range.
	require.Equal(t, 4, page.Total)
}

func TestListArticlesBadRequests(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, nil)
	seedArticles(t, store, 1)

	for _, path := range []string{
		"/api/v1/articles?page=0",
		"/api/v1/articles?page=abc",
		"/api/v1/articles?page_size=many",
		"/api/v1/articles?order_by=title",
		"/api/v1/articles?date_from=yesterday",
	} {
		rec, body := doRequest(t, server, path)
		require.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
		require.Contains(t, body, "error", "path %s", path)
	}
}

func TestGetArticleByID(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t, nil)
	seedArticles(t, store, 1)

	rec, _ := doRequest(t, server, "/api/v1/articles/id-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var article harvest.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &article))
	require.Equal(t, "Story 1", article.Title)

	rec, body := doRequest(t, server, "/api/v1/articles/no-such-id")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, body, "error")
}

func TestHealthzReportsLastRun(t *testing.T) {
	t.Parallel()

	run := harvest.CrawlRun{
		ID:         "run-1",
		Status:     harvest.RunSucceeded,
		Discovered: 12,
		Succeeded:  12,
	}
	server, _ := newTestServer(t, staticRuns{run: run, ok: true})

	rec, body := doRequest(t, server, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `"ok"`, string(body["status"]))
	require.Contains(t, body, "last_run")

	var got harvest.CrawlRun
	require.NoError(t, json.Unmarshal(body["last_run"], &got))
	require.Equal(t, "run-1", got.ID)
}

func TestMetricsEndpointServes(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, nil)
	rec, _ := doRequest(t, server, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
