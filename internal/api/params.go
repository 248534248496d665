package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Query parameters the article listing accepts. Anything else is a
// client error rather than being silently ignored.
var allowedListParams = map[string]struct{}{
	"page":      {},
	"page_size": {},
	"search":    {},
	"author":    {},
	"date_from": {},
	"date_to":   {},
}

// parseListQuery validates the raw query string into an ArticleQuery.
func parseListQuery(values url.Values) (harvest.ArticleQuery, error) {
	for key := range values {
		if _, ok := allowedListParams[key]; !ok {
			return harvest.ArticleQuery{}, fmt.Errorf("unknown query parameter %q", key)
		}
	}

	query := harvest.ArticleQuery{Page: 1, PageSize: defaultPageSize}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return harvest.ArticleQuery{}, fmt.Errorf("page must be a positive integer")
		}
		query.Page = page
	}

	if raw := values.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return harvest.ArticleQuery{}, fmt.Errorf("page_size must be an integer")
		}
		// Out-of-range sizes clamp rather than error.
		if size < 1 {
			size = 1
		}
		if size > maxPageSize {
			size = maxPageSize
		}
		query.PageSize = size
	}

	query.Search = strings.TrimSpace(values.Get("search"))
	query.Author = strings.TrimSpace(values.Get("author"))

	if raw := values.Get("date_from"); raw != "" {
		ts, _, err := parseDateParam(raw)
		if err != nil {
			return harvest.ArticleQuery{}, fmt.Errorf("date_from: %w", err)
		}
		query.DateFrom = &ts
	}
	if raw := values.Get("date_to"); raw != "" {
		ts, dateOnly, err := parseDateParam(raw)
		if err != nil {
			return harvest.ArticleQuery{}, fmt.Errorf("date_to: %w", err)
		}
		if dateOnly {
			// A bare date upper bound means the whole day.
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		query.DateTo = &ts
	}
	if query.DateFrom != nil && query.DateTo != nil && query.DateFrom.After(*query.DateTo) {
		return harvest.ArticleQuery{}, fmt.Errorf("date_from must not be after date_to")
	}

	return query, nil
}

// parseDateParam accepts RFC 3339 timestamps or bare dates.
func parseDateParam(raw string) (ts time.Time, dateOnly bool, err error) {
	if ts, err = time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), false, nil
	}
	if ts, err = time.Parse("2006-01-02", raw); err == nil {
		return ts.UTC(), true, nil
	}
	return time.Time{}, false, fmt.Errorf("must be RFC 3339 or YYYY-MM-DD")
}
