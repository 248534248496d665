package api

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseListQueryDefaults(t *testing.T) {
	t.Parallel()

	query, err := parseListQuery(url.Values{})
	require.NoError(t, err)
	require.Equal(t, 1, query.Page)
	require.Equal(t, defaultPageSize, query.PageSize)
	require.Empty(t, query.Search)
	require.Nil(t, query.DateFrom)
	require.Nil(t, query.DateTo)
}

func TestParseListQueryRejectsUnknownParams(t *testing.T) {
	t.Parallel()

	_, err := parseListQuery(url.Values{"sort": {"title"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown query parameter")
}

func TestParseListQueryPageValidation(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"0", "-1", "abc", "1.5"} {
		_, err := parseListQuery(url.Values{"page": {raw}})
		require.Error(t, err, "page=%s", raw)
	}

	query, err := parseListQuery(url.Values{"page": {"7"}})
	require.NoError(t, err)
	require.Equal(t, 7, query.Page)
}

func TestParseListQueryPageSizeClamps(t *testing.T) {
	t.Parallel()

	query, err := parseListQuery(url.Values{"page_size": {"500"}})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, query.PageSize)

	query, err = parseListQuery(url.Values{"page_size": {"0"}})
	require.NoError(t, err)
	require.Equal(t, 1, query.PageSize)

	_, err = parseListQuery(url.Values{"page_size": {"lots"}})
	require.Error(t, err)
}

func TestParseListQueryDates(t *testing.T) {
	t.Parallel()

	query, err := parseListQuery(url.Values{
		"date_from": {"2026-08-01T06:30:00Z"},
		"date_to":   {"2026-08-20"},
	})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 8, 1, 6, 30, 0, 0, time.UTC), *query.DateFrom)

	// A bare date upper bound covers the whole day.
	require.Equal(t, time.Date(2026, 8, 20, 23, 59, 59, 999999999, time.UTC), *query.DateTo)

	_, err = parseListQuery(url.Values{"date_from": {"20/08/2026"}})
	require.Error(t, err)

	_, err = parseListQuery(url.Values{
		"date_from": {"2026-08-21"},
		"date_to":   {"2026-08-20"},
	})
	require.Error(t, err)
}
