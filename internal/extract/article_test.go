package extract

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

func articleSnapshot(html string) harvest.Snapshot {
	return harvest.Snapshot{
		RequestedURL: "https://www.ft.com/content/abc",
		FinalURL:     "https://www.ft.com/content/abc",
		Kind:         harvest.KindArticle,
		StatusCode:   200,
		HTML:         html,
	}
}

const fullArticleHTML = `<html>
<head><title>Climate summit opens | Financial Times</title></head>
<body>
	<h1 class="n-content-header--headline">  Climate summit   opens  </h1>
	<div class="n-content-header--standfirst">Leaders gather for talks</div>
	<div class="n-content-header--byline"><a>Jane Reporter</a></div>
	<time datetime="2026-08-20T09:30:00Z">20 August 2026</time>
	<div class="n-image"><img src="/images/lead.jpg"></div>
	<div class="n-content-body">
		<script>analytics();</script>
		<aside>Related reading you should skip</aside>
		<p>Short.</p>
		<p>The opening session drew delegates from more than one hundred countries.</p>
		<p>Negotiators said the first day focused on finance commitments.</p>
	</div>
</body></html>`

func TestExtractArticlePopulatesRecord(t *testing.T) {
	t.Parallel()

	record, err := New().ExtractArticle(articleSnapshot(fullArticleHTML))
	require.NoError(t, err)

	require.Equal(t, "https://www.ft.com/content/abc", record.URL)
	require.Equal(t, "Climate summit opens", record.Title)
	require.NotNil(t, record.Subtitle)
	require.Equal(t, "Leaders gather for talks", *record.Subtitle)
	require.NotNil(t, record.Author)
	require.Equal(t, "Jane Reporter", *record.Author)
	require.NotNil(t, record.ImageURL)
	require.Equal(t, "https://www.ft.com/images/lead.jpg", *record.ImageURL)

	require.NotNil(t, record.PublishedAt)
	require.Equal(t, time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC), *record.PublishedAt)
	require.Empty(t, record.Warnings)

	// The short paragraph and the aside are dropped, scripts stripped.
	require.Equal(t,
		"The opening session drew delegates from more than one hundred countries.\n\n"+
			"Negotiators said the first day focused on finance commitments.",
		record.Body)
	require.Equal(t, len(strings.Fields(record.Body)), record.WordCount)
	require.Equal(t, "1 min read", record.ReadingTime)
}

func TestExtractArticleTitleFallsBackToPageTitle(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Fallback headline | Financial Times</title></head><body>
		<div class="n-content-body"><p>A body paragraph long enough to keep around.</p></div>
	</body></html>`

	record, err := New().ExtractArticle(articleSnapshot(html))
	require.NoError(t, err)
	require.Equal(t, "Fallback headline", record.Title)
}

func TestExtractArticleMissingTitle(t *testing.T) {
	t.Parallel()

	html := `<html><head><title></title></head><body>
		<div class="n-content-body"><p>A body paragraph long enough to keep around.</p></div>
	</body></html>`

	_, err := New().ExtractArticle(articleSnapshot(html))
	var extractErr *harvest.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	require.Equal(t, harvest.ExtractMissingRequiredField, extractErr.Kind)
	require.Equal(t, "title", extractErr.Field)
}

func TestExtractArticleEmptyBody(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1 class="n-content-header--headline">Headline only</h1>
		<div class="n-content-body"><p>tiny</p></div>
	</body></html>`

	_, err := New().ExtractArticle(articleSnapshot(html))
	var extractErr *harvest.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	require.Equal(t, harvest.ExtractEmptyBody, extractErr.Kind)
}

func TestExtractArticleUnparseableTimestampWarns(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1 class="n-content-header--headline">Headline</h1>
		<div class="article-timestamp">sometime around teatime</div>
		<div class="n-content-body"><p>A body paragraph long enough to keep around.</p></div>
	</body></html>`

	record, err := New().ExtractArticle(articleSnapshot(html))
	require.NoError(t, err)
	require.Nil(t, record.PublishedAt)
	require.Len(t, record.Warnings, 1)
	require.Contains(t, record.Warnings[0], "unparseable published timestamp")
}

func TestExtractArticleReadingTimeFloor(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<h1 class="n-content-header--headline">Headline</h1>
		<div class="n-content-body"><p>Barely twenty characters of text here.</p></div>
	</body></html>`

	record, err := New().ExtractArticle(articleSnapshot(html))
	require.NoError(t, err)
	require.Equal(t, "1 min read", record.ReadingTime)
}
