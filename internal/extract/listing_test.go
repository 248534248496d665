package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

func listingSnapshot(html string) harvest.Snapshot {
	return harvest.Snapshot{
		RequestedURL: "https://www.ft.com/world",
		FinalURL:     "https://www.ft.com/world",
		Kind:         harvest.KindListing,
		StatusCode:   200,
		HTML:         html,
	}
}

func TestExtractListingDeduplicatesInDocumentOrder(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a data-trackable="heading-link" href="/content/aaa">First</a>
		<div class="o-teaser__heading"><a href="/content/bbb">Second</a></div>
		<a data-trackable="heading-link" href="/content/aaa">First again</a>
		<a class="js-teaser-heading-link" href="https://www.ft.com/content/ccc">Third</a>
	</body></html>`

	urls, err := New().ExtractListing(listingSnapshot(html))
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://www.ft.com/content/aaa",
		"https://www.ft.com/content/bbb",
		"https://www.ft.com/content/ccc",
	}, urls)
}

func TestExtractListingFiltersNonArticleLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<a data-trackable="heading-link" href="/video/12345/content/x">Video</a>
		<a data-trackable="heading-link" href="/content/podcast/abc/podcast/">Podcast</a>
		<a data-trackable="heading-link" href="mailto:tips@example.com">Mail</a>
		<a data-trackable="heading-link" href="/world/asia-pacific/story">Section story</a>
		<a data-trackable="heading-link" href="/content/real-article">Real</a>
	</body></html>`

	urls, err := New().ExtractListing(listingSnapshot(html))
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://www.ft.com/world/asia-pacific/story",
		"https://www.ft.com/content/real-article",
	}, urls)
}

func TestExtractListingRejectsUnrecognizedShape(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="totally-new-layout">nothing here</div></body></html>`

	_, err := New().ExtractListing(listingSnapshot(html))
	var extractErr *harvest.ExtractionError
	require.True(t, errors.As(err, &extractErr))
	require.Equal(t, harvest.ExtractMissingRequiredField, extractErr.Kind)
}

func TestIsArticleURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		href string
		want bool
	}{
		{"/content/abc-def", true},
		{"/world/uk/something", true},
		{"/opinion/some-column", false},
		{"/lex/hot-take", false},
		{"/markets/briefing", false},
		{"/live-news/rolling", false},
		{"/content/abc?shareToken=x", false},
		{"/content/abc#comments", false},
		{"javascript:void(0)", false},
		{"", false},
		{"/about/us", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, isArticleURL(tc.href), "href %q", tc.href)
	}
}
