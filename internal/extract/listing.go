package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

// listingAnchors is a selector group so matches come back in document
// order regardless of which variant a teaser uses.
const listingAnchors = `a[data-trackable="heading-link"], .o-teaser__heading a, .js-teaser-heading-link, a[href*="/content/"]`

// URL path fragments that are never harvestable articles.
var excludedURLPatterns = []string{
	"/video/",
	"/podcast/",
	"/live-news/",
	"/markets/",
	"/opinion/",
	"/lex/",
	"mailto:",
	"javascript:",
	"#",
	"?",
}

// ExtractListing returns the article URLs found in a listing snapshot,
// deduplicated within the page, in document order. A listing page whose
// shape no longer matches the known selectors yields an extraction
// error, so the orchestrator can drop that page's contribution without
// aborting the run.
func (e *Extractor) ExtractListing(snapshot harvest.Snapshot) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML))
	if err != nil {
		return nil, &harvest.ExtractionError{
			Kind:  harvest.ExtractMissingRequiredField,
			Field: "document",
			URL:   snapshot.FinalURL,
		}
	}

	base, err := url.Parse(snapshot.FinalURL)
	if err != nil {
		return nil, &harvest.ExtractionError{
			Kind:  harvest.ExtractMissingRequiredField,
			Field: "url",
			URL:   snapshot.FinalURL,
		}
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find(listingAnchors).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if !isArticleURL(href) {
			return
		}
		resolved := resolveURL(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
	})

	if len(urls) == 0 {
		return nil, &harvest.ExtractionError{
			Kind:  harvest.ExtractMissingRequiredField,
			Field: "listing items",
			URL:   snapshot.FinalURL,
		}
	}
	return urls, nil
}

// isArticleURL reports whether href points at a harvestable article.
func isArticleURL(href string) bool {
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	for _, pattern := range excludedURLPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return strings.Contains(lower, "/content/") || strings.HasPrefix(lower, "/world/")
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
