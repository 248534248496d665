package extract

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

// Selector fallback chains for the source site's article pages, most
// specific first. The site has shipped several article templates over
// the years; all of them are still reachable from the archive.
var (
	titleSelectors = []string{
		"h1.n-content-header--headline",
		`h1[data-trackable="headline"]`,
		".article-headline h1",
		"h1.o-typography-headline--large",
	}
	subtitleSelectors = []string{
		".n-content-header--standfirst",
		`[data-trackable="standfirst"]`,
		".article-subtitle",
		".o-editorial-typography-standfirst",
	}
	bodySelectors = []string{
		".n-content-body",
		`[data-trackable="story-body"]`,
		".article-body",
		".o-editorial-typography-body",
	}
	authorSelectors = []string{
		`[data-trackable="author"]`,
		".n-content-header--byline a",
		".article-author",
		".byline a",
	}
	imageSelectors = []string{
		".n-image img",
		".article-image img",
		".o-editorial-layout-wrapper img",
	}
	timestampSelectors = []string{
		"time[datetime]",
		`[data-trackable="timestamp"]`,
		".article-timestamp",
	}
)

const (
	// Paragraphs shorter than this are navigation crumbs or captions,
	// not body text.
	minParagraphLength = 20

	siteTitleSuffix = " | Financial Times"

	wordsPerMinute = 200
)

// ExtractArticle populates a CandidateRecord from an article snapshot.
// Title and URL are mandatory; author, subtitle, image and published
// timestamp are optional. An unparseable but present timestamp becomes
// a nil published time plus a warning, never a hard failure.
func (e *Extractor) ExtractArticle(snapshot harvest.Snapshot) (harvest.CandidateRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML))
	if err != nil {
		return harvest.CandidateRecord{}, &harvest.ExtractionError{
			Kind:  harvest.ExtractMissingRequiredField,
			Field: "document",
			URL:   snapshot.FinalURL,
		}
	}

	canonical := strings.TrimSpace(snapshot.FinalURL)
	if canonical == "" {
		return harvest.CandidateRecord{}, &harvest.ExtractionError{
			Kind:  harvest.ExtractMissingRequiredField,
			Field: "url",
		}
	}

	title := extractTitle(doc)
	if title == "" {
		return harvest.CandidateRecord{}, &harvest.ExtractionError{
			Kind:  harvest.ExtractMissingRequiredField,
			Field: "title",
			URL:   canonical,
		}
	}

	body := extractBody(doc)
	if body == "" {
		return harvest.CandidateRecord{}, &harvest.ExtractionError{
			Kind: harvest.ExtractEmptyBody,
			URL:  canonical,
		}
	}

	record := harvest.CandidateRecord{
		URL:      canonical,
		Title:    title,
		Body:     body,
		Subtitle: firstText(doc, subtitleSelectors),
		Author:   firstText(doc, authorSelectors),
		ImageURL: extractImageURL(doc, canonical),
	}

	published, warning := extractPublished(doc)
	record.PublishedAt = published
	if warning != "" {
		record.Warnings = append(record.Warnings, warning)
	}

	record.WordCount = len(strings.Fields(body))
	record.ReadingTime = fmt.Sprintf("%d min read", max(1, record.WordCount/wordsPerMinute))
	return record, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := firstText(doc, titleSelectors); title != nil {
		return *title
	}
	// Fall back to the page title, minus the site suffix.
	pageTitle := normalizeWhitespace(doc.Find("title").First().Text())
	return strings.TrimSuffix(pageTitle, siteTitleSuffix)
}

// extractBody walks the content selector chain and returns the first
// non-empty normalized body: markup stripped, whitespace collapsed,
// paragraphs joined with blank lines.
func extractBody(doc *goquery.Document) string {
	for _, selector := range bodySelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		container.Find("script, style, aside, nav").Remove()

		var paragraphs []string
		container.Find("p").Each(func(_ int, sel *goquery.Selection) {
			text := normalizeWhitespace(sel.Text())
			if len(text) >= minParagraphLength {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			return strings.Join(paragraphs, "\n\n")
		}
	}
	return ""
}

func extractImageURL(doc *goquery.Document, pageURL string) *string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	for _, selector := range imageSelectors {
		img := doc.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		src, ok := img.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			src, ok = img.Attr("data-src")
		}
		if !ok || strings.TrimSpace(src) == "" {
			continue
		}
		if resolved := resolveURL(base, strings.TrimSpace(src)); resolved != "" {
			return &resolved
		}
	}
	return nil
}

// extractPublished returns the published timestamp, preferring the
// machine-readable datetime attribute over the element text. Present
// but unparseable text yields a nil timestamp and a warning.
func extractPublished(doc *goquery.Document) (*time.Time, string) {
	for _, selector := range timestampSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if attr, ok := el.Attr("datetime"); ok && strings.TrimSpace(attr) != "" {
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(attr)); err == nil {
				utc := ts.UTC()
				return &utc, ""
			}
		}
		text := normalizeWhitespace(el.Text())
		if text == "" {
			continue
		}
		ts, err := dateparse.ParseAny(text)
		if err != nil {
			return nil, fmt.Sprintf("unparseable published timestamp %q", text)
		}
		utc := ts.UTC()
		return &utc, ""
	}
	return nil, ""
}

func firstText(doc *goquery.Document, selectors []string) *string {
	for _, selector := range selectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if text := normalizeWhitespace(el.Text()); text != "" {
			return &text
		}
	}
	return nil
}
