// Package detector decides when an article fetch must be promoted to
// the headless renderer.
package detector

import (
	"strings"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = []string{
	"__next",
	`id="root"`,
	`id="app"`,
	"data-reactroot",
}

// Containers the article templates place body text in. A snapshot with
// none of them was rendered without its content.
var contentMarkers = []string{
	"n-content-body",
	"story-body",
	"article-body",
	"o-editorial-typography-body",
}

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(snapshot harvest.Snapshot) bool {
	if snapshot.StatusCode != 200 {
		return false
	}
	html := snapshot.HTML
	if len(html) == 0 {
		return true
	}
	if snapshot.Kind == harvest.KindArticle && !hasContentMarker(html) {
		return true
	}
	if len(html) < h.BodyLengthThreshold && scriptDensityHigh(html) {
		return true
	}
	for _, marker := range spaMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

func hasContentMarker(html string) bool {
	for _, marker := range contentMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(html string) bool {
	lower := strings.ToLower(html)
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
