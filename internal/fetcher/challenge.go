// Package fetcher composes the fast-path probe fetcher with the
// headless renderer and decides which path serves a target.
package fetcher

import (
	"strings"
)

// Anti-bot and paywall signatures observed on the source site. A page
// carrying any of these is blocked for harvesting purposes even when it
// returns 200.
var challengeMarkers = []string{
	"barrier-page",
	"subscription-banner",
	`data-trackable="subscribe-banner"`,
	"o-banner--subscription",
	"subscribe to read",
	"premium subscribers only",
	"try full digital access",
	"cf-challenge",
	"g-recaptcha",
}

// DetectChallenge reports whether the rendered HTML is a paywall or
// anti-bot challenge rather than article content.
func DetectChallenge(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
