// Package extract turns page snapshots into structured records using
// fixed structural selectors. Extraction is a pure function of the
// snapshot: identical input yields identical output, no external calls.
package extract

import (
	"strings"
)

// Extractor implements harvest.Extractor for the source site's page
// structure.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// normalizeWhitespace collapses all runs of whitespace to single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
