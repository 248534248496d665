package fetcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

// Detector decides whether a probe snapshot is complete enough to use
// or whether the fetch must be promoted to the headless renderer.
type Detector interface {
	ShouldPromote(snapshot harvest.Snapshot) bool
}

// Promoting implements harvest.Fetcher by probing article pages over
// plain HTTP first and promoting to the headless renderer when the
// probe result looks incomplete or blocked. Listing pages always go
// headless; the listing is rendered client-side.
type Promoting struct {
	probe    harvest.Fetcher
	headless harvest.Fetcher
	detector Detector
	logger   *zap.Logger
}

// NewPromoting builds a Promoting fetcher. A nil probe sends everything
// through the headless path.
func NewPromoting(probe, headless harvest.Fetcher, detector Detector, logger *zap.Logger) *Promoting {
	return &Promoting{
		probe:    probe,
		headless: headless,
		detector: detector,
		logger:   logger,
	}
}

// Fetch retrieves the target through the cheapest path that yields a
// usable snapshot.
func (f *Promoting) Fetch(ctx context.Context, target harvest.Target) (harvest.Snapshot, error) {
	if target.Kind == harvest.KindListing || f.probe == nil {
		return f.headless.Fetch(ctx, target)
	}

	snapshot, err := f.probe.Fetch(ctx, target)
	if err != nil {
		if harvest.IsTransientFetch(err) {
			// Let the orchestrator's retry policy handle it rather
			// than burning a headless render on a flaky connection.
			return harvest.Snapshot{}, err
		}
		f.logger.Debug("probe rejected, promoting to headless",
			zap.String("url", target.URL),
			zap.Error(err),
		)
		return f.headless.Fetch(ctx, target)
	}

	if f.detector != nil && f.detector.ShouldPromote(snapshot) {
		f.logger.Debug("probe snapshot incomplete, promoting to headless",
			zap.String("url", target.URL),
		)
		return f.headless.Fetch(ctx, target)
	}
	return snapshot, nil
}
