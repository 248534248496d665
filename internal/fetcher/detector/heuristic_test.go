package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newsdesk/ft-harvester/internal/harvest"
)

func articleSnapshot(status int, html string) harvest.Snapshot {
	return harvest.Snapshot{Kind: harvest.KindArticle, StatusCode: status, HTML: html}
}

func TestShouldPromoteNon200NeverPromotes(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	require.False(t, h.ShouldPromote(articleSnapshot(404, "")))
	require.False(t, h.ShouldPromote(articleSnapshot(500, "<div id=\"root\"></div>")))
}

func TestShouldPromoteEmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	require.True(t, h.ShouldPromote(articleSnapshot(200, "")))
}

func TestShouldPromoteMissingContentContainer(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	shell := `<html><body><div class="app-shell">loading</div>` + strings.Repeat("<p>x</p>", 500) + `</body></html>`
	require.True(t, h.ShouldPromote(articleSnapshot(200, shell)))

	full := `<html><body><div class="n-content-body"><p>Real content paragraph.</p></div></body></html>`
	require.False(t, h.ShouldPromote(articleSnapshot(200, full)))
}

func TestShouldPromoteSPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	spa := `<html><body><div class="n-content-body"></div><div data-reactroot></div></body></html>`
	require.True(t, h.ShouldPromote(articleSnapshot(200, spa)))
}

func TestShouldPromoteScriptHeavyShortPage(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(2048)
	page := `<html><body><div class="n-content-body">x</div><script>` +
		strings.Repeat("a", 400) + `</script></body></html>`
	require.True(t, h.ShouldPromote(articleSnapshot(200, page)))
}

func TestShouldPromoteListingIgnoresContentMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(0)
	listing := harvest.Snapshot{
		Kind:       harvest.KindListing,
		StatusCode: 200,
		HTML:       `<html><body><a href="/content/a">teaser</a></body></html>`,
	}
	require.False(t, h.ShouldPromote(listing))
}
