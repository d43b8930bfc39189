// Package report implements the Report renderer (A6): it turns a
// locate.Output into a Markdown bulletin, then to HTML via
// github.com/gomarkdown/markdown -- the same call the teacher's
// ui/server.go "markdown" template function makes (markdown.ToHTML on a
// generated string), just run standalone rather than from a template
// helper.
package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"

	"hypolocator/internal/locate"
)

// RenderMarkdown builds a Markdown bulletin summarising one location
// result: hypocenter, error ellipse, quality, and the per-pick table.
func RenderMarkdown(out locate.Output) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Location bulletin: %s\n\n", out.ID)
	fmt.Fprintf(&b, "**Exit code:** %s  \n", out.ExitCode)
	fmt.Fprintf(&b, "**Quality:** %c\n\n", qualityOrDash(out.Quality))

	fmt.Fprintf(&b, "## Hypocenter\n\n")
	fmt.Fprintf(&b, "- Origin time: %d ms\n", out.OriginTimeMillis)
	fmt.Fprintf(&b, "- Latitude: %.4f° ± %.2f km\n", out.Latitude, out.LatErrorKm)
	fmt.Fprintf(&b, "- Longitude: %.4f° ± %.2f km\n", out.Longitude, out.LonErrorKm)
	fmt.Fprintf(&b, "- Depth: %.2f km ± %.2f km\n", out.DepthKm, out.DepthErrorKm)
	fmt.Fprintf(&b, "- Origin time error: %.3f s\n\n", out.OriginTimeErrorSec)

	fmt.Fprintf(&b, "## Error ellipse\n\n")
	fmt.Fprintf(&b, "| Axis | Semi-length (km) | Azimuth (deg) | Plunge (deg) |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")
	for i, a := range out.Axes {
		fmt.Fprintf(&b, "| %d | %.2f | %.1f | %.1f |\n", i+1, a.SemiLengthKm, a.AzimuthDeg, a.PlungeDeg)
	}
	fmt.Fprintf(&b, "\nMax horizontal: %.2f km, max vertical: %.2f km, equivalent horizontal radius: %.2f km\n\n",
		out.MaxHorizontalKm, out.MaxVerticalKm, out.EquivHorizRadiusKm)

	fmt.Fprintf(&b, "## Statistics\n\n")
	fmt.Fprintf(&b, "- Associated: %d, used stations: %d, used phases: %d\n", out.NAssociated, out.NUsedStations, out.NUsedPhases)
	fmt.Fprintf(&b, "- Gap: %.1f°, secondary gap: %.1f°, min distance: %.2f°\n", out.GapDeg, out.SecondaryGapDeg, out.MinDistanceDeg)
	fmt.Fprintf(&b, "- RMS residual: %.3f s\n", out.RMSResidualSec)
	fmt.Fprintf(&b, "- Bayesian depth: %.2f km (range %.2f km), importance %.3f\n\n",
		out.BayesianDepthKm, out.BayesianDepthRangeKm, out.BayesianDepthImportance)

	fmt.Fprintf(&b, "## Picks\n\n")
	fmt.Fprintf(&b, "| ID | Phase | Residual (s) | Distance (deg) | Azimuth (deg) | Weight | Importance | Used |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|---|\n")
	for _, p := range out.Picks {
		fmt.Fprintf(&b, "| %s | %s | %.3f | %.2f | %.1f | %.3f | %.3f | %t |\n",
			p.ID, p.LocatedPhase, p.Residual, p.DistanceDeg, p.AzimuthDeg, p.Weight, p.Importance, p.Used)
	}

	return b.String()
}

// RenderHTML converts the Markdown bulletin to an HTML fragment.
func RenderHTML(out locate.Output) string {
	return string(markdown.ToHTML([]byte(RenderMarkdown(out)), nil, nil))
}

func qualityOrDash(q byte) byte {
	if q == 0 {
		return '-'
	}
	return q
}
