package http

import (
	"math"
	"net/http"
	"strings"

	"casa/internal/core"
)

// sanitizeInput drops control characters except tab and newlines and trims
// whitespace. Length limits belong to core validation.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// barWidth scales part against whole to a 0..100 percentage for bar charts,
// keeping tiny non-zero values visible.
func barWidth(part, whole core.Money) int {
	p, m := part.Abs().Cents, whole.Abs().Cents
	if m == 0 || p == 0 {
		return 0
	}
	width := int(math.Round(float64(p) * 100 / float64(m)))
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}
