package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"chainblock/pkg/request"
	"chainblock/pkg/session"
)

const (
	barFull  = "━"
	barEmpty = "─"
	barWidth = 20
)

// ProgressBar renders scraped/total as a fixed-width bar. An unknown total
// renders an empty bar.
func ProgressBar(p session.Progress) string {
	filled := 0
	if p.Total != nil && *p.Total > 0 {
		filled = p.Scraped * barWidth / *p.Total
		if filled > barWidth {
			filled = barWidth
		}
	}
	return strings.Repeat(barFull, filled) + strings.Repeat(barEmpty, barWidth-filled)
}

// FormatCounts summarizes the buckets of p, e.g. "Block 3 • skipped 1"
func FormatCounts(p session.Progress) string {
	var parts []string
	verbs := make([]request.Verb, 0, len(p.Success))
	for v, n := range p.Success {
		if n > 0 {
			verbs = append(verbs, v)
		}
	}
	sort.Slice(verbs, func(i, j int) bool { return verbs[i] < verbs[j] })
	for _, v := range verbs {
		parts = append(parts, fmt.Sprintf("%s %d", v, p.Success[v]))
	}

	for _, c := range []struct {
		label string
		n     int
	}{
		{"already", p.Already},
		{"skipped", p.Skipped},
		{"failed", p.Failure},
		{"errors", p.Error},
	} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", c.label, c.n))
		}
	}
	if len(parts) == 0 {
		return "nothing yet"
	}
	return strings.Join(parts, " • ")
}

// FormatTotal renders "scraped/total", with "?" for an unknown total
func FormatTotal(p session.Progress) string {
	if p.Total == nil {
		return fmt.Sprintf("%d/?", p.Scraped)
	}
	return fmt.Sprintf("%d/%d", p.Scraped, *p.Total)
}

// FormatDuration formats d as 45s, 3m12s or 2h5m
func FormatDuration(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
