// internal/browser/dates.go
package browser

import (
	"strconv"
	"strings"
)

const dateSeparator = "-"

func splitDate(date string) []string {
	return strings.Split(date, dateSeparator)
}

func joinDate(parts []string) string {
	return strings.Join(parts, dateSeparator)
}

// chromeDateSegments reorders DD-MM-YYYY parts into the month, day, year order of
// Chrome's segmented date input and drops a trailing year equal to currentYear,
// since the input already shows it.
func chromeDateSegments(parts []string, currentYear int) []string {
	segments := make([]string, len(parts))
	copy(segments, parts)
	if len(segments) >= 3 {
		segments[0], segments[1] = segments[1], segments[0]
	}
	if n := len(segments); n > 0 && segments[n-1] == strconv.Itoa(currentYear) {
		segments = segments[:n-1]
	}
	return segments
}
