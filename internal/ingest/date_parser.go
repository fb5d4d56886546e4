package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// lastUpdatedFormats are tried in order. Day-first comes before month-first
// because the exports are produced with UK locale settings; an ambiguous
// value like 03/04/2025 resolves as 3 April.
var lastUpdatedFormats = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// parseLastUpdated parses a last-updated cell using the ordered explicit
// formats, then falls back to a best-effort generic parse. Callers treat an
// error as "age unknown"; it is never surfaced past the normalizer.
func parseLastUpdated(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, format := range lastUpdatedFormats {
		if t, err := time.Parse(format, text); err == nil {
			return t, nil
		}
	}

	if t, err := parseDateGeneric(text); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

// parseDateGeneric handles timestamps and spelled-out dates that the export
// occasionally produces (e.g. Excel datetime cells rendered as text).
func parseDateGeneric(text string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"02/01/2006 15:04",
		"2 January 2006",
		"02 January 2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 Jan 2006",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, text); err == nil {
			return t, nil
		}
	}

	if t := parseDateWithRegex(text); !t.IsZero() {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

// parseDateWithRegex extracts a date embedded in surrounding text.
func parseDateWithRegex(text string) time.Time {
	// ISO date: 2025-03-15
	isoRegex := regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	if matches := isoRegex.FindStringSubmatch(text); len(matches) == 4 {
		if t, err := time.Parse("2006-01-02", matches[0]); err == nil {
			return t
		}
	}

	// Slash date, day-first then month-first: 15/03/2025 or 3/15/2025
	slashRegex := regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(20\d{2})\b`)
	if matches := slashRegex.FindStringSubmatch(text); len(matches) == 4 {
		dateStr := fmt.Sprintf("%s/%s/%s", matches[1], matches[2], matches[3])
		if t, err := time.Parse("2/1/2006", dateStr); err == nil {
			return t
		}
		if t, err := time.Parse("1/2/2006", dateStr); err == nil {
			return t
		}
	}

	// Month name: March 15, 2025 or 15 March 2025
	monthRegex := regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{1,2}),?\s+(20\d{2})\b`)
	if matches := monthRegex.FindStringSubmatch(text); len(matches) == 4 {
		dateStr := fmt.Sprintf("%s %s %s", matches[1], matches[2], matches[3])
		for _, format := range []string{"January 2, 2006", "Jan 2, 2006"} {
			if t, err := time.Parse(format, dateStr); err == nil {
				return t
			}
		}
	}
	dayFirstRegex := regexp.MustCompile(`\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(20\d{2})\b`)
	if matches := dayFirstRegex.FindStringSubmatch(text); len(matches) == 4 {
		dateStr := fmt.Sprintf("%s %s %s", matches[1], matches[2], matches[3])
		for _, format := range []string{"2 January 2006", "2 Jan 2006"} {
			if t, err := time.Parse(format, dateStr); err == nil {
				return t
			}
		}
	}

	return time.Time{}
}

// daysSinceUpdate returns whole days between the parsed last-updated date
// and now, or nil when the date cannot be parsed. The division floors, so a
// future date with a partial day counts as a full negative day (-4.5 days
// reads as -5, not -4).
func daysSinceUpdate(lastUpdated string, now time.Time) *int {
	parsed, err := parseLastUpdated(lastUpdated)
	if err != nil {
		return nil
	}

	days := int(math.Floor(now.Sub(parsed).Hours() / 24))
	return &days
}
