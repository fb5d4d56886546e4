package ingest

import (
	"testing"
	"time"
)

func TestParseLastUpdated_FormatOrder(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"day first", "31/01/2024", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"iso", "2024-01-31", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"month first when day-first impossible", "01/31/2024", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"ambiguous resolves day first", "03/04/2025", time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)},
		{"unpadded day first", "3/4/2025", time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC)},
		{"excel datetime text", "2024-01-31 14:22:05", time.Date(2024, 1, 31, 14, 22, 5, 0, time.UTC)},
		{"spelled out", "31 January 2024", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
		{"embedded in text", "updated 2024-01-31 by sync", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLastUpdated(tt.input)
			if err != nil {
				t.Fatalf("parseLastUpdated(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("parseLastUpdated(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLastUpdated_Unparsable(t *testing.T) {
	for _, input := range []string{"", "not a date", "99/99/9999"} {
		if _, err := parseLastUpdated(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestDaysSinceUpdate(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	// 31/01/2024 to 15/03/2024 is 44 days in a leap year.
	got := daysSinceUpdate("31/01/2024", now)
	if got == nil {
		t.Fatal("expected non-nil days")
	}
	if *got != 44 {
		t.Fatalf("expected 44 days, got %d", *got)
	}
}

func TestDaysSinceUpdate_FutureDateGoesNegative(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	got := daysSinceUpdate("2024-03-20", now)
	if got == nil {
		t.Fatal("expected non-nil days")
	}
	if *got != -5 {
		t.Fatalf("expected -5 days for future date, got %d", *got)
	}
}

func TestDaysSinceUpdate_PartialDayFloors(t *testing.T) {
	// Midday now against a future midnight date is -4.5 elapsed days, which
	// floors to -5 full days rather than truncating to -4.
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	got := daysSinceUpdate("2024-03-20", now)
	if got == nil {
		t.Fatal("expected non-nil days")
	}
	if *got != -5 {
		t.Fatalf("expected -5 days, got %d", *got)
	}

	// Past dates floor too: 44 days and 10 hours reads as 44.
	past := daysSinceUpdate("31/01/2024", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	if past == nil || *past != 44 {
		t.Fatalf("expected 44 days, got %v", past)
	}
}

func TestDaysSinceUpdate_UnparsableIsNil(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	if got := daysSinceUpdate("soon", now); got != nil {
		t.Fatalf("expected nil for unparsable date, got %d", *got)
	}
	if got := daysSinceUpdate("", now); got != nil {
		t.Fatalf("expected nil for empty date, got %d", *got)
	}
}
