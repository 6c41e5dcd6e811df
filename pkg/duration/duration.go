// Package duration parses human-readable retention periods.
// It extends Go's standard time.ParseDuration with day and week units so
// configuration values like "30d" or "2w" work where a retention window is
// expected (storage.media_retention, for example).
//
// Supported extended units (case-insensitive, singular or plural):
//   - d, day(s): days (24 hours)
//   - w, wk(s), week(s): weeks (7 days)
//
// Standard Go durations still parse unchanged, so "720h" and "30d" are
// equivalent spellings of the same retention window.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

// calendarPattern matches a day or week component, with optional whitespace
// between the number and the unit: "30d", "30 days", "2weeks".
var calendarPattern = regexp.MustCompile(`(?i)(\d+)\s*(weeks?|wks?|w|days?|d)`)

func unitDuration(unit string) time.Duration {
	if strings.HasPrefix(strings.ToLower(unit), "w") {
		return Week
	}
	return Day
}

// Parse parses a duration string that may contain day and week components.
// Day and week components are summed first; whatever remains is handed to
// time.ParseDuration, so mixed forms like "1w2d12h" work.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var calendar time.Duration
	rest := calendarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := calendarPattern.FindStringSubmatch(match)
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return match
		}
		calendar += time.Duration(n) * unitDuration(parts[2])
		return ""
	})

	// time.ParseDuration rejects whitespace between components.
	rest = strings.Join(strings.Fields(rest), "")

	total := calendar
	if rest != "" {
		clock, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
		total += clock
	}

	if negative {
		total = -total
	}
	return total, nil
}

// Format renders a duration using week and day units where they fit:
// 30 days becomes "4w2d". Sub-day remainders use Go's standard rendering,
// so 36 hours becomes "1d12h0m0s".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var b strings.Builder
	if weeks := d / Week; weeks > 0 {
		fmt.Fprintf(&b, "%dw", weeks)
		d -= weeks * Week
	}
	if days := d / Day; days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		d -= days * Day
	}
	if d > 0 {
		b.WriteString(d.String())
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
