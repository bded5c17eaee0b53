// pkg/extract/dates.go
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	usDate  = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`)
	isoDate = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

	// Nanosecond timestamps used by analysis tooling cannot represent
	// dates outside this window
	minDate = time.Date(1677, time.September, 22, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(2262, time.April, 11, 0, 0, 0, 0, time.UTC)
)

// USDate extracts a month-first M/D/Y date from text, falling back to an
// embedded YYYY-MM-DD date (as in "[bad] - 2020-03-04"). Two-digit years are
// placed within fifty years of refYear.
func USDate(text string, refYear int) (time.Time, bool) {
	if m := usDate.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, ok := expandYear(m[3], refYear)
		if !ok {
			return time.Time{}, false
		}
		// a first field that cannot be a month is read day-first
		if month > 12 && day <= 12 {
			month, day = day, month
		}
		return civilDate(year, month, day)
	}

	if m := isoDate.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return civilDate(year, month, day)
	}

	return time.Time{}, false
}

// UKDate parses a day-first date in any of the common layouts
func UKDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(text, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil || !inDateWindow(t) {
		return time.Time{}, false
	}
	return t, true
}

// Latest returns the later of two optional dates
func Latest(a time.Time, aok bool, b time.Time, bok bool) (time.Time, bool) {
	switch {
	case aok && bok:
		if b.After(a) {
			return b, true
		}
		return a, true
	case aok:
		return a, true
	case bok:
		return b, true
	default:
		return time.Time{}, false
	}
}

func expandYear(digits string, refYear int) (int, bool) {
	year, _ := strconv.Atoi(digits)
	switch len(digits) {
	case 4:
		return year, true
	case 2:
		year += refYear / 100 * 100
		if year >= refYear+50 {
			year -= 100
		} else if year < refYear-50 {
			year += 100
		}
		return year, true
	default:
		return 0, false
	}
}

// civilDate builds a UTC date, rejecting impossible days such as 2/30
func civilDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || !inDateWindow(t) {
		return time.Time{}, false
	}
	return t, true
}

func inDateWindow(t time.Time) bool {
	return !t.Before(minDate) && !t.After(maxDate)
}
