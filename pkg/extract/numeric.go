// pkg/extract/numeric.go
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Reading selects which number ClinicalValue pulls out of a cell
type Reading int

const (
	// Single is a plain measurement, e.g. "[123.4] - 2020-03-04"
	Single Reading = iota
	// Systolic is the first half of a blood pressure pair "[170/70]"
	Systolic
	// Diastolic is the second half of a blood pressure pair "[170/70]"
	Diastolic
)

var (
	bracketedValue = regexp.MustCompile(`\[(\d+\.?\d+)\]`)
	bloodPressure  = regexp.MustCompile(`\[(?P<systolic>\d{2,3})/(?P<diastolic>\d{2,3})\]`)
	firstDigits    = regexp.MustCompile(`\d+`)
)

// ClinicalValue extracts a non-negative measurement from free text. Plain
// decimals are parsed directly; otherwise the value is recovered from the
// bracketed form sites export on entry errors.
func ClinicalValue(text string, reading Reading) (float64, bool) {
	if isDecimal(text) {
		f, err := strconv.ParseFloat(text, 64)
		return f, err == nil
	}

	if reading == Single {
		m := bracketedValue.FindStringSubmatch(text)
		if m == nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(m[1], 64)
		return f, err == nil
	}

	m := bloodPressure.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	group := "systolic"
	if reading == Diastolic {
		group = "diastolic"
	}
	f, err := strconv.ParseFloat(m[bloodPressure.SubexpIndex(group)], 64)
	return f, err == nil
}

// isDecimal reports whether text is ASCII digits with at most one '.'
func isDecimal(text string) bool {
	return allDigits(strings.Replace(text, ".", "", 1))
}

// Number parses text leniently: surrounding whitespace, a sign and
// exponents are accepted
func Number(text string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Age parses an age in years rounded down to a whole year
func Age(text string) (float64, bool) {
	f, ok := Number(text)
	if !ok || math.IsInf(f, 0) {
		return 0, false
	}
	return math.Floor(f), true
}

// InRange reports whether lo <= v <= hi
func InRange(v, lo, hi float64) bool {
	return lo <= v && v <= hi
}

// FirstDigits returns the first run of digits in text
func FirstDigits(text string) (string, bool) {
	d := firstDigits.FindString(text)
	return d, d != ""
}
