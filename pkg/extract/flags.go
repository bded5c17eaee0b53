// pkg/extract/flags.go
package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/David-Botos/clinical-ingress/pkg/model"
)

// BinaryFlag maps the 0/1 encodings used for yes/no clinical fields to a
// boolean. Anything else is unrecognised.
func BinaryFlag(v model.Value) (bool, bool) {
	switch v.Kind() {
	case model.KindBool:
		return v.BoolValue()
	case model.KindInt, model.KindFloat:
		n, _ := v.Number()
		switch n {
		case 0:
			return false, true
		case 1:
			return true, true
		}
	case model.KindString:
		switch s, _ := v.Str(); s {
		case "0", "0.0":
			return false, true
		case "1", "1.0":
			return true, true
		}
	}
	return false, false
}

// LegacyHypertension reads the misspelled hypertension field, which only
// ever recorded positive answers
func LegacyHypertension(v model.Value) (bool, bool) {
	switch s, _ := v.Str(); s {
	case "1", "1es":
		return true, true
	}
	return false, false
}

// Binary01 returns 0 or 1 for integer-like encodings of a binary result
func Binary01(v model.Value) (int, bool) {
	switch v.Kind() {
	case model.KindBool:
		if b, _ := v.BoolValue(); b {
			return 1, true
		}
		return 0, true
	case model.KindInt, model.KindFloat:
		n, _ := v.Number()
		if n == 0 || n == 1 {
			return int(n), true
		}
	case model.KindString:
		s, _ := v.Str()
		switch strings.TrimSpace(s) {
		case "0":
			return 0, true
		case "1":
			return 1, true
		}
	}
	return 0, false
}

var fio2Levels = map[string]string{
	"1":      "25",
	"2":      "29",
	"3":      "33",
	"4":      "37",
	"5":      "41",
	"6":      "45",
	"7":      "41",
	"8":      "47",
	"9":      "53",
	"10":     "60",
	"11":     "80",
	"12":     "85",
	"13":     "90",
	"14":     "95",
	"15":     "100",
	"blue":   "24",
	"white":  "28",
	"orange": "31",
	"yellow": "35",
	"red":    "40",
	"green":  "60",
}

// FiO2Percent converts an oxygen fraction, a numbered oxygen device level
// (optionally suffixed with "l"), a Venturi mask colour or a plain percentage
// into a whole percentage between 0 and 100
func FiO2Percent(text string) (int, bool) {
	pct := text
	switch {
	case strings.Contains(text, "."):
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, false
		}
		r := math.RoundToEven(f * 100)
		if math.IsInf(r, 0) || math.IsNaN(r) || r < 0 {
			return 0, false
		}
		pct = strconv.FormatFloat(r, 'f', 0, 64)
	case strings.Contains(strings.ToLower(text), "l"):
		level, ok := fio2Levels[strings.TrimRight(strings.ToLower(text), "l")]
		if !ok {
			return 0, false
		}
		pct = level
	default:
		if level, ok := fio2Levels[text]; ok {
			pct = level
		}
	}

	if !allDigits(pct) {
		return 0, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil || n > 100 {
		return 0, false
	}
	return n, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
