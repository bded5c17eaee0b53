// pkg/model/value.go
package model

import (
	"math"
	"strconv"
	"time"
)

// Kind tags the type held by a Value or declared by a Column
type Kind uint8

const (
	KindMissing Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
)

// String returns the kind name used in logs
func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single cell. The zero Value is missing.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
}

// Missing returns the missing value
func Missing() Value { return Value{} }

// String wraps a string cell
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer cell
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float cell; NaN becomes missing
func Float(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindFloat, f: f}
}

// Bool wraps a boolean cell
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date wraps a date cell
func Date(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{kind: KindDate, t: t}
}

// Kind returns the type of the held value
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether the cell holds no value
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// Str returns the string payload
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// IntValue returns the integer payload
func (v Value) IntValue() (int64, bool) { return v.i, v.kind == KindInt }

// FloatValue returns the float payload
func (v Value) FloatValue() (float64, bool) { return v.f, v.kind == KindFloat }

// BoolValue returns the boolean payload
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// DateValue returns the date payload
func (v Value) DateValue() (time.Time, bool) { return v.t, v.kind == KindDate }

// Number returns int and float payloads as float64
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Text renders the cell as text. Extractors match against this form, so it
// follows the conventions of the exported study spreadsheets: missing cells
// read "nan", whole floats keep a trailing ".0" and booleans are capitalised.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindDate:
		return v.t.Format("2006-01-02 15:04:05")
	default:
		return "nan"
	}
}

// Interface returns the payload as a plain Go value, nil when missing
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	default:
		return nil
	}
}

// Equal compares kind and payload
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return s + ".0"
	}
	return s
}
