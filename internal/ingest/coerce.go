package ingest

import (
	"math"
	"strconv"
	"strings"
)

// ValueKind tells which member of a Value is set.
type ValueKind uint8

const (
	NoValue ValueKind = iota
	FloatValue
	BoolValue
	StringValue
)

// CoerceResult separates the two ways a field can end up without a value.
type CoerceResult uint8

const (
	// Coerced means the Value carries a typed value.
	Coerced CoerceResult = iota
	// Empty means the source text was blank. Never counted.
	Empty
	// Skipped means the text did not fit the field type. Counted in Stats.
	Skipped
)

func (r CoerceResult) String() string {
	switch r {
	case Empty:
		return "empty"
	case Skipped:
		return "skipped"
	default:
		return "coerced"
	}
}

// Value is the outcome of coercing one cell.
type Value struct {
	Kind   ValueKind
	Result CoerceResult
	Float  float64
	Bool   bool
	Str    string
}

// Present reports whether the field should be written.
func (v Value) Present() bool { return v.Kind != NoValue }

// Any returns the typed value as float64, bool or string, or nil for NoValue.
func (v Value) Any() any {
	switch v.Kind {
	case FloatValue:
		return v.Float
	case BoolValue:
		return v.Bool
	case StringValue:
		return v.Str
	default:
		return nil
	}
}

// Coerce converts raw to the type resolved for field in types.
//
// Blank text yields an Empty NoValue and leaves stats untouched. Text that
// does not fit a float or boolean field yields a Skipped NoValue and bumps the
// field's counter in stats (stats may be nil). Float fields also take the
// tokens true/false as 1/0. Non-finite floats are skipped because line
// protocol cannot carry them.
func Coerce(field, raw string, types TypeTable, stats *Stats) Value {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Value{Result: Empty}
	}

	switch types.Lookup(field) {
	case FieldFloat:
		if f, ok := parseDecimal(text); ok {
			return Value{Kind: FloatValue, Float: f}
		}
		switch strings.ToLower(text) {
		case "true":
			return Value{Kind: FloatValue, Float: 1}
		case "false":
			return Value{Kind: FloatValue, Float: 0}
		}

	case FieldBoolean:
		switch strings.ToLower(text) {
		case "true", "1":
			return Value{Kind: BoolValue, Bool: true}
		case "false", "0":
			return Value{Kind: BoolValue, Bool: false}
		}

	default:
		return Value{Kind: StringValue, Str: text}
	}

	if stats != nil {
		stats.Skip(field)
	}
	return Value{Result: Skipped}
}

// parseDecimal parses a finite 64-bit float. Hexadecimal forms are rejected
// so that a column of hex ids is not read as numbers, and NaN or Inf spellings
// are rejected because line protocol cannot carry them. Detection and
// coercion share it, so a text classified as float always coerces.
func parseDecimal(s string) (float64, bool) {
	if len(s) > 1 && (strings.Contains(s, "x") || strings.Contains(s, "X")) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
