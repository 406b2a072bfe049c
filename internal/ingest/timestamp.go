package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // named zones resolve without a system tz database

	"github.com/ncruces/go-strftime"
)

// DefaultTimestampFormat matches "2024-01-01 00:00:00".
const DefaultTimestampFormat = "%Y-%m-%d %H:%M:%S"

var (
	// ErrTimestampParse is wrapped by every *TimestampError.
	ErrTimestampParse = errors.New("timestamp parse failed")
	// ErrUnknownTimezone is returned by ResolveTimezone for names it cannot
	// map to a location.
	ErrUnknownTimezone = errors.New("unknown time zone")
)

// TimezoneKind selects how parsed wall clocks are interpreted.
type TimezoneKind uint8

const (
	// Naive keeps the parsed value untouched.
	Naive TimezoneKind = iota
	// Fixed applies a constant UTC offset (UTC included).
	Fixed
	// Named applies an IANA zone with its DST rules.
	Named
)

// TimezoneRule is the resolved -timezone setting.
type TimezoneRule struct {
	Kind TimezoneKind
	Loc  *time.Location
	Name string
}

func (r TimezoneRule) String() string {
	if r.Kind == Naive {
		return "NAIVE"
	}
	return r.Name
}

var offsetRE = regexp.MustCompile(`^(?i:utc|gmt)?([+-])(\d{2})(?::?(\d{2}))?$`)

// ResolveTimezone maps a setting to a rule. Empty or "naive" (any case) keeps
// timestamps as written; "utc" and "z" select UTC; "+02:00", "-0530", "+02"
// and the same prefixed with UTC or GMT select a fixed offset. Anything else
// is looked up in the tz database.
func ResolveTimezone(name string) (TimezoneRule, error) {
	n := strings.TrimSpace(name)
	switch strings.ToLower(n) {
	case "", "naive":
		return TimezoneRule{Kind: Naive}, nil
	case "utc", "z":
		return TimezoneRule{Kind: Fixed, Loc: time.UTC, Name: "UTC"}, nil
	}

	if m := offsetRE.FindStringSubmatch(n); m != nil {
		h, _ := strconv.Atoi(m[2])
		mins := 0
		if m[3] != "" {
			mins, _ = strconv.Atoi(m[3])
		}
		if h > 14 || mins > 59 {
			return TimezoneRule{}, fmt.Errorf("%w: %s", ErrUnknownTimezone, name)
		}
		secs := h*3600 + mins*60
		if m[1] == "-" {
			secs = -secs
		}
		label := fmt.Sprintf("%s%02d:%02d", m[1], h, mins)
		return TimezoneRule{Kind: Fixed, Loc: time.FixedZone(label, secs), Name: label}, nil
	}

	loc, err := time.LoadLocation(n)
	if err != nil {
		return TimezoneRule{}, fmt.Errorf("%w: %s", ErrUnknownTimezone, name)
	}
	return TimezoneRule{Kind: Named, Loc: loc, Name: loc.String()}, nil
}

// TimestampError reports a timestamp cell that did not match the format.
type TimestampError struct {
	File string
	Row  int
	Raw  string
	Err  error
}

func (e *TimestampError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("failed to parse timestamp %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("failed to parse timestamp %q in %s at row %d: %v", e.Raw, e.File, e.Row, e.Err)
}

// Unwrap exposes both ErrTimestampParse and the underlying time error.
func (e *TimestampError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTimestampParse}
	}
	return []error{ErrTimestampParse, e.Err}
}

// Normalizer parses timestamp cells with a strftime pattern and applies a
// TimezoneRule.
type Normalizer struct {
	format  string
	rule    TimezoneRule
	hasZone bool
}

// NewNormalizer validates format and returns a Normalizer. An empty format
// selects DefaultTimestampFormat.
func NewNormalizer(format string, rule TimezoneRule) (*Normalizer, error) {
	if format == "" {
		format = DefaultTimestampFormat
	}
	layout, err := strftime.Layout(format)
	if err != nil {
		return nil, fmt.Errorf("timestamp format %q: %w", format, err)
	}
	if rule.Kind != Naive && rule.Loc == nil {
		return nil, fmt.Errorf("timezone rule %q has no location", rule.Name)
	}
	return &Normalizer{
		format:  format,
		rule:    rule,
		hasZone: strings.Contains(layout, "-07") || strings.Contains(layout, "MST"),
	}, nil
}

// Format returns the strftime pattern in use.
func (n *Normalizer) Format() string { return n.format }

// Normalize parses raw. With a Naive rule the parsed value is returned as is
// (UTC-labelled wall clock unless the pattern carries an offset). Otherwise a
// wall clock without offset is placed in the rule's location and the result
// is converted to UTC. raw must match the format exactly; surrounding
// whitespace is a mismatch. Failures are *TimestampError without File and Row
// set.
func (n *Normalizer) Normalize(raw string) (time.Time, error) {
	t, err := strftime.Parse(n.format, raw)
	if err != nil {
		return time.Time{}, &TimestampError{Raw: raw, Err: err}
	}
	if n.rule.Kind == Naive {
		return t, nil
	}
	if !n.hasZone {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.rule.Loc)
	}
	return t.UTC(), nil
}
