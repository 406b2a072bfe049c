package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestResolveTimezone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		kind    TimezoneKind
		name    string
		offsetS int
		wantErr bool
	}{
		{in: "", kind: Naive, name: "NAIVE"},
		{in: "NAIVE", kind: Naive, name: "NAIVE"},
		{in: "naive", kind: Naive, name: "NAIVE"},
		{in: "UTC", kind: Fixed, name: "UTC"},
		{in: "utc", kind: Fixed, name: "UTC"},
		{in: "Z", kind: Fixed, name: "UTC"},
		{in: "+02:00", kind: Fixed, name: "+02:00", offsetS: 7200},
		{in: "-0530", kind: Fixed, name: "-05:30", offsetS: -19800},
		{in: "UTC+01", kind: Fixed, name: "+01:00", offsetS: 3600},
		{in: "GMT-03:00", kind: Fixed, name: "-03:00", offsetS: -10800},
		{in: "Europe/Prague", kind: Named, name: "Europe/Prague"},
		{in: "+25:00", wantErr: true},
		{in: "Mars/Olympus_Mons", wantErr: true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			t.Parallel()
			rule, err := ResolveTimezone(c.in)
			if c.wantErr {
				if !errors.Is(err, ErrUnknownTimezone) {
					t.Fatalf("ResolveTimezone(%q) err=%v; want ErrUnknownTimezone", c.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveTimezone(%q): %v", c.in, err)
			}
			if rule.Kind != c.kind || rule.String() != c.name {
				t.Fatalf("ResolveTimezone(%q)=%v/%s; want %v/%s", c.in, rule.Kind, rule, c.kind, c.name)
			}
			if rule.Kind == Fixed {
				_, off := time.Date(2024, 1, 1, 0, 0, 0, 0, rule.Loc).Zone()
				if off != c.offsetS {
					t.Fatalf("offset=%d; want %d", off, c.offsetS)
				}
			}
		})
	}
}

func mustNormalizer(t *testing.T, format, tz string) *Normalizer {
	t.Helper()
	rule, err := ResolveTimezone(tz)
	if err != nil {
		t.Fatalf("ResolveTimezone(%q): %v", tz, err)
	}
	n, err := NewNormalizer(format, rule)
	if err != nil {
		t.Fatalf("NewNormalizer(%q): %v", format, err)
	}
	return n
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		format string
		tz     string
		raw    string
		want   string // RFC3339 in UTC, or with offset for naive inputs carrying one
	}{
		{"naive keeps wall clock", DefaultTimestampFormat, "NAIVE", "2024-06-01 12:00:00", "2024-06-01T12:00:00Z"},
		{"utc", DefaultTimestampFormat, "UTC", "2024-01-01 00:00:00", "2024-01-01T00:00:00Z"},
		{"fixed offset converts", DefaultTimestampFormat, "+02:00", "2024-06-01 12:00:00", "2024-06-01T10:00:00Z"},
		{"named zone summer", DefaultTimestampFormat, "Europe/Prague", "2024-06-01 12:00:00", "2024-06-01T10:00:00Z"},
		{"named zone winter", DefaultTimestampFormat, "Europe/Prague", "2024-01-15 12:00:00", "2024-01-15T11:00:00Z"},
		{"own offset wins", "%Y-%m-%dT%H:%M:%S%z", "Europe/Prague", "2024-06-01T12:00:00-0100", "2024-06-01T13:00:00Z"},
		{"unpadded fields", DefaultTimestampFormat, "UTC", "2024-6-1 7:5:3", "2024-06-01T07:05:03Z"},
		{"fractional seconds", "%Y-%m-%d %H:%M:%S", "UTC", "2024-01-01 00:00:00.250", "2024-01-01T00:00:00.25Z"},
		{"day first", "%d.%m.%Y %H:%M", "UTC", "31.12.2023 23:59", "2023-12-31T23:59:00Z"},
		{"empty format uses default", "", "UTC", "2024-01-01 00:00:00", "2024-01-01T00:00:00Z"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			n := mustNormalizer(t, c.format, c.tz)
			got, err := n.Normalize(c.raw)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", c.raw, err)
			}
			if s := got.Format(time.RFC3339Nano); s != c.want {
				t.Fatalf("Normalize(%q)=%s; want %s", c.raw, s, c.want)
			}
		})
	}
}

// TestNormalize_NaiveIsNotConverted pins the wall clock for a NAIVE rule.
func TestNormalize_NaiveIsNotConverted(t *testing.T) {
	t.Parallel()

	n := mustNormalizer(t, DefaultTimestampFormat, "NAIVE")
	got, err := n.Normalize("2024-06-01 12:00:00")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if h, m, s := got.Clock(); h != 12 || m != 0 || s != 0 {
		t.Fatalf("clock=%02d:%02d:%02d; want 12:00:00", h, m, s)
	}
}

func TestNormalize_ParseError(t *testing.T) {
	t.Parallel()

	n := mustNormalizer(t, DefaultTimestampFormat, "UTC")
	_, err := n.Normalize("01/02/2024")
	if !errors.Is(err, ErrTimestampParse) {
		t.Fatalf("err=%v; want ErrTimestampParse", err)
	}
	var te *TimestampError
	if !errors.As(err, &te) || te.Raw != "01/02/2024" {
		t.Fatalf("err=%#v; want *TimestampError with raw text", err)
	}

	te.File, te.Row = "data/run1.csv", 7
	msg := te.Error()
	for _, want := range []string{`"01/02/2024"`, "data/run1.csv", "row 7"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}

func TestNormalize_PaddedTextDoesNotMatch(t *testing.T) {
	t.Parallel()

	n := mustNormalizer(t, DefaultTimestampFormat, "UTC")
	for _, raw := range []string{" 2024-01-01 00:00:00", "2024-01-01 00:00:00 "} {
		if _, err := n.Normalize(raw); !errors.Is(err, ErrTimestampParse) {
			t.Fatalf("Normalize(%q) err=%v; want ErrTimestampParse", raw, err)
		}
	}
}

func TestNewNormalizer_BadFormat(t *testing.T) {
	t.Parallel()

	rule, _ := ResolveTimezone("UTC")
	if _, err := NewNormalizer("%Q-%Y", rule); err == nil {
		t.Fatal("unknown directive: error = nil; want error")
	}
	if _, err := NewNormalizer(DefaultTimestampFormat, TimezoneRule{Kind: Fixed}); err == nil {
		t.Fatal("fixed rule without location: error = nil; want error")
	}
}
