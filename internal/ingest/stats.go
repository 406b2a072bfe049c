package ingest

import (
	"fmt"
	"sort"
	"strings"
)

// Stats counts tracked coercion skips per field. The zero value is ready to
// use. A Stats is owned by a single run and is not safe for concurrent use.
type Stats struct {
	skipped map[string]int
	rows    int
}

// NewStats returns an empty accumulator.
func NewStats() *Stats { return &Stats{} }

// Skip records one failed coercion for field.
func (s *Stats) Skip(field string) {
	if s.skipped == nil {
		s.skipped = make(map[string]int)
	}
	s.skipped[field]++
}

// SkipRow records a row dropped without a point: it had no timestamp or
// none of its fields held a usable value. Row skips are not reported in the
// summary line; they only feed metrics and verbose logs.
func (s *Stats) SkipRow() { s.rows++ }

// Skipped returns the skip count for field.
func (s *Stats) Skipped(field string) int { return s.skipped[field] }

// SkippedRows returns how many rows were dropped without a point.
func (s *Stats) SkippedRows() int { return s.rows }

// Total returns the sum of all field skips.
func (s *Stats) Total() int {
	n := 0
	for _, c := range s.skipped {
		n += c
	}
	return n
}

// Fields returns the names of fields with at least one skip, sorted.
func (s *Stats) Fields() []string {
	out := make([]string, 0, len(s.skipped))
	for f := range s.skipped {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Line renders "Skipped field values: a=2, b=1", or "" when nothing was
// skipped.
func (s *Stats) Line() string {
	if s == nil || len(s.skipped) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.skipped))
	for _, f := range s.Fields() {
		parts = append(parts, fmt.Sprintf("%s=%d", f, s.skipped[f]))
	}
	return "Skipped field values: " + strings.Join(parts, ", ")
}
