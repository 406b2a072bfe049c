// Package ingest turns experiment CSV exports into typed InfluxDB datapoints.
//
// Ingestion runs in two phases over the same sorted file set:
//
//   - Phase 1 scans every row of every file and infers a FieldType per column
//     (Detector). The result is merged with the types already stored for the
//     measurement (Reconcile), stored types winning.
//   - Phase 2 re-opens the files one at a time and streams rows through the
//     timestamp Normalizer and Coerce, yielding Datapoints lazily to
//     WriteBatches.
//
// Everything in this package is single goroutine. Skip statistics live in an
// explicit *Stats passed through the pipeline and returned in the Summary.
package ingest

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimestampColumn is the header name that carries the point time. It is never
// treated as a field.
const TimestampColumn = "timestamp"

// SourceFileTag is the single tag attached to every point.
const SourceFileTag = "source_file"

// FieldType is the resolved InfluxDB field type of a column.
type FieldType uint8

const (
	// FieldString is the zero value so that an unknown field reads as string.
	FieldString FieldType = iota
	FieldFloat
	FieldBoolean
)

// String returns the lower-case type name used in logs and config dumps.
func (t FieldType) String() string {
	switch t {
	case FieldFloat:
		return "float"
	case FieldBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// ParseFieldType maps a type name to a FieldType. Besides the names returned
// by String it accepts the column types InfluxDB reports for stored fields.
// Integer types resolve to FieldFloat because this ingester only ever writes
// floats for numeric columns.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "double", "long", "integer", "int", "unsignedlong", "uint":
		return FieldFloat, nil
	case "boolean", "bool":
		return FieldBoolean, nil
	case "string":
		return FieldString, nil
	}
	return FieldString, fmt.Errorf("unknown field type %q", s)
}

// TypeTable maps field names to their resolved type.
type TypeTable map[string]FieldType

// Lookup returns the type of field, or FieldString when the table has no entry.
func (tt TypeTable) Lookup(field string) FieldType {
	if t, ok := tt[field]; ok {
		return t
	}
	return FieldString
}

// Fields returns the field names in lexical order.
func (tt TypeTable) Fields() []string {
	out := make([]string, 0, len(tt))
	for f := range tt {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// String renders the table as "a=float b=string", sorted by field name.
func (tt TypeTable) String() string {
	var b strings.Builder
	for i, f := range tt.Fields() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(tt[f].String())
	}
	return b.String()
}

// Datapoint is one output point. Field values are float64, bool or string.
// FieldOrder keeps the header order of the source row.
type Datapoint struct {
	Measurement string
	Tags        map[string]string
	Time        time.Time
	Fields      map[string]any
	FieldOrder  []string
}

// addField appends a typed value, recording its position.
func (p *Datapoint) addField(name string, v any) {
	if p.Fields == nil {
		p.Fields = make(map[string]any)
	}
	if _, dup := p.Fields[name]; !dup {
		p.FieldOrder = append(p.FieldOrder, name)
	}
	p.Fields[name] = v
}
