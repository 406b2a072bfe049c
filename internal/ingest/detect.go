package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	csvparser "influxload/internal/parser/csv"
)

// OpenFunc opens one input file. file.Opener returns one.
type OpenFunc func(ctx context.Context, path string) (io.ReadCloser, error)

// Classify returns the type a single trimmed, non-empty value suggests. The
// second result is false for blank text.
func Classify(raw string) (FieldType, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return FieldString, false
	}
	if strings.EqualFold(text, "true") || strings.EqualFold(text, "false") {
		return FieldBoolean, true
	}
	if _, ok := parseDecimal(text); ok {
		return FieldFloat, true
	}
	return FieldString, true
}

// seenKinds is a bit set of the classifications observed for a field.
type seenKinds uint8

const (
	seenFloat seenKinds = 1 << iota
	seenBoolean
	seenString
)

// Detector accumulates classifications across rows and files.
type Detector struct {
	seen map[string]seenKinds
}

// NewDetector returns an empty Detector.
func NewDetector() *Detector {
	return &Detector{seen: make(map[string]seenKinds)}
}

// Observe classifies one value of field. Blank values and the timestamp
// column are ignored.
func (d *Detector) Observe(field, raw string) {
	if field == TimestampColumn {
		return
	}
	t, ok := Classify(raw)
	if !ok {
		return
	}
	switch t {
	case FieldFloat:
		d.seen[field] |= seenFloat
	case FieldBoolean:
		d.seen[field] |= seenBoolean
	default:
		d.seen[field] |= seenString
	}
}

// ObserveRow observes every cell of row. Cells beyond the header are ignored.
func (d *Detector) ObserveRow(row csvparser.Row) {
	for i, name := range row.Header {
		if i >= len(row.Values) {
			break
		}
		d.Observe(name, row.Values[i])
	}
}

// Resolve returns one type per observed field: Float if a float was ever
// seen, else String if a string was seen, else Boolean.
func (d *Detector) Resolve() TypeTable {
	out := make(TypeTable, len(d.seen))
	for field, k := range d.seen {
		switch {
		case k&seenFloat != 0:
			out[field] = FieldFloat
		case k&seenString != 0:
			out[field] = FieldString
		default:
			out[field] = FieldBoolean
		}
	}
	return out
}

// DetectTypes scans every row of every file in order and returns the
// resolved types. Files without a header row are skipped.
func DetectTypes(ctx context.Context, files []string, open OpenFunc, opt csvparser.Options) (TypeTable, error) {
	d := NewDetector()
	for _, path := range files {
		if err := d.scanFile(ctx, path, open, opt); err != nil {
			return nil, err
		}
	}
	return d.Resolve(), nil
}

func (d *Detector) scanFile(ctx context.Context, path string, open OpenFunc, opt csvparser.Options) error {
	rc, err := open(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()

	r, err := csvparser.NewReader(rc, path, opt)
	if errors.Is(err, csvparser.ErrNoHeader) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("detect: %w", err)
		}
		d.ObserveRow(row)
	}
}
