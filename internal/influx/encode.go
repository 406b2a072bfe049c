package influx

import (
	"context"
	"fmt"
	"io"

	"github.com/influxdata/influxdb/models"

	"influxload/internal/ingest"
)

// EncodePoint validates p and converts it to a line protocol point. Points
// without fields, with an empty measurement, or with non-finite floats are
// rejected.
func EncodePoint(p *ingest.Datapoint) (models.Point, error) {
	if p.Measurement == "" {
		return nil, fmt.Errorf("influx: point at %s has no measurement", p.Time.Format("2006-01-02T15:04:05Z07:00"))
	}
	fields := make(models.Fields, len(p.Fields))
	for k, v := range p.Fields {
		switch v.(type) {
		case float64, bool, string:
			fields[k] = v
		default:
			return nil, fmt.Errorf("influx: field %s has unsupported type %T", k, v)
		}
	}
	pt, err := models.NewPoint(p.Measurement, models.NewTags(p.Tags), fields, p.Time)
	if err != nil {
		return nil, fmt.Errorf("influx: encode %s %v at %s: %w", p.Measurement, p.Tags, p.Time.Format("2006-01-02T15:04:05Z07:00"), err)
	}
	return pt, nil
}

// EncodeLines encodes a batch, one line per point.
func EncodeLines(points []*ingest.Datapoint) ([]string, error) {
	lines := make([]string, 0, len(points))
	for _, p := range points {
		pt, err := EncodePoint(p)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pt.String())
	}
	return lines, nil
}

// LineWriter is a BatchWriter that prints line protocol instead of sending
// it. It backs -dry-run.
type LineWriter struct {
	W io.Writer
}

// WriteBatch writes one line per point to W.
func (lw LineWriter) WriteBatch(_ context.Context, points []*ingest.Datapoint) error {
	lines, err := EncodeLines(points)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(lw.W, l); err != nil {
			return err
		}
	}
	return nil
}
