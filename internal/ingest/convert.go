package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	csvparser "influxload/internal/parser/csv"
)

// SkipRecorder receives every tracked coercion skip. skiplog.Log implements
// it.
type SkipRecorder interface {
	Add(file string, row int, field, raw string)
}

// Converter turns rows into Datapoints using a finalized TypeTable.
type Converter struct {
	Measurement string
	Types       TypeTable
	Normalizer  *Normalizer
	Stats       *Stats
	Skips       SkipRecorder
}

// Convert builds the point for row. ok is false when the row has no
// timestamp or when no field survives coercion; such rows are dropped
// without error and counted as skipped rows. Timestamp parse failures are
// returned as *TimestampError carrying the row position.
func (c *Converter) Convert(row csvparser.Row) (p *Datapoint, ok bool, err error) {
	raw, _ := row.Get(TimestampColumn)
	if strings.TrimSpace(raw) == "" {
		if c.Stats != nil {
			c.Stats.SkipRow()
		}
		return nil, false, nil
	}

	ts, err := c.Normalizer.Normalize(raw)
	if err != nil {
		var te *TimestampError
		if errors.As(err, &te) {
			te.File, te.Row = row.File, row.Line
		}
		return nil, false, err
	}

	p = &Datapoint{
		Measurement: c.Measurement,
		Tags:        map[string]string{SourceFileTag: filepath.Base(row.File)},
		Time:        ts,
	}
	for i, name := range row.Header {
		if name == TimestampColumn || i >= len(row.Values) {
			continue
		}
		v := Coerce(name, row.Values[i], c.Types, c.Stats)
		if v.Result == Skipped && c.Skips != nil {
			c.Skips.Add(row.File, row.Line, name, row.Values[i])
		}
		if v.Present() {
			p.addField(name, v.Any())
		}
	}
	if len(p.Fields) == 0 {
		if c.Stats != nil {
			c.Stats.SkipRow()
		}
		return nil, false, nil
	}
	return p, true, nil
}

// PointSource yields Datapoints until io.EOF.
type PointSource interface {
	Next() (*Datapoint, error)
}

// PointIterator streams Datapoints from a list of files. Files are opened one
// at a time and closed before the next one is opened. It is single pass.
type PointIterator struct {
	ctx   context.Context
	files []string
	open  OpenFunc
	opt   csvparser.Options
	conv  *Converter

	next int
	rc   io.ReadCloser
	r    *csvparser.Reader
	err  error
}

// NewPointIterator returns an iterator over files in the given order.
func NewPointIterator(ctx context.Context, files []string, open OpenFunc, opt csvparser.Options, conv *Converter) *PointIterator {
	return &PointIterator{ctx: ctx, files: files, open: open, opt: opt, conv: conv}
}

// Next returns the next point, io.EOF after the last one, or the first error
// encountered. Once an error is returned it is returned forever.
func (it *PointIterator) Next() (*Datapoint, error) {
	if it.err != nil {
		return nil, it.err
	}
	for {
		if err := it.ctx.Err(); err != nil {
			return nil, it.fail(err)
		}
		if it.r == nil {
			if it.next >= len(it.files) {
				it.err = io.EOF
				return nil, io.EOF
			}
			if err := it.openNext(); err != nil {
				return nil, it.fail(err)
			}
			continue
		}

		row, err := it.r.Next()
		if errors.Is(err, io.EOF) {
			if err := it.closeCurrent(); err != nil {
				return nil, it.fail(err)
			}
			continue
		}
		if err != nil {
			return nil, it.fail(fmt.Errorf("convert: %w", err))
		}

		p, ok, err := it.conv.Convert(row)
		if err != nil {
			return nil, it.fail(err)
		}
		if ok {
			return p, nil
		}
	}
}

// Close releases the current file, if any. It is safe to call more than once.
func (it *PointIterator) Close() error {
	return it.closeCurrent()
}

func (it *PointIterator) openNext() error {
	path := it.files[it.next]
	it.next++
	rc, err := it.open(it.ctx, path)
	if err != nil {
		return err
	}
	r, err := csvparser.NewReader(rc, path, it.opt)
	if errors.Is(err, csvparser.ErrNoHeader) {
		return rc.Close()
	}
	if err != nil {
		_ = rc.Close()
		return fmt.Errorf("convert: %w", err)
	}
	it.rc, it.r = rc, r
	return nil
}

func (it *PointIterator) closeCurrent() error {
	if it.rc == nil {
		return nil
	}
	err := it.rc.Close()
	it.rc, it.r = nil, nil
	return err
}

func (it *PointIterator) fail(err error) error {
	_ = it.closeCurrent()
	it.err = err
	return err
}
