// Package csv reads delimited experiment exports row by row.
//
// Every file starts with a header row; the header names become field names
// and one of them is expected to be "timestamp". Rows are returned one at a
// time so that callers can stream arbitrarily large files while only holding
// the current record in memory.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// utf8BOM is dropped from the first header cell; spreadsheet exports on
// Windows prepend it.
const utf8BOM = "\uFEFF"

// ErrNoHeader is returned by NewReader when the input has no header row.
var ErrNoHeader = errors.New("csv: missing header row")

// Options tunes the underlying encoding/csv reader. Zero values select the
// defaults used by experiment exports.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// LazyQuotes relaxes quote handling for sloppy exporters.
	LazyQuotes bool
}

// Row is one data line of a file, addressed by header name.
//
// Line is the 1-based data row number (the header row is not counted), which
// is what users see when they open the file and count records.
type Row struct {
	File   string
	Line   int
	Header []string
	Values []string
}

// Get returns the raw cell for column name. The second result is false when
// the header has no such column or the row is too short to contain it.
func (r Row) Get(name string) (string, bool) {
	for i, h := range r.Header {
		if h != name {
			continue
		}
		if i >= len(r.Values) {
			return "", false
		}
		return r.Values[i], true
	}
	return "", false
}

// Reader yields Rows from a single delimited file.
type Reader struct {
	cr     *csv.Reader
	file   string
	header []string
	line   int
}

// NewReader reads the header from r and returns a Reader positioned at the
// first data row. file is only used to label rows and errors.
func NewReader(r io.Reader, file string, opt Options) (*Reader, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1 // tolerant; short rows read as missing cells

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", file, ErrNoHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", file, err)
	}

	header := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		header[i] = strings.TrimSpace(h)
	}

	return &Reader{cr: cr, file: file, header: header}, nil
}

// Header returns the trimmed header names in file order.
func (r *Reader) Header() []string { return r.header }

// Next returns the next data row or io.EOF after the last one.
func (r *Reader) Next() (Row, error) {
	rec, err := r.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		return Row{}, fmt.Errorf("%s: row %d: %w", r.file, r.line+1, err)
	}
	r.line++

	// ReuseRecord is off, so rec is ours to keep.
	return Row{
		File:   r.file,
		Line:   r.line,
		Header: r.header,
		Values: rec,
	}, nil
}
