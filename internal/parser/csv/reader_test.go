package csv

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// readAll drains r and returns every row.
func readAll(t *testing.T, r *Reader) []Row {
	t.Helper()
	var out []Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, row)
	}
}

// TestNewReader_HeaderBOMAndTrim verifies the BOM is stripped from the first
// header cell and header names are trimmed.
func TestNewReader_HeaderBOMAndTrim(t *testing.T) {
	t.Parallel()

	in := "\uFEFFtimestamp , temp,alarm\n2024-01-01 00:00:00,21.5,true\n"
	r, err := NewReader(strings.NewReader(in), "a.csv", Options{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	want := []string{"timestamp", "temp", "alarm"}
	got := r.Header()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("header=%q; want %q", got, want)
	}
}

// TestReader_RowsAndLineNumbers checks 1-based data row numbering and Get.
func TestReader_RowsAndLineNumbers(t *testing.T) {
	t.Parallel()

	in := "timestamp,temp\n" +
		"2024-01-01 00:00:00,21.5\n" +
		",22.0\n" +
		"2024-01-01 00:00:02,\n"
	r, err := NewReader(strings.NewReader(in), "a.csv", Options{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	rows := readAll(t, r)
	if len(rows) != 3 {
		t.Fatalf("rows=%d; want 3", len(rows))
	}
	for i, row := range rows {
		if row.Line != i+1 {
			t.Fatalf("rows[%d].Line=%d; want %d", i, row.Line, i+1)
		}
		if row.File != "a.csv" {
			t.Fatalf("rows[%d].File=%q; want a.csv", i, row.File)
		}
	}
	if v, ok := rows[0].Get("temp"); !ok || v != "21.5" {
		t.Fatalf("Get(temp)=%q,%v; want 21.5,true", v, ok)
	}
	if v, ok := rows[1].Get("timestamp"); !ok || v != "" {
		t.Fatalf("Get(timestamp)=%q,%v; want empty,true", v, ok)
	}
	if _, ok := rows[0].Get("missing"); ok {
		t.Fatal("Get(missing) ok=true; want false")
	}
}

// TestReader_ShortRowsAndDelimiter covers variable width rows and a custom
// delimiter.
func TestReader_ShortRowsAndDelimiter(t *testing.T) {
	t.Parallel()

	in := "timestamp;a;b\n2024-01-01 00:00:00;1\n2024-01-01 00:00:01;1;2;3\n"
	r, err := NewReader(strings.NewReader(in), "semi.csv", Options{Comma: ';'})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	rows := readAll(t, r)
	if len(rows) != 2 {
		t.Fatalf("rows=%d; want 2", len(rows))
	}
	if _, ok := rows[0].Get("b"); ok {
		t.Fatal("short row: Get(b) ok=true; want false")
	}
	if v, ok := rows[1].Get("b"); !ok || v != "2" {
		t.Fatalf("long row: Get(b)=%q,%v; want 2,true", v, ok)
	}
}

// TestNewReader_Empty returns ErrNoHeader for empty input.
func TestNewReader_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewReader(strings.NewReader(""), "empty.csv", Options{})
	if !errors.Is(err, ErrNoHeader) {
		t.Fatalf("err=%v; want ErrNoHeader", err)
	}
	if !strings.Contains(err.Error(), "empty.csv") {
		t.Fatalf("err=%q; want file name in message", err)
	}
}
