package skiplog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	return rows
}

// TestOpen_CreatesDirFileAndHeader verifies missing parents are created and
// the header is written even when nothing is skipped.
func TestOpen_CreatesDirFileAndHeader(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skipped", "opc.csv")
	l, err := Open(target)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readCSV(t, target)
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 row (header), got %d: %#v", len(rows), rows)
	}
	if !reflect.DeepEqual(rows[0], Header) {
		t.Fatalf("header mismatch\ngot : %#v\nwant: %#v", rows[0], Header)
	}
}

// TestAdd_WritesRowsAndCounts checks row content, quoting of raw values and
// per-field counts.
func TestAdd_WritesRowsAndCounts(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skips.csv")
	l, err := Open(target)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	l.Add("/data/run1.csv", 3, "status", "ok")
	l.Add("/data/run1.csv", 7, "status", "n/a, pending")
	l.Add("/data/run2.csv", 1, "alarm", "maybe")

	if got := l.Count("status"); got != 2 {
		t.Fatalf("Count(status)=%d; want 2", got)
	}
	if got := l.Count("missing"); got != 0 {
		t.Fatalf("Count(missing)=%d; want 0", got)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := [][]string{
		Header,
		{"run1.csv", "3", "status", "ok"},
		{"run1.csv", "7", "status", "n/a, pending"},
		{"run2.csv", "1", "alarm", "maybe"},
	}
	if got := readCSV(t, target); !reflect.DeepEqual(got, want) {
		t.Fatalf("rows mismatch\ngot : %#v\nwant: %#v", got, want)
	}
}

func TestOpen_BadPath(t *testing.T) {
	t.Parallel()

	// A regular file cannot be used as a parent directory.
	parent := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(parent, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(filepath.Join(parent, "skips.csv")); err == nil {
		t.Fatal("Open under a regular file: error = nil; want error")
	}
}
