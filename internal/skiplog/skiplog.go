// Package skiplog writes every tracked coercion skip to a CSV file so that
// rejected cells can be inspected after a run.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Header is the first row of every skip log.
var Header = []string{"file", "row", "field", "raw"}

// Log appends skipped cells to a CSV file.
type Log struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	counts map[string]int
}

// Open creates path (and any missing parent directory) and writes the header.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("skiplog: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("skiplog: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("skiplog: write header: %w", err)
	}
	return &Log{f: f, w: w, counts: make(map[string]int)}, nil
}

// Add records one skipped cell. Write errors surface from Close.
func (l *Log) Add(file string, row int, field, raw string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[field]++
	_ = l.w.Write([]string{filepath.Base(file), strconv.Itoa(row), field, raw})
}

// Count returns how many cells were logged for field.
func (l *Log) Count(field string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[field]
}

// Close flushes buffered rows and closes the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	if werr != nil {
		return fmt.Errorf("skiplog: flush: %w", werr)
	}
	return cerr
}
