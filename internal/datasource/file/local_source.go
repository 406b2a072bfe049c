// Package file implements the local filesystem input of the ingester: CSV
// discovery in a directory and charset-aware opening of each file.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// ErrNoInputFiles is returned by LocateCSV when the directory holds no
// matching files.
var ErrNoInputFiles = errors.New("no CSV files found")

// LocateCSV returns the *.csv files directly inside dir, sorted by name.
func LocateCSV(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputFiles, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Local is a filesystem data source that opens one file from the local disk,
// optionally transcoding it to UTF-8.
type Local struct {
	path string
	enc  encoding.Encoding
}

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The file is read as UTF-8.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the path the source was created with.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading.
//
// If the context is already canceled Open returns the context error without
// touching the filesystem. Filesystem errors are wrapped with the path and
// remain matchable with errors.Is (e.g. os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	if l.enc == nil {
		return f, nil
	}
	return &decodedFile{
		Reader: transform.NewReader(f, l.enc.NewDecoder()),
		Closer: f,
	}, nil
}

type decodedFile struct {
	io.Reader
	io.Closer
}

// Opener returns a function that opens paths as Local sources decoded from
// the named charset ("utf-8", "windows-1252", "iso-8859-2", ...). An empty
// name means UTF-8.
func Opener(charset string) (func(ctx context.Context, path string) (io.ReadCloser, error), error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, path string) (io.ReadCloser, error) {
		return (&Local{path: path, enc: enc}).Open(ctx)
	}, nil
}

// lookupEncoding resolves a WHATWG encoding label. UTF-8 maps to nil so that
// the common case skips the transform reader entirely.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}
