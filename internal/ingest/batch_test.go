package ingest

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

// sliceSource yields a fixed list of points, then err (io.EOF by default).
type sliceSource struct {
	points []*Datapoint
	err    error
	i      int
}

func (s *sliceSource) Next() (*Datapoint, error) {
	if s.i < len(s.points) {
		p := s.points[s.i]
		s.i++
		return p, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	return nil, io.EOF
}

func makePoints(n int) []*Datapoint {
	out := make([]*Datapoint, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = &Datapoint{Measurement: "m", Time: base.Add(time.Duration(i) * time.Second), Fields: map[string]any{"x": float64(i)}}
	}
	return out
}

type recordingWriter struct {
	sizes  []int
	seen   []*Datapoint
	failAt int // 1-based batch number; 0 never fails
}

func (w *recordingWriter) WriteBatch(_ context.Context, pts []*Datapoint) error {
	if w.failAt == len(w.sizes)+1 {
		return errors.New("write refused")
	}
	w.sizes = append(w.sizes, len(pts))
	w.seen = append(w.seen, pts...)
	return nil
}

func TestWriteBatches_Sizes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		n, size   int
		wantSizes []int
	}{
		{"5 by 2", 5, 2, []int{2, 2, 1}},
		{"exact multiple", 4, 2, []int{2, 2}},
		{"single batch", 3, 500, []int{3}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"empty", 0, 2, nil},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			src := &sliceSource{points: makePoints(c.n)}
			w := &recordingWriter{}
			points, batches, err := WriteBatches(context.Background(), src, c.size, w)
			if err != nil {
				t.Fatalf("WriteBatches: %v", err)
			}
			if points != c.n || batches != len(c.wantSizes) {
				t.Fatalf("points=%d batches=%d; want %d/%d", points, batches, c.n, len(c.wantSizes))
			}
			if len(w.sizes) != len(c.wantSizes) {
				t.Fatalf("sizes=%v; want %v", w.sizes, c.wantSizes)
			}
			for i := range w.sizes {
				if w.sizes[i] != c.wantSizes[i] {
					t.Fatalf("sizes=%v; want %v", w.sizes, c.wantSizes)
				}
			}
			for i, p := range w.seen {
				if p.Fields["x"] != float64(i) {
					t.Fatalf("point %d out of order: %v", i, p.Fields)
				}
			}
		})
	}
}

// TestWriteBatches_SummaryLine covers the five-point, size-two scenario end
// to end through Summary.Line.
func TestWriteBatches_SummaryLine(t *testing.T) {
	t.Parallel()

	points, batches, err := WriteBatches(context.Background(), &sliceSource{points: makePoints(5)}, 2, &recordingWriter{})
	if err != nil {
		t.Fatalf("WriteBatches: %v", err)
	}
	s := Summary{Points: points, Batches: batches, Files: 1, Stats: NewStats()}
	want := "Wrote 5 points in 3 batches from 1 CSV file to bucket=b org=o at http://localhost:8086"
	if got := s.Line("b", "o", "http://localhost:8086"); got != want {
		t.Fatalf("Line=%q; want %q", got, want)
	}
	s.Files = 2
	if got := s.Line("b", "o", "u"); got != "Wrote 5 points in 3 batches from 2 CSV files to bucket=b org=o at u" {
		t.Fatalf("plural Line=%q", got)
	}
}

func TestWriteBatches_Errors(t *testing.T) {
	t.Parallel()

	if _, _, err := WriteBatches(context.Background(), &sliceSource{}, 0, &recordingWriter{}); !errors.Is(err, ErrInvalidBatchSize) {
		t.Fatalf("size 0 err=%v; want ErrInvalidBatchSize", err)
	}

	// Writer fails on the second batch; the first stays counted.
	w := &recordingWriter{failAt: 2}
	points, batches, err := WriteBatches(context.Background(), &sliceSource{points: makePoints(5)}, 2, w)
	if err == nil {
		t.Fatal("err=nil; want write error")
	}
	if points != 2 || batches != 1 {
		t.Fatalf("points=%d batches=%d; want 2/1", points, batches)
	}

	// Source fails mid-batch: the partial batch is not written.
	boom := errors.New("bad row")
	w = &recordingWriter{}
	points, batches, err = WriteBatches(context.Background(), &sliceSource{points: makePoints(3), err: boom}, 2, w)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v; want source error", err)
	}
	if points != 2 || batches != 1 || len(w.seen) != 2 {
		t.Fatalf("points=%d batches=%d seen=%d; want 2/1/2", points, batches, len(w.seen))
	}
}

func TestWriteBatches_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &recordingWriter{}
	_, batches, err := WriteBatches(ctx, &sliceSource{points: makePoints(3)}, 2, w)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v; want context.Canceled", err)
	}
	if batches != 0 || len(w.sizes) != 0 {
		t.Fatalf("batches=%d writes=%d; want none after cancel", batches, len(w.sizes))
	}
}

func TestBatchWriterFunc(t *testing.T) {
	t.Parallel()

	var got int
	w := BatchWriterFunc(func(_ context.Context, pts []*Datapoint) error {
		got += len(pts)
		return nil
	})
	if _, _, err := WriteBatches(context.Background(), &sliceSource{points: makePoints(3)}, 2, w); err != nil {
		t.Fatalf("WriteBatches: %v", err)
	}
	if got != 3 {
		t.Fatalf("got=%d; want 3", got)
	}
}
