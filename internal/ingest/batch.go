package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"
)

// ErrInvalidBatchSize is returned by WriteBatches for a size below one.
var ErrInvalidBatchSize = errors.New("batch size must be > 0")

// BatchWriter persists one batch synchronously. The slice is owned by the
// writer once passed in.
type BatchWriter interface {
	WriteBatch(ctx context.Context, points []*Datapoint) error
}

// BatchWriterFunc adapts a function to BatchWriter.
type BatchWriterFunc func(ctx context.Context, points []*Datapoint) error

func (f BatchWriterFunc) WriteBatch(ctx context.Context, points []*Datapoint) error {
	return f(ctx, points)
}

// WriteBatches drains src into contiguous batches of exactly size points (the
// last one may be smaller) and hands each to w before reading further. It
// returns the number of points and batches w acknowledged. There is no retry;
// the first error stops the run and already written batches stay written.
func WriteBatches(ctx context.Context, src PointSource, size int, w BatchWriter) (points, batches int, err error) {
	if size <= 0 {
		return 0, 0, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, size)
	}
	if w == nil {
		return 0, 0, fmt.Errorf("batch writer must not be nil")
	}

	var (
		batch     = make([]*Datapoint, 0, size)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n := len(batch)
		if err := w.WriteBatch(ctx, batch); err != nil {
			log.Printf("loader: write failed batch=%d size=%d total_written=%d err=%v", batches+1, n, points, err)
			return fmt.Errorf("write batch %d: %w", batches+1, err)
		}
		points += n
		batches++

		now := time.Now()
		sinceLast := now.Sub(lastFlush)
		pps := float64(0)
		if sinceLast > 0 {
			pps = float64(n) / sinceLast.Seconds()
		}
		log.Printf(
			"batch #%d: pps=%.0f written=%d total_written=%d elapsed=%s since_last=%s",
			batches,
			pps,
			n,
			points,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlush = now

		// The writer owns the previous slice.
		batch = make([]*Datapoint, 0, size)
		return nil
	}

	for {
		p, err := src.Next()
		if errors.Is(err, io.EOF) {
			if err := flush(); err != nil {
				return points, batches, err
			}
			log.Printf("loader: input drained, batches=%d total_written=%d", batches, points)
			return points, batches, nil
		}
		if err != nil {
			return points, batches, err
		}
		batch = append(batch, p)
		if len(batch) >= size {
			if err := flush(); err != nil {
				return points, batches, err
			}
		}
	}
}
