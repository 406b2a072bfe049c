package ingest

import (
	"context"
	"fmt"
	"io"
	"log"

	"influxload/internal/datasource/file"
	"influxload/internal/metrics"
	csvparser "influxload/internal/parser/csv"
)

// TypeFetcher returns the stored field types of a measurement. It must not
// fail; lookups that go wrong return an empty table.
type TypeFetcher interface {
	FetchFieldTypes(ctx context.Context, measurement string) TypeTable
}

// RunConfig holds the settings of one ingestion run.
type RunConfig struct {
	Dir             string
	Measurement     string
	TimestampFormat string
	Timezone        string
	BatchSize       int
	CSV             csvparser.Options
	Verbose         bool
}

// Deps are the collaborators of Run. Writer is required. Open defaults to
// UTF-8 local files, Locate to file.LocateCSV. A nil Types skips the stored
// type lookup.
type Deps struct {
	Locate func(dir string) ([]string, error)
	Open   OpenFunc
	Types  TypeFetcher
	Writer BatchWriter
	Skips  SkipRecorder
}

// Summary is what a successful run reports.
type Summary struct {
	Points  int
	Batches int
	Files   int
	Stats   *Stats
	Types   TypeTable
}

// Line renders the one-line run summary.
func (s Summary) Line(bucket, org, url string) string {
	plural := "s"
	if s.Files == 1 {
		plural = ""
	}
	return fmt.Sprintf("Wrote %d points in %d batches from %d CSV file%s to bucket=%s org=%s at %s",
		s.Points, s.Batches, s.Files, plural, bucket, org, url)
}

// SkipLine renders the skipped field counts, or "" when nothing was skipped.
func (s Summary) SkipLine() string { return s.Stats.Line() }

// Run executes both phases: locate files, detect types, merge with stored
// types, then stream points into batches. The returned Summary is filled as
// far as the run got, also on error.
func Run(ctx context.Context, cfg RunConfig, deps Deps) (Summary, error) {
	rec := metrics.For("ingest")
	sum := Summary{Stats: NewStats()}

	if deps.Writer == nil {
		return sum, fmt.Errorf("ingest: batch writer must not be nil")
	}
	if deps.Locate == nil {
		deps.Locate = file.LocateCSV
	}
	if deps.Open == nil {
		deps.Open = func(ctx context.Context, path string) (io.ReadCloser, error) {
			return file.NewLocal(path).Open(ctx)
		}
	}

	rule, err := ResolveTimezone(cfg.Timezone)
	if err != nil {
		return sum, err
	}
	norm, err := NewNormalizer(cfg.TimestampFormat, rule)
	if err != nil {
		return sum, err
	}
	if cfg.BatchSize <= 0 {
		return sum, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, cfg.BatchSize)
	}

	files, err := deps.Locate(cfg.Dir)
	if err != nil {
		return sum, err
	}
	sum.Files = len(files)
	log.Printf("ingest: files=%d dir=%s measurement=%s tz=%s format=%q batch_size=%d",
		len(files), cfg.Dir, cfg.Measurement, rule, norm.Format(), cfg.BatchSize)

	// Phase 1.
	var detected TypeTable
	err = rec.Timed("detect", func() (err error) {
		detected, err = DetectTypes(ctx, files, deps.Open, cfg.CSV)
		return err
	})
	if err != nil {
		return sum, err
	}

	existing := TypeTable{}
	if deps.Types != nil {
		_ = rec.Timed("fetch_types", func() error {
			existing = deps.Types.FetchFieldTypes(ctx, cfg.Measurement)
			return nil
		})
	}
	sum.Types = Reconcile(detected, existing)
	if cfg.Verbose {
		log.Printf("ingest: detected %s", detected)
		log.Printf("ingest: stored %s", existing)
		for _, f := range detected.Fields() {
			if st, ok := existing[f]; ok && st != detected[f] {
				log.Printf("ingest: field %s detected as %s, using stored type %s", f, detected[f], st)
			}
		}
	}

	// Phase 2.
	it := NewPointIterator(ctx, files, deps.Open, cfg.CSV, &Converter{
		Measurement: cfg.Measurement,
		Types:       sum.Types,
		Normalizer:  norm,
		Stats:       sum.Stats,
		Skips:       deps.Skips,
	})
	defer it.Close()

	err = rec.Timed("write", func() (err error) {
		sum.Points, sum.Batches, err = WriteBatches(ctx, it, cfg.BatchSize, deps.Writer)
		return err
	})
	rec.Points(metrics.KindWritten, sum.Points)
	rec.Points(metrics.KindSkippedFields, sum.Stats.Total())
	rec.Points(metrics.KindSkippedRows, sum.Stats.SkippedRows())
	rec.Batches(sum.Batches)
	if err != nil {
		return sum, err
	}
	if cfg.Verbose && sum.Stats.SkippedRows() > 0 {
		log.Printf("ingest: rows dropped without timestamp or fields=%d", sum.Stats.SkippedRows())
	}
	return sum, nil
}
