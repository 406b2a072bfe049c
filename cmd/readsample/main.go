// Command readsample prints the latest points of one or more fields of a
// measurement. Several fields (-field=a,b) are queried concurrently and
// printed in the order given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"influxload/internal/config"
	"influxload/internal/influx"
)

// maxParallelQueries bounds the field fan-out.
const maxParallelQueries = 4

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("readsample", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.LoadFromArgs(config.ReadSample, fs, getenv, args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "readsample: %v\n", err)
		return 1
	}
	if cfg.PrintConfig {
		b, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(stderr, "readsample: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(b)
		return 0
	}
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "readsample: configuration is invalid")
		return 1
	}
	if cfg.ValidateOnly {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	client, err := influx.New(cfg.Conn())
	if err != nil {
		fmt.Fprintf(stderr, "readsample: %v\n", err)
		return 1
	}
	defer client.Close()

	fields := cfg.Fields()
	results := make([][]influx.Record, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelQueries)
	for i, field := range fields {
		i, field := i, field
		g.Go(func() error {
			recs, err := client.QueryLatest(gctx, influx.LatestQuery{
				Measurement: cfg.Measurement,
				Field:       field,
				Range:       cfg.Range,
				Limit:       cfg.Limit,
			})
			results[i] = recs
			return err
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(stderr, "readsample: %v\n", err)
		return 1
	}

	for i, field := range fields {
		printRecords(stdout, cfg, field, results[i])
	}
	return 0
}

func printRecords(w io.Writer, cfg *config.Config, field string, recs []influx.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No data points found.")
		return
	}
	fmt.Fprintf(w, "Latest %d points for measurement=%s field=%s in bucket=%s (org=%s)\n",
		len(recs), cfg.Measurement, field, cfg.Bucket, cfg.Org)
	for _, r := range recs {
		tags := r.TagString()
		if tags != "" {
			tags = " " + tags
		}
		fmt.Fprintf(w, "%s value=%v%s\n", r.Time.Format(time.RFC3339Nano), r.Value, tags)
	}
}
