// Command ingest loads every *.csv file of a directory into one InfluxDB
// measurement. Field types are inferred from the data, merged with the
// types already stored for the measurement, and rows are written in
// fixed-size batches.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"influxload/internal/config"
	"influxload/internal/datasource/file"
	"influxload/internal/influx"
	"influxload/internal/ingest"
	"influxload/internal/metrics"
	"influxload/internal/metrics/datadog"
	"influxload/internal/metrics/prompush"
	"influxload/internal/skiplog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without process globals; it returns the exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.LoadFromArgs(config.Ingest, fs, getenv, args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "ingest: %v\n", err)
		return 1
	}

	if cfg.PrintConfig {
		b, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(stderr, "ingest: %v\n", err)
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
		fmt.Fprintln(stderr, "ingest: configuration is invalid")
		return 1
	}
	if cfg.ValidateOnly {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	flush := setupMetrics(cfg)
	defer flush()

	if err := ingestAll(ctx, cfg, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "ingest: %v\n", err)
		return 1
	}
	return 0
}

func ingestAll(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	start := time.Now()

	rc, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	open, err := file.Opener(cfg.Encoding)
	if err != nil {
		return err
	}
	deps := ingest.Deps{Open: open}

	if cfg.SkipLog != "" {
		sl, err := skiplog.Open(cfg.SkipLog)
		if err != nil {
			return err
		}
		defer func() {
			if err := sl.Close(); err != nil {
				log.Printf("ingest: skip log: %v", err)
			}
		}()
		deps.Skips = sl
	}

	// Dry runs print line protocol on stdout, so the summary goes to stderr.
	report := stdout
	if cfg.DryRun {
		deps.Writer = influx.LineWriter{W: stdout}
		report = stderr
	} else {
		client, err := influx.New(cfg.Conn())
		if err != nil {
			return err
		}
		defer client.Close()
		if cfg.Verbose {
			if err := client.Ping(ctx); err != nil {
				log.Printf("influx: ping %s failed: %v", cfg.URL, err)
			}
		}
		deps.Writer = client
		if !cfg.SkipTypeLookup {
			deps.Types = client
		}
	}

	sum, err := ingest.Run(ctx, rc, deps)
	if err != nil {
		if sum.Points > 0 {
			log.Printf("ingest: %d points in %d batches were written before the failure", sum.Points, sum.Batches)
		}
		return err
	}

	fmt.Fprintln(report, sum.Line(cfg.Bucket, cfg.Org, cfg.URL))
	if line := sum.SkipLine(); line != "" {
		fmt.Fprintln(report, line)
	}
	if cfg.Verbose {
		log.Printf("ingest: completed in %s types=%s", time.Since(start).Truncate(time.Millisecond), sum.Types)
	}
	return nil
}

// setupMetrics installs the configured backend and returns its flush func.
// Backend failures only disable metrics.
func setupMetrics(cfg *config.Config) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch strings.ToLower(cfg.MetricsBackend) {
	case "prompush":
		b, err = prompush.NewBackend("influxload_ingest", cfg.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.DogstatsdAddr,
			GlobalTags: []string{"measurement:" + cfg.Measurement},
		})
	default:
		if cfg.Verbose {
			log.Printf("metrics: disabled (backend=%q)", cfg.MetricsBackend)
		}
		return func() {}
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", cfg.MetricsBackend, err)
		return func() {}
	}
	log.Printf("metrics: backend=%s", cfg.MetricsBackend)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}
