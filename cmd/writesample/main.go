// Command writesample writes one random CPU usage point to InfluxDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"influxload/internal/config"
	"influxload/internal/influx"
	"influxload/internal/ingest"
)

// usageField is the single field of the sample point.
const usageField = "usage_user"

var (
	now    = time.Now
	sample = func() float64 { return rand.Float64() * 100 }
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("writesample", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.LoadFromArgs(config.WriteSample, fs, getenv, args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "writesample: %v\n", err)
		return 1
	}
	if cfg.PrintConfig {
		b, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(stderr, "writesample: %v\n", err)
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
		fmt.Fprintln(stderr, "writesample: configuration is invalid")
		return 1
	}
	if cfg.ValidateOnly {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	client, err := influx.New(cfg.Conn())
	if err != nil {
		fmt.Fprintf(stderr, "writesample: %v\n", err)
		return 1
	}
	defer client.Close()

	usage := sample()
	p := &ingest.Datapoint{
		Measurement: cfg.Measurement,
		Tags:        map[string]string{"host": cfg.Host},
		Time:        now().UTC(),
		Fields:      map[string]any{usageField: usage},
	}
	if err := client.WriteBatch(ctx, []*ingest.Datapoint{p}); err != nil {
		fmt.Fprintf(stderr, "writesample: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote point measurement=%s host=%s %s=%.2f to %s (org=%s) at %s\n",
		cfg.Measurement, cfg.Host, usageField, usage, cfg.Bucket, cfg.Org, cfg.URL)
	return 0
}
