// Package config centralizes the settings of the influxload binaries. All
// tunables come from command-line flags with environment-variable fallbacks,
// optionally seeded by a YAML file. Flags are defined first so that `-help`
// lists every knob with its effective default.
//
// Precedence, lowest to highest:
//  1. Built-in defaults.
//  2. Values from the YAML file named by -config or INFLUX_CONFIG.
//  3. Environment variables.
//  4. Explicit CLI flags.
//
// For tests, LoadFromArgs keeps everything hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(config.Ingest, fs, getenv, []string{"-batch-size=2"})
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"influxload/internal/influx"
	"influxload/internal/ingest"
	csvparser "influxload/internal/parser/csv"
)

// Tool selects which binary's flags are registered.
type Tool int

const (
	Ingest Tool = iota
	WriteSample
	ReadSample
)

func (t Tool) String() string {
	switch t {
	case WriteSample:
		return "writesample"
	case ReadSample:
		return "readsample"
	default:
		return "ingest"
	}
}

// ConfigFileEnv names the YAML file when -config is not given.
const ConfigFileEnv = "INFLUX_CONFIG"

// Config holds every setting of one process. Fields that do not apply to the
// running Tool keep their zero value and are omitted from the YAML dump.
type Config struct {
	Tool Tool `yaml:"-"`

	// InfluxDB connection.
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Org         string        `yaml:"org"`
	Bucket      string        `yaml:"bucket"`
	Timeout     time.Duration `yaml:"timeout"`
	Measurement string        `yaml:"measurement"`

	// CSV ingestion.
	CSVDir          string `yaml:"csv_dir,omitempty"`
	TimestampFormat string `yaml:"timestamp_format,omitempty"`
	Timezone        string `yaml:"timezone,omitempty"`
	BatchSize       int    `yaml:"batch_size,omitempty"`
	Delimiter       string `yaml:"delimiter,omitempty"`
	Encoding        string `yaml:"encoding,omitempty"`
	LazyQuotes      bool   `yaml:"lazy_quotes,omitempty"`
	SkipLog         string `yaml:"skip_log,omitempty"`
	DryRun          bool   `yaml:"dry_run,omitempty"`
	SkipTypeLookup  bool   `yaml:"skip_type_lookup,omitempty"`

	// Metrics.
	MetricsBackend string `yaml:"metrics_backend,omitempty"`
	PushgatewayURL string `yaml:"pushgateway_url,omitempty"`
	DogstatsdAddr  string `yaml:"dogstatsd_addr,omitempty"`

	// Sample tools.
	Host  string `yaml:"host,omitempty"`
	Field string `yaml:"field,omitempty"`
	Range string `yaml:"range,omitempty"`
	Limit int    `yaml:"limit,omitempty"`

	Verbose      bool   `yaml:"verbose"`
	ValidateOnly bool   `yaml:"-"`
	PrintConfig  bool   `yaml:"-"`
	ConfigFile   string `yaml:"-"`

	// loadIssues collects env or file values that could not be parsed.
	loadIssues []Issue
}

// LoadFromArgs builds a Config for tool by defining flags on fs, seeding each
// default from getenv (then the YAML file), and parsing args. fs should use
// flag.ContinueOnError so parse failures surface as errors.
func LoadFromArgs(tool Tool, fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{Tool: tool}

	path := configPath(args, getenv)
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	// lookup returns the env value, else the file value, else "".
	lookup := func(env, key string) string {
		if v := getenv(env); v != "" {
			return v
		}
		if file != nil && file.IsSet(key) {
			return file.GetString(key)
		}
		return ""
	}
	str := func(p *string, name, env, def, usage string) {
		v := lookup(env, flagKey(name))
		if v == "" {
			v = def
		}
		fs.StringVar(p, name, v, usage)
	}
	integer := func(p *int, name, env string, def int, usage string) {
		v := def
		if s := lookup(env, flagKey(name)); s != "" {
			if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				v = i
			} else {
				cfg.warnLoad(name, fmt.Sprintf("%s=%q is not an integer; using %d", env, s, def))
			}
		}
		fs.IntVar(p, name, v, usage)
	}
	boolean := func(p *bool, name, env string, def bool, usage string) {
		v := def
		if s := strings.ToLower(strings.TrimSpace(lookup(env, flagKey(name)))); s != "" {
			switch s {
			case "1", "true", "yes", "on":
				v = true
			case "0", "false", "no", "off":
				v = false
			default:
				cfg.warnLoad(name, fmt.Sprintf("%s=%q is not a boolean; using %v", env, s, def))
			}
		}
		fs.BoolVar(p, name, v, usage)
	}
	duration := func(p *time.Duration, name, env string, def time.Duration, usage string) {
		v := def
		if s := lookup(env, flagKey(name)); s != "" {
			if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
				v = d
			} else {
				cfg.warnLoad(name, fmt.Sprintf("%s=%q is not a duration; using %s", env, s, def))
			}
		}
		fs.DurationVar(p, name, v, usage)
	}

	// Connection, shared by every tool.
	str(&cfg.URL, "url", "INFLUX_URL", "http://localhost:8086", "InfluxDB base URL")
	str(&cfg.Token, "token", "INFLUX_TOKEN", "demo-token", "InfluxDB API token")
	str(&cfg.Org, "org", "INFLUX_ORG", "demo-org", "InfluxDB organization")
	str(&cfg.Bucket, "bucket", "INFLUX_BUCKET", "demo-bucket", "InfluxDB bucket")
	duration(&cfg.Timeout, "timeout", "INFLUX_TIMEOUT", influx.DefaultTimeout, "HTTP request timeout")
	boolean(&cfg.Verbose, "v", "INFLUX_VERBOSE", false, "verbose logging")
	fs.StringVar(&cfg.ConfigFile, "config", path, "optional YAML file with default settings")
	fs.BoolVar(&cfg.ValidateOnly, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&cfg.PrintConfig, "print-config", false, "print the effective configuration as YAML and exit")

	switch tool {
	case Ingest:
		str(&cfg.Measurement, "measurement", "INFLUX_MEASUREMENT", "experiment_opc", "measurement name")
		str(&cfg.CSVDir, "csv-dir", "OPC_CSV_DIR", "data/experiment_opc_log", "directory with *.csv input files")
		str(&cfg.TimestampFormat, "timestamp-format", "OPC_TIMESTAMP_FORMAT", ingest.DefaultTimestampFormat, "strftime pattern of the timestamp column")
		str(&cfg.Timezone, "timezone", "OPC_TIMEZONE", "UTC", "zone of zone-less timestamps: NAIVE, UTC, +02:00 or an IANA name")
		integer(&cfg.BatchSize, "batch-size", "OPC_BATCH_SIZE", 500, "points per write request")
		str(&cfg.Delimiter, "delimiter", "OPC_CSV_DELIMITER", ",", `CSV field delimiter (use "\t" or "tab" for tabs)`)
		str(&cfg.Encoding, "encoding", "OPC_CSV_ENCODING", "utf-8", "charset of the CSV files")
		boolean(&cfg.LazyQuotes, "lazy-quotes", "OPC_CSV_LAZY_QUOTES", false, "tolerate bare quotes in CSV fields")
		str(&cfg.SkipLog, "skip-log", "OPC_SKIP_LOG", "", "optional CSV file listing every skipped field value")
		boolean(&cfg.DryRun, "dry-run", "OPC_DRY_RUN", false, "print line protocol to stdout instead of writing")
		boolean(&cfg.SkipTypeLookup, "skip-type-lookup", "OPC_SKIP_TYPE_LOOKUP", false, "do not query stored field types")
		str(&cfg.MetricsBackend, "metrics-backend", "METRICS_BACKEND", "none", "metrics backend: none, prompush or datadog")
		str(&cfg.PushgatewayURL, "pushgateway-url", "PUSHGATEWAY_URL", "http://localhost:9091", "Prometheus Pushgateway URL")
		str(&cfg.DogstatsdAddr, "dogstatsd-addr", "DOGSTATSD_ADDR", "127.0.0.1:8125", "DogStatsD address")
	case WriteSample:
		str(&cfg.Measurement, "measurement", "INFLUX_MEASUREMENT", "cpu", "measurement name")
		str(&cfg.Host, "host", "INFLUX_HOST", "server01", "value of the host tag")
	case ReadSample:
		str(&cfg.Measurement, "measurement", "INFLUX_MEASUREMENT", "cpu", "measurement name")
		str(&cfg.Field, "field", "INFLUX_FIELD", "usage_user", "field to read; a comma separated list reads several")
		str(&cfg.Range, "range", "INFLUX_RANGE", "-1h", "Flux range start, e.g. -1h or an RFC3339 time")
		integer(&cfg.Limit, "limit", "INFLUX_LIMIT", 10, "maximum points per field")
	}

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is the production entry point: flag.CommandLine, os.Getenv and
// os.Args[1:].
func Load(tool Tool) (*Config, error) {
	return LoadFromArgs(tool, flag.CommandLine, os.Getenv, os.Args[1:])
}

func (c *Config) warnLoad(name, msg string) {
	c.loadIssues = append(c.loadIssues, Issue{Severity: SeverityWarning, Path: name, Message: msg})
}

// flagKey maps a flag name to its YAML key: "csv-dir" -> "csv_dir".
func flagKey(name string) string {
	if name == "v" {
		return "verbose"
	}
	return strings.ReplaceAll(name, "-", "_")
}

// configPath finds -config in args before the flag set is parsed, falling
// back to ConfigFileEnv.
func configPath(args []string, getenv func(string) string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return getenv(ConfigFileEnv)
}

// readFile loads the YAML file at path with viper. An empty path yields nil.
func readFile(path string) (*viper.Viper, error) {
	if path == "" {
		return nil, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return v, nil
}

// Comma decodes Delimiter into a single rune. "\t" and "tab" select a tab;
// an empty value selects ','.
func (c *Config) Comma() (rune, error) {
	switch strings.ToLower(c.Delimiter) {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(c.Delimiter)
	if r == utf8.RuneError || size != len(c.Delimiter) {
		return 0, fmt.Errorf("delimiter %q must be a single character", c.Delimiter)
	}
	if r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("delimiter %q is not allowed", c.Delimiter)
	}
	return r, nil
}

// Fields splits Field on commas, dropping blanks.
func (c *Config) Fields() []string {
	var out []string
	for _, f := range strings.Split(c.Field, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Conn returns the InfluxDB connection settings.
func (c *Config) Conn() influx.Conn {
	return influx.Conn{
		URL:     c.URL,
		Token:   c.Token,
		Org:     c.Org,
		Bucket:  c.Bucket,
		Timeout: c.Timeout,
		Verbose: c.Verbose,
	}
}

// RunConfig returns the ingestion settings. Call Validate first; an invalid
// delimiter is reported here too.
func (c *Config) RunConfig() (ingest.RunConfig, error) {
	comma, err := c.Comma()
	if err != nil {
		return ingest.RunConfig{}, err
	}
	return ingest.RunConfig{
		Dir:             c.CSVDir,
		Measurement:     c.Measurement,
		TimestampFormat: c.TimestampFormat,
		Timezone:        c.Timezone,
		BatchSize:       c.BatchSize,
		CSV:             csvparser.Options{Comma: comma, LazyQuotes: c.LazyQuotes},
		Verbose:         c.Verbose,
	}, nil
}

// redacted replaces a non-empty token in YAML dumps.
const redacted = "********"

// YAML renders the effective configuration with the token redacted.
func (c *Config) YAML() ([]byte, error) {
	cp := *c
	if cp.Token != "" {
		cp.Token = redacted
	}
	cp.loadIssues = nil
	b, err := yaml.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("config: render yaml: %w", err)
	}
	return b, nil
}
