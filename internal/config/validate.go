package config

import (
	"fmt"
	"net/url"
	"strings"

	"influxload/internal/datasource/file"
	"influxload/internal/ingest"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is the flag name the
// finding refers to.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be returned as one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static checks over c without mutating it. Callers
// decide whether warnings are fatal; the binaries only stop on errors.
func Validate(c *Config) []Issue {
	issues := append([]Issue(nil), c.loadIssues...)
	issues = append(issues, validateConn(c)...)

	switch c.Tool {
	case Ingest:
		issues = append(issues, validateIngest(c)...)
		issues = append(issues, validateMetrics(c)...)
	case WriteSample:
		if strings.TrimSpace(c.Host) == "" {
			issues = append(issues, errorAt("host", "host tag must not be empty"))
		}
	case ReadSample:
		if len(c.Fields()) == 0 {
			issues = append(issues, errorAt("field", "at least one field is required"))
		}
		if c.Limit <= 0 {
			issues = append(issues, errorAt("limit", fmt.Sprintf("limit=%d; must be > 0", c.Limit)))
		}
		if strings.TrimSpace(c.Range) == "" {
			issues = append(issues, errorAt("range", "range must not be empty"))
		}
	}
	return issues
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

func errorAt(path, msg string) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: msg}
}

func warningAt(path, msg string) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: msg}
}

func validateConn(c *Config) []Issue {
	var issues []Issue

	u, err := url.Parse(c.URL)
	switch {
	case err != nil:
		issues = append(issues, errorAt("url", fmt.Sprintf("invalid url: %v", err)))
	case u.Scheme != "http" && u.Scheme != "https":
		issues = append(issues, errorAt("url", fmt.Sprintf("url scheme %q; want http or https", u.Scheme)))
	case u.Host == "":
		issues = append(issues, errorAt("url", "url has no host"))
	}
	if strings.TrimSpace(c.Org) == "" {
		issues = append(issues, errorAt("org", "org must not be empty"))
	}
	if strings.TrimSpace(c.Bucket) == "" {
		issues = append(issues, errorAt("bucket", "bucket must not be empty"))
	}
	if strings.TrimSpace(c.Token) == "" {
		issues = append(issues, warningAt("token", "token is empty; the server will likely reject requests"))
	}
	if strings.TrimSpace(c.Measurement) == "" {
		issues = append(issues, errorAt("measurement", "measurement must not be empty"))
	}
	if c.Timeout <= 0 {
		issues = append(issues, errorAt("timeout", fmt.Sprintf("timeout=%s; must be > 0", c.Timeout)))
	}
	return issues
}

func validateIngest(c *Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.CSVDir) == "" {
		issues = append(issues, errorAt("csv-dir", "csv-dir must not be empty"))
	}
	if c.BatchSize <= 0 {
		issues = append(issues, errorAt("batch-size", fmt.Sprintf("batch-size=%d; must be > 0", c.BatchSize)))
	}

	rule, err := ingest.ResolveTimezone(c.Timezone)
	if err != nil {
		issues = append(issues, errorAt("timezone", err.Error()))
	} else if _, err := ingest.NewNormalizer(c.TimestampFormat, rule); err != nil {
		issues = append(issues, errorAt("timestamp-format", err.Error()))
	}

	if _, err := c.Comma(); err != nil {
		issues = append(issues, errorAt("delimiter", err.Error()))
	}
	if _, err := file.Opener(c.Encoding); err != nil {
		issues = append(issues, errorAt("encoding", err.Error()))
	}
	if c.DryRun && c.SkipTypeLookup {
		issues = append(issues, warningAt("skip-type-lookup", "redundant with -dry-run, which never queries the server"))
	}
	return issues
}

func validateMetrics(c *Config) []Issue {
	switch strings.ToLower(c.MetricsBackend) {
	case "", "none":
		return nil
	case "prompush":
		if strings.TrimSpace(c.PushgatewayURL) == "" {
			return []Issue{errorAt("pushgateway-url", "prompush backend requires a pushgateway url")}
		}
	case "datadog":
		if strings.TrimSpace(c.DogstatsdAddr) == "" {
			return []Issue{errorAt("dogstatsd-addr", "datadog backend requires a dogstatsd address")}
		}
	default:
		return []Issue{errorAt("metrics-backend", fmt.Sprintf("unknown metrics backend %q; want none, prompush or datadog", c.MetricsBackend))}
	}
	return nil
}
