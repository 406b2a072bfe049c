package influx

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// LatestQuery selects the newest points of one field.
type LatestQuery struct {
	Measurement string
	Field       string
	// Range is a Flux range start: a negative duration ("-1h", "-30d12h"),
	// an RFC3339 time, or "0".
	Range string
	Limit int
}

// Record is one returned point. Tags holds every non-underscore column
// except result and table.
type Record struct {
	Time  time.Time
	Value any
	Tags  map[string]string
}

// TagString renders tags as "k1=v1, k2=v2" sorted by key.
func (r Record) TagString() string {
	keys := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+r.Tags[k])
	}
	return strings.Join(parts, ", ")
}

const latestFlux = `from(bucket: params.bucket)
  |> range(start: %s)
  |> filter(fn: (r) => r._measurement == params.measurement)
  |> filter(fn: (r) => r._field == params.field)
  |> sort(columns: ["_time"], desc: true)
  |> limit(n: %d)`

type latestParams struct {
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
	Field       string `json:"field"`
}

var durationRE = regexp.MustCompile(`^-?(\d+(ns|us|µs|ms|s|m|h|d|w|mo|y))+$`)

// rangeStart validates a range start before it is spliced into Flux.
func rangeStart(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "0" || durationRE.MatchString(s) {
		return s, nil
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return s, nil
	}
	return "", fmt.Errorf("influx: invalid range start %q", s)
}

// QueryLatest returns up to q.Limit points of q.Field, newest first.
func (c *Client) QueryLatest(ctx context.Context, q LatestQuery) ([]Record, error) {
	start, err := rangeStart(q.Range)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("influx: limit must be > 0, got %d", q.Limit)
	}

	flux := fmt.Sprintf(latestFlux, start, q.Limit)
	res, err := c.query.QueryWithParams(ctx, flux, latestParams{
		Bucket:      c.conn.Bucket,
		Measurement: q.Measurement,
		Field:       q.Field,
	})
	if err != nil {
		return nil, fmt.Errorf("influx: query %s.%s: %w", q.Measurement, q.Field, err)
	}
	defer res.Close()

	var out []Record
	for res.Next() {
		rec := res.Record()
		r := Record{Time: rec.Time(), Value: rec.Value(), Tags: map[string]string{}}
		for k, v := range rec.Values() {
			if strings.HasPrefix(k, "_") || k == "result" || k == "table" {
				continue
			}
			r.Tags[k] = fmt.Sprint(v)
		}
		out = append(out, r)
	}
	if err := res.Err(); err != nil {
		return out, fmt.Errorf("influx: read %s.%s: %w", q.Measurement, q.Field, err)
	}
	return out, nil
}
