package influx

import (
	"context"
	"log"
	"time"

	"influxload/internal/ingest"
)

// fieldTypesFlux returns the newest value of every series of a measurement.
// The value's Go type after CSV decoding tells the stored field type.
const fieldTypesFlux = `from(bucket: params.bucket)
  |> range(start: 0)
  |> filter(fn: (r) => r._measurement == params.measurement)
  |> last()
  |> keep(columns: ["_time", "_field", "_value"])`

type fieldTypesParams struct {
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
}

// FetchFieldTypes returns the type of the most recent stored value of each
// field of measurement. It never fails: any error yields an empty table and
// is only logged in verbose mode.
func (c *Client) FetchFieldTypes(ctx context.Context, measurement string) ingest.TypeTable {
	out := ingest.TypeTable{}
	res, err := c.query.QueryWithParams(ctx, fieldTypesFlux, fieldTypesParams{
		Bucket:      c.conn.Bucket,
		Measurement: measurement,
	})
	if err != nil {
		c.debugf("influx: field type lookup for %s failed: %v", measurement, err)
		return ingest.TypeTable{}
	}
	defer res.Close()

	newest := make(map[string]time.Time)
	for res.Next() {
		rec := res.Record()
		t, ok := typeOfValue(rec.Value())
		if !ok {
			continue
		}
		field := rec.Field()
		if seen, dup := newest[field]; dup && rec.Time().Before(seen) {
			continue
		}
		newest[field] = rec.Time()
		out[field] = t
	}
	if err := res.Err(); err != nil {
		c.debugf("influx: field type lookup for %s failed: %v", measurement, err)
		return ingest.TypeTable{}
	}
	c.debugf("influx: stored field types for %s: %s", measurement, out)
	return out
}

// typeOfValue maps a decoded Flux value to a field type. Integers map to
// float since numeric columns are always written as floats.
func typeOfValue(v any) (ingest.FieldType, bool) {
	switch v.(type) {
	case float64, int64, uint64:
		return ingest.FieldFloat, true
	case bool:
		return ingest.FieldBoolean, true
	case string:
		return ingest.FieldString, true
	}
	return ingest.FieldString, false
}

func (c *Client) debugf(format string, args ...any) {
	if c.conn.Verbose {
		log.Printf(format, args...)
	}
}
