// Package influx is the InfluxDB 2.x side of the ingester: it writes batches
// of ingest.Datapoint as line protocol and runs the Flux queries used for
// stored field types and for reading recent points back.
package influx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"influxload/internal/ingest"
)

// DefaultTimeout is the HTTP request timeout when none is configured.
const DefaultTimeout = 10 * time.Second

// Conn describes one InfluxDB endpoint and target bucket.
type Conn struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
	Verbose bool
}

// Client wraps an influxdb2 client bound to one org and bucket.
type Client struct {
	conn   Conn
	client influxdb2.Client
	write  api.WriteAPIBlocking
	query  api.QueryAPI
}

// New validates conn and creates a client. No request is made.
func New(conn Conn) (*Client, error) {
	u, err := url.Parse(conn.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("influx: invalid url %q", conn.URL)
	}
	if conn.Org == "" || conn.Bucket == "" {
		return nil, errors.New("influx: org and bucket are required")
	}
	if conn.Timeout <= 0 {
		conn.Timeout = DefaultTimeout
	}
	secs := uint(conn.Timeout.Round(time.Second) / time.Second)
	if secs == 0 {
		secs = 1
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(secs).
		SetApplicationName("influxload")
	if !conn.Verbose {
		opts.SetLogLevel(0)
	}
	c := influxdb2.NewClientWithOptions(conn.URL, conn.Token, opts)
	return &Client{
		conn:   conn,
		client: c,
		write:  c.WriteAPIBlocking(conn.Org, conn.Bucket),
		query:  c.QueryAPI(conn.Org),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() { c.client.Close() }

// Ping checks that the server answers. Authentication is not verified.
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx: ping %s: %w", c.conn.URL, err)
	}
	if !ok {
		return fmt.Errorf("influx: ping %s: server not ready", c.conn.URL)
	}
	return nil
}

// WriteBatch encodes points and sends them in a single write request. The
// whole batch is rejected locally if any point fails to encode.
func (c *Client) WriteBatch(ctx context.Context, points []*ingest.Datapoint) error {
	lines, err := EncodeLines(points)
	if err != nil {
		return err
	}
	if err := c.write.WriteRecord(ctx, lines...); err != nil {
		return fmt.Errorf("influx: write %d points to %s: %w", len(lines), c.conn.Bucket, err)
	}
	if c.conn.Verbose {
		log.Printf("influx: wrote %d points bucket=%s org=%s", len(lines), c.conn.Bucket, c.conn.Org)
	}
	return nil
}
