package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	healthTimeout  = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Option customises Connect.
type Option func(*Client)

// WithErrorHandler receives batch write failures, each wrapping
// ErrWriteFailed. Without one they are dropped silently.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Client) { c.onError = fn }
}

// Client queues lifecycle points for batched, non-blocking delivery.
//
// WritePoint never waits on the network; the library flushes when a batch
// fills or the flush interval passes. Safe for concurrent use.
type Client struct {
	influx   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string

	open    atomic.Bool
	queued  atomic.Uint64
	onError func(error)
}

// Connect checks the server's health endpoint and prepares the write API
// for cfg.Org and cfg.Bucket. It returns ErrDisabled when metrics are off.
func Connect(cfg config.InfluxDBConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	size, interval := batching(cfg)
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(size).
			SetFlushInterval(uint(interval.Milliseconds())),
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := checkHealth(ctx, influx); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		influx:   influx,
		writeAPI: influx.WriteAPI(cfg.Org, cfg.Bucket),
		bucket:   cfg.Bucket,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.open.Store(true)

	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

// batching resolves the batch size and flush interval, replacing
// non-positive settings with defaults.
func batching(cfg config.InfluxDBConfig) (uint, time.Duration) {
	size, interval := uint(defaultBatchSize), defaultFlushInterval
	if cfg.BatchSize > 0 {
		size = uint(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		interval = time.Duration(cfg.FlushInterval) * time.Second
	}
	return size, interval
}

func checkHealth(ctx context.Context, influx influxdb2.Client) error {
	health, err := influx.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != domain.HealthCheckStatusPass {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("%w: status %s %s", ErrUnhealthy, health.Status, msg)
	}
	return nil
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		if c.onError != nil {
			c.onError(fmt.Errorf("%w: bucket %s: %w", ErrWriteFailed, c.bucket, err))
		}
	}
}

// WritePoint queues p for the next batch. It returns ErrNotConnected once
// the client is closed.
func (c *Client) WritePoint(p *write.Point) error {
	if !c.open.Load() {
		return ErrNotConnected
	}
	c.writeAPI.WritePoint(p)
	c.queued.Add(1)
	return nil
}

// Queued returns how many points were accepted since Connect.
func (c *Client) Queued() uint64 {
	return c.queued.Load()
}

// Flush sends pending points now. It is a no-op on a closed client.
func (c *Client) Flush() {
	if c.open.Load() {
		c.writeAPI.Flush()
	}
}

// HealthCheck queries the server's health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := checkHealth(ctx, c.influx); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open.
func (c *Client) IsConnected() bool {
	return c.open.Load()
}

// Close flushes pending points and releases the client. Closing twice,
// or closing a zero Client, is a no-op.
func (c *Client) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.influx.Close()
	return nil
}
