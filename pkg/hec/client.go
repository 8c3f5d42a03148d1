package hec

import (
	"context"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/hecship/pkg/log"
)

// Collector endpoints.
const (
	eventPath  = "/services/collector/event"
	healthPath = "/services/collector/health"
)

// authScheme prefixes the token in the Authorization header.
const authScheme = "Splunk"

// Client batches events and ships them to an HTTP event collector.
//
// A Client is not safe for concurrent use; callers that share one
// across goroutines must serialize access themselves. Metrics is the
// exception and may be called from any goroutine.
type Client struct {
	cfg        Config
	transport  *Transport
	dispatcher *dispatcher
	clk        clock.Clock
	logger     log.Logger

	headers   http.Header
	healthURL string

	buf    batch
	closed bool
}

// New builds a Client from cfg. Token and Server are required; optional
// fields left at zero take their documented defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.transport
	if transport == nil {
		if o.httpClient != nil {
			transport = NewTransportWithClient(o.httpClient)
		} else {
			transport = NewTransport(cfg)
		}
	}

	headers := make(http.Header)
	headers.Set("Authorization", authScheme+" "+cfg.Token)
	headers.Set("Content-Type", "application/json")

	c := &Client{
		cfg:       cfg,
		transport: transport,
		clk:       o.clk,
		logger:    o.logger,
		headers:   headers,
		healthURL: cfg.baseURL() + healthPath,
	}
	c.dispatcher = &dispatcher{
		transport: transport,
		policy:    newRetryPolicy(cfg.MaxRetries, cfg.BackoffFactor, cfg.RetryStatuses),
		metrics:   &counters{},
		clk:       o.clk,
		logger:    o.logger,
		url:       cfg.baseURL() + eventPath,
		headers:   headers,
		compress:  cfg.Gzip,
	}
	return c, nil
}

// Add enriches e, serializes it, and appends it to the batch. When the
// serialized event would push the batch past its byte budget, buffered
// events are flushed first; delivery failures from that implicit flush
// are reported through metrics and the logger, never as a return value.
// Add returns an error only for an event that cannot be serialized, a
// closed client, or an interrupted flush.
//
// An event larger than the budget by itself is still appended after the
// flush and ships as a single-event batch.
func (c *Client) Add(ctx context.Context, e Event) error {
	return c.add(ctx, e, time.Time{})
}

// AddAt is Add with an explicit event time, which overrides any "time"
// key already present on the event.
func (c *Client) AddAt(ctx context.Context, e Event, at time.Time) error {
	return c.add(ctx, e, at)
}

func (c *Client) add(ctx context.Context, e Event, at time.Time) error {
	if c.closed {
		return ErrClosed
	}

	enrichEvent(e, c.cfg.Host, c.cfg.Index, at, c.clk)
	s, err := serializeEvent(e)
	if err != nil {
		return err
	}

	if c.buf.wouldExceed(len(s), c.cfg.MaxBatchBytes) {
		if err := c.dispatcher.flush(ctx, &c.buf); err != nil && !isDeliveryFailure(err) {
			return err
		}
	}

	c.buf.add(s)
	return nil
}

// Flush delivers all buffered events now. Unlike the implicit flush in
// Add, delivery failures are returned: a *StatusError when the
// collector rejected the batch, a *RetryExhaustedError when every
// attempt failed. The batch is empty when Flush returns, whatever the
// outcome. Flushing an empty batch is a no-op.
func (c *Client) Flush(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	return c.dispatcher.flush(ctx, &c.buf)
}

// Close flushes buffered events and releases pooled connections,
// returning the outcome of that final flush. Close is idempotent;
// operations after it return ErrClosed.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.dispatcher.flush(context.Background(), &c.buf)
	c.transport.CloseIdle()
	return err
}

// Metrics returns a snapshot of the delivery counters.
func (c *Client) Metrics() Snapshot {
	return c.dispatcher.metrics.snapshot()
}

// Healthy checks the collector health endpoint: nil when it answers
// 200, a *StatusError for any other status, a *TransportError when the
// request never completed. Health checks do not advance the delivery
// counters.
func (c *Client) Healthy(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	resp, err := c.transport.Get(ctx, c.healthURL, c.headers)
	if err != nil {
		return &TransportError{Err: err}
	}
	body := readBody(resp)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: body}
	}
	return nil
}
