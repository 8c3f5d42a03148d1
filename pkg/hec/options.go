package hec

import (
	"github.com/benbjohnson/clock"

	"github.com/bft-labs/hecship/pkg/log"
)

// Option configures optional behavior of a Client.
type Option func(*options)

// options holds the optional collaborators for a Client.
type options struct {
	transport  *Transport
	httpClient HTTPClient
	logger     log.Logger
	clk        clock.Clock
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clk:    clock.New(),
	}
}

// WithTransport shares an existing transport, and with it the
// connection pool, across clients. Takes precedence over WithHTTPClient.
func WithTransport(t *Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithHTTPClient sets a custom HTTP client for collector requests.
// If not provided, a pooled client derived from the Config is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the clock used for event timestamps and backoff waits.
// Intended for tests.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clk = clk
	}
}
