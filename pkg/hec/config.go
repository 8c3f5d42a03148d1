package hec

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/asaskevich/govalidator"
)

// Defaults used by DefaultConfig and applied by New for unset fields.
const (
	DefaultPort            = 8088
	DefaultMaxBatchBytes   = 1 << 20
	DefaultMaxRetries      = 3
	DefaultBackoffFactor   = 1.0
	DefaultPoolConnections = 10
	DefaultPoolMaxSize     = 10
	DefaultTimeout         = 30 * time.Second
)

// DefaultRetryStatuses is the set of HTTP statuses that trigger a retry.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Config holds the collector connection and batching settings.
//
// Token and Server are required. Start from DefaultConfig to get the
// documented defaults. New fills fields whose zero value is not
// meaningful (port, batch budget, pool sizes, timeout, retry statuses);
// MaxRetries and BackoffFactor keep their zero values, which mean "no
// retries" and "no wait".
type Config struct {
	// Token is the collector token, sent as "Authorization: Splunk <token>".
	Token string

	// Server is the collector hostname or IP address.
	Server string

	// Port is the collector TCP port. Defaults to 8088.
	Port int

	// UseTLS selects https when true, plain http otherwise.
	// DefaultConfig enables it.
	UseTLS bool

	// InsecureSkipVerify disables certificate verification on TLS
	// connections.
	InsecureSkipVerify bool

	// MaxBatchBytes is the batch byte budget. An event whose serialized
	// size would push the running total past this triggers a flush
	// before it is appended. Defaults to 1 MiB.
	MaxBatchBytes int

	// Index is assigned to events that carry no "index" key. Empty
	// means no index field is added.
	Index string

	// Host is assigned to events that carry no "host" key. Defaults to
	// os.Hostname().
	Host string

	// MaxRetries is the number of delivery retries after the first
	// attempt. Zero disables retries. DefaultConfig sets 3.
	MaxRetries int

	// BackoffFactor scales the exponential retry wait, in seconds: the
	// wait before retry n+1 is BackoffFactor * 2^n. DefaultConfig sets 1.0.
	BackoffFactor float64

	// RetryStatuses overrides DefaultRetryStatuses when non-empty.
	RetryStatuses []int

	// PoolConnections caps idle connections kept by the default
	// transport. Defaults to 10.
	PoolConnections int

	// PoolMaxSize caps connections per collector host. Defaults to 10.
	PoolMaxSize int

	// Timeout bounds each delivery attempt, covering connection,
	// request, and response. Defaults to 30s.
	Timeout time.Duration

	// Gzip enables Content-Encoding: gzip request bodies. Off by
	// default.
	Gzip bool
}

// DefaultConfig returns a Config with every optional field set to its
// default. Token and Server must still be provided.
func DefaultConfig() Config {
	return Config{
		Port:            DefaultPort,
		UseTLS:          true,
		MaxBatchBytes:   DefaultMaxBatchBytes,
		MaxRetries:      DefaultMaxRetries,
		BackoffFactor:   DefaultBackoffFactor,
		PoolConnections: DefaultPoolConnections,
		PoolMaxSize:     DefaultPoolMaxSize,
		Timeout:         DefaultTimeout,
	}
}

// withDefaults fills unset fields. Bools keep their literal value.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.MaxBatchBytes == 0 {
		c.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if len(c.RetryStatuses) == 0 {
		c.RetryStatuses = DefaultRetryStatuses
	}
	if c.PoolConnections == 0 {
		c.PoolConnections = DefaultPoolConnections
	}
	if c.PoolMaxSize == 0 {
		c.PoolMaxSize = DefaultPoolMaxSize
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Host == "" {
		if name, err := os.Hostname(); err == nil {
			c.Host = name
		}
	}
	return c
}

func (c Config) validate() error {
	if c.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	if c.Server == "" {
		return fmt.Errorf("%w: server is required", ErrInvalidConfig)
	}
	if !govalidator.IsDNSName(c.Server) && !govalidator.IsIP(c.Server) {
		return fmt.Errorf("%w: server %q is not a hostname or IP", ErrInvalidConfig, c.Server)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.MaxBatchBytes < 1 {
		return fmt.Errorf("%w: max batch bytes must be positive", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	}
	if c.BackoffFactor < 0 {
		return fmt.Errorf("%w: backoff factor must not be negative", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// baseURL returns the collector origin, without a path.
func (c Config) baseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Server, c.Port)
}
