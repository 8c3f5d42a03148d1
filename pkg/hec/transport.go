package hec

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// HTTPClient abstracts HTTP request execution for testing and custom
// transports. The standard *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// Transport owns the HTTP client used for deliveries. The default
// transport keeps its own connection pool, never consults proxy
// settings from the environment, and bounds every attempt with a fixed
// timeout. A single Transport may back several clients.
type Transport struct {
	client HTTPClient
}

// NewTransport builds a pooled transport from cfg.
func NewTransport(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &http.Transport{
		Proxy:               nil,
		MaxIdleConns:        cfg.PoolConnections,
		MaxIdleConnsPerHost: cfg.PoolMaxSize,
		MaxConnsPerHost:     cfg.PoolMaxSize,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}
	return &Transport{client: &http.Client{Transport: t, Timeout: cfg.Timeout}}
}

// NewTransportWithClient wraps a caller-provided HTTP client.
func NewTransportWithClient(client HTTPClient) *Transport {
	return &Transport{client: client}
}

// Send posts body to url with the given headers.
func (t *Transport) Send(ctx context.Context, url string, body []byte, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if headers != nil {
		req.Header = headers.Clone()
	}
	return t.client.Do(req)
}

// Get issues a GET to url with the given headers.
func (t *Transport) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		req.Header = headers.Clone()
	}
	return t.client.Do(req)
}

// CloseIdle releases pooled connections. Injected clients that expose no
// idle-connection control are left untouched.
func (t *Transport) CloseIdle() {
	if c, ok := t.client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}

// maxDiagnosticBody caps how much of an error response is kept.
const maxDiagnosticBody = 4 << 10

// readBody drains and closes resp.Body so the connection can return to
// the pool, keeping at most maxDiagnosticBody bytes of it.
func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBody))
	_, _ = io.Copy(io.Discard, resp.Body)
	return strings.TrimSpace(string(b))
}

// gzipBody compresses body at BestSpeed. Callers compress once per flush
// and reuse the result across retry attempts.
func gzipBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(body); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
