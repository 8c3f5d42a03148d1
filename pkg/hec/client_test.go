package hec

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// testServerConfig points a default config at ts over plain HTTP.
func testServerConfig(t *testing.T, ts *httptest.Server) Config {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split test server host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse test server port: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Token = "test-token"
	cfg.Server = host
	cfg.Port = port
	cfg.UseTLS = false
	cfg.Host = "test-host"
	return cfg
}

// recordingServer collects request bodies and answers statuses in order,
// repeating the last one.
type recordingServer struct {
	mu       sync.Mutex
	bodies   []string
	statuses []int
}

func (s *recordingServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request body: %v", err)
		}
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		n := len(s.bodies)
		status := http.StatusOK
		if len(s.statuses) > 0 {
			if n <= len(s.statuses) {
				status = s.statuses[n-1]
			} else {
				status = s.statuses[len(s.statuses)-1]
			}
		}
		s.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (s *recordingServer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func (s *recordingServer) body(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[i]
}

func TestAddFlushesBeforeExceedingBudget(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	ctx := context.Background()

	// Fully specified events so enrichment does not change their size.
	ev := func(id string) Event {
		return Event{"event": id, "host": "h", "time": "1"}
	}
	s1, err := serializeEvent(ev("a"))
	if err != nil {
		t.Fatal(err)
	}
	s2, err := serializeEvent(ev("b"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := testServerConfig(t, ts)
	cfg.MaxBatchBytes = len(s1) + len(s2)

	client, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Add(ctx, ev("a")); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := client.Add(ctx, ev("b")); err != nil {
		t.Fatalf("Add b: %v", err)
	}
	if got := srv.calls(); got != 0 {
		t.Fatalf("calls after filling budget = %d, want 0", got)
	}

	// The third event would exceed the budget, flushing the first two.
	if err := client.Add(ctx, ev("c")); err != nil {
		t.Fatalf("Add c: %v", err)
	}
	if got := srv.calls(); got != 1 {
		t.Fatalf("calls after overflow = %d, want 1", got)
	}
	want := s1 + "\n" + s2
	if got := srv.body(0); got != want {
		t.Errorf("first body = %q, want %q", got, want)
	}
	if strings.HasSuffix(srv.body(0), "\n") {
		t.Errorf("body has trailing newline")
	}

	if err := client.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := srv.calls(); got != 2 {
		t.Fatalf("calls after flush = %d, want 2", got)
	}

	m := client.Metrics()
	if m.Sent != 3 || m.Retried != 0 || m.Errored != 0 {
		t.Errorf("metrics = %+v, want sent=3 retried=0 errored=0", m)
	}
}

func TestAddAcceptsOversizedEvent(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	cfg := testServerConfig(t, ts)
	cfg.MaxBatchBytes = 10

	client, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	e := Event{"event": strings.Repeat("x", 100), "host": "h", "time": "1"}
	if err := client.Add(ctx, e); err != nil {
		t.Fatalf("Add oversized: %v", err)
	}
	// Buffer was empty, so nothing was flushed yet.
	if got := srv.calls(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
	if err := client.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := srv.calls(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if m := client.Metrics(); m.Sent != 1 {
		t.Errorf("sent = %d, want 1", m.Sent)
	}
}

func TestAddSwallowsDeliveryFailures(t *testing.T) {
	srv := &recordingServer{statuses: []int{http.StatusBadRequest}}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	cfg := testServerConfig(t, ts)
	cfg.MaxBatchBytes = 1

	client, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Add(ctx, Event{"event": "a"}); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	// Triggers an implicit flush that the collector rejects. Add must
	// stay silent about it.
	if err := client.Add(ctx, Event{"event": "b"}); err != nil {
		t.Fatalf("Add b after failed implicit flush: %v", err)
	}
	if got := srv.calls(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	m := client.Metrics()
	if m.Errored != 1 || m.Sent != 0 {
		t.Errorf("metrics = %+v, want errored=1 sent=0", m)
	}
}

func TestFlushReturnsStatusError(t *testing.T) {
	srv := &recordingServer{statuses: []int{http.StatusForbidden}}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	client, err := New(testServerConfig(t, ts))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Add(ctx, Event{"event": "a"}); err != nil {
		t.Fatal(err)
	}

	err = client.Flush(ctx)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Flush error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusForbidden {
		t.Errorf("Code = %d, want %d", statusErr.Code, http.StatusForbidden)
	}
	if statusErr.Retryable {
		t.Errorf("Retryable = true, want false")
	}

	// The batch was discarded; a second flush must not resend it.
	if err := client.Flush(ctx); err != nil {
		t.Fatalf("Flush of empty batch: %v", err)
	}
	if got := srv.calls(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestFlushEmptyBatchSendsNothing(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	client, err := New(testServerConfig(t, ts))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := srv.calls(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

func TestRequestHeaders(t *testing.T) {
	done := make(chan struct{}, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Splunk test-token" {
			t.Errorf("Authorization = %q, want %q", got, "Splunk test-token")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/services/collector/event" {
			t.Errorf("path = %s, want /services/collector/event", r.URL.Path)
		}
		done <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := New(testServerConfig(t, ts))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Add(ctx, Event{"event": "a"}); err != nil {
		t.Fatal(err)
	}
	if err := client.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case <-done:
	default:
		t.Fatal("no request reached the server")
	}
}

func TestGzipRequestBody(t *testing.T) {
	decoded := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Encoding"); got != "gzip" {
			t.Errorf("Content-Encoding = %q, want gzip", got)
		}
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Errorf("gzip reader: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, err := io.ReadAll(gz)
		if err != nil {
			t.Errorf("gunzip body: %v", err)
		}
		decoded <- string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := testServerConfig(t, ts)
	cfg.Gzip = true

	client, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	e := Event{"event": "compressed", "host": "h", "time": "1"}
	want, err := serializeEvent(Event{"event": "compressed", "host": "h", "time": "1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := client.Add(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := client.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	select {
	case got := <-decoded:
		if got != want {
			t.Errorf("decoded body = %q, want %q", got, want)
		}
	default:
		t.Fatal("no request reached the server")
	}
	if m := client.Metrics(); m.Sent != 1 {
		t.Errorf("sent = %d, want 1", m.Sent)
	}
}

func TestAddSerializationError(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	client, err := New(testServerConfig(t, ts))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	err = client.Add(ctx, Event{"event": make(chan int)})
	var serErr *SerializationError
	if !errors.As(err, &serErr) {
		t.Fatalf("Add error = %v, want *SerializationError", err)
	}

	// The bad event must not linger in the batch.
	if err := client.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := srv.calls(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
	if m := client.Metrics(); m != (Snapshot{}) {
		t.Errorf("metrics = %+v, want zero", m)
	}
}

func TestCloseFlushesAndRejectsFurtherUse(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	client, err := New(testServerConfig(t, ts))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := client.Add(ctx, Event{"event": "final"}); err != nil {
		t.Fatal(err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := srv.calls(); got != 1 {
		t.Fatalf("calls after Close = %d, want 1", got)
	}

	if err := client.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if err := client.Add(ctx, Event{"event": "late"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Add after Close = %v, want ErrClosed", err)
	}
	if err := client.Flush(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after Close = %v, want ErrClosed", err)
	}
}

func TestHealthy(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/services/collector/health" {
			t.Errorf("path = %s, want /services/collector/health", r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer ts.Close()

	client, err := New(testServerConfig(t, ts))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.Healthy(ctx); err != nil {
		t.Errorf("Healthy = %v, want nil", err)
	}

	status.Store(http.StatusServiceUnavailable)
	err = client.Healthy(ctx)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Healthy error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want 503", statusErr.Code)
	}

	// Health probes never advance delivery counters.
	if m := client.Metrics(); m != (Snapshot{}) {
		t.Errorf("metrics = %+v, want zero", m)
	}
}

func TestHealthyTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cfg := testServerConfig(t, ts)
	ts.Close()

	client, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	err = client.Healthy(context.Background())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Healthy error = %v, want *TransportError", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing token", Config{Server: "collector.example.com"}},
		{"missing server", Config{Token: "t"}},
		{"bad server", Config{Token: "t", Server: "not a host name"}},
		{"negative retries", Config{Token: "t", Server: "collector.example.com", MaxRetries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New(%+v) = %v, want ErrInvalidConfig", tt.cfg, err)
			}
		})
	}
}

func TestSharedTransport(t *testing.T) {
	srv := &recordingServer{}
	ts := httptest.NewServer(srv.handler(t))
	defer ts.Close()

	cfg := testServerConfig(t, ts)
	shared := NewTransport(cfg)

	a, err := New(cfg, WithTransport(shared))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := New(cfg, WithTransport(shared))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := a.Add(ctx, Event{"event": "from a"}); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(ctx, Event{"event": "from b"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := srv.calls(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}

	// Counters stay per client.
	if m := a.Metrics(); m.Sent != 1 {
		t.Errorf("a sent = %d, want 1", m.Sent)
	}
	if m := b.Metrics(); m.Sent != 1 {
		t.Errorf("b sent = %d, want 1", m.Sent)
	}
}
