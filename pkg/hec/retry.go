package hec

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/bft-labs/hecship/pkg/log"
)

// retryPolicy decides which failures are retried and how long to wait
// between attempts.
type retryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffFactor scales the exponential wait, in seconds.
	BackoffFactor float64

	statuses map[int]bool
}

func newRetryPolicy(maxRetries int, factor float64, statuses []int) retryPolicy {
	set := make(map[int]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return retryPolicy{MaxRetries: maxRetries, BackoffFactor: factor, statuses: set}
}

// retryable reports whether status calls for another attempt.
func (p retryPolicy) retryable(status int) bool {
	return p.statuses[status]
}

// delay returns the wait taken after a failed attempt, before attempt+1.
// The sequence is BackoffFactor * 2^attempt seconds, with no jitter.
func (p retryPolicy) delay(attempt int) time.Duration {
	return time.Duration(p.BackoffFactor * math.Pow(2, float64(attempt)) * float64(time.Second))
}

// dispatcher delivers batch bodies to the collector, retrying per policy
// and keeping the outcome counters.
type dispatcher struct {
	transport *Transport
	policy    retryPolicy
	metrics   *counters
	clk       clock.Clock
	logger    log.Logger

	url      string
	headers  http.Header
	compress bool
}

// flush delivers the buffered events as one newline-delimited body.
// Every return is a terminal outcome for the batch: it is cleared
// whether delivery succeeded, failed, or was interrupted. Callers that
// must not lose events have to re-source them; the dispatcher never
// keeps a failed payload.
func (d *dispatcher) flush(ctx context.Context, b *batch) error {
	if b.empty() {
		return nil
	}
	defer b.reset()

	body := b.body()
	count := b.size()

	headers := d.headers
	if d.compress {
		gz, err := gzipBody(body)
		if err != nil {
			d.metrics.errored.Add(1)
			return fmt.Errorf("hec: compress batch: %w", err)
		}
		body = gz
		headers = headers.Clone()
		headers.Set("Content-Encoding", "gzip")
	}

	attempts := d.policy.MaxRetries + 1
	var last error

	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := d.transport.Send(ctx, d.url, body, headers)
		if err != nil {
			if ctx.Err() != nil {
				d.metrics.errored.Add(1)
				return fmt.Errorf("hec: flush interrupted: %w", ctx.Err())
			}
			last = &TransportError{Err: err}
			if attempt == d.policy.MaxRetries {
				break
			}
			delay := d.policy.delay(attempt)
			d.metrics.retried.Add(1)
			d.logger.Warn("collector request failed",
				log.Err(err),
				log.Duration("wait", delay),
				log.Int("attempt", attempt+1),
				log.Int("attempts", attempts))
			if err := d.sleep(ctx, delay); err != nil {
				d.metrics.errored.Add(1)
				return err
			}
			continue
		}

		status := resp.StatusCode
		respBody := readBody(resp)

		if status == http.StatusOK {
			d.metrics.sent.Add(int64(count))
			d.logger.Debug("batch delivered",
				log.Int("events", count),
				log.Int("bytes", len(body)))
			return nil
		}

		if d.policy.retryable(status) {
			last = &StatusError{Code: status, Body: respBody, Retryable: true}
			if attempt == d.policy.MaxRetries {
				break
			}
			delay := d.policy.delay(attempt)
			d.metrics.retried.Add(1)
			d.logger.Warn("collector returned retryable status",
				log.Int("status", status),
				log.Duration("wait", delay),
				log.Int("attempt", attempt+1),
				log.Int("attempts", attempts))
			if err := d.sleep(ctx, delay); err != nil {
				d.metrics.errored.Add(1)
				return err
			}
			continue
		}

		d.metrics.errored.Add(1)
		d.logger.Error("collector rejected batch",
			log.Int("status", status),
			log.String("body", respBody),
			log.Int("events", count))
		return &StatusError{Code: status, Body: respBody}
	}

	d.metrics.errored.Add(1)
	d.logger.Error("batch discarded after exhausting retries",
		log.Int("attempts", attempts),
		log.Int("events", count),
		log.Err(last))
	return &RetryExhaustedError{Attempts: attempts, Last: last}
}

// sleep waits for delay, honoring cancellation.
func (d *dispatcher) sleep(ctx context.Context, delay time.Duration) error {
	t := d.clk.Timer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("hec: backoff interrupted: %w", ctx.Err())
	}
}
