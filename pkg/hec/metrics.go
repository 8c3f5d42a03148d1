package hec

import "sync/atomic"

// counters tracks delivery outcomes for the lifetime of a client.
type counters struct {
	sent    atomic.Int64
	retried atomic.Int64
	errored atomic.Int64
}

func (c *counters) snapshot() Snapshot {
	return Snapshot{
		Sent:    c.sent.Load(),
		Retried: c.retried.Load(),
		Errored: c.errored.Load(),
	}
}

// Snapshot is a point-in-time view of the client's delivery counters.
// All counters are monotonic; callers can difference two snapshots to
// observe the outcome of the operations between them.
type Snapshot struct {
	// Sent is the total number of events delivered in successful batches.
	Sent int64

	// Retried is the number of backoff-and-retry transitions taken.
	Retried int64

	// Errored is the number of batches that ended in a terminal failure.
	Errored int64
}
