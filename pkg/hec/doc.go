// Package hec is a batching client for Splunk and Cribl HTTP event
// collectors.
//
// Events are JSON objects accumulated into a byte-budgeted batch and
// shipped as one newline-delimited POST to /services/collector/event.
// Failed deliveries are retried with exponential backoff; a batch whose
// retries are exhausted is discarded, never requeued, so the client can
// always accept the next event.
//
// # Usage
//
// Create a client, add events, and close it when done:
//
//	cfg := hec.DefaultConfig()
//	cfg.Token = "11111111-2222-3333-4444-555555555555"
//	cfg.Server = "splunk.example.com"
//
//	client, err := hec.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Add(ctx, hec.Event{"event": "user logged in", "source": "auth"})
//
// Add flushes automatically when the batch is full; call Flush to force
// delivery and observe the outcome, and Metrics for running counters.
//
// # Delivery guarantees
//
// The client is at-most-once: a batch that exhausts its retries is
// dropped and accounted in Snapshot.Errored. Callers that need stronger
// guarantees must difference Metrics snapshots and re-source events
// from their own records.
//
// # Version
//
// Current version: 0.1.0
// Minimum compatible version: 0.1.0
//
// See version.go for version constants that can be used programmatically.
package hec
