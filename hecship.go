// Package hecship ships JSON events to an HTTP Event Collector.
//
// The client itself lives in pkg/hec; this package re-exports the
// pieces an embedding program needs and adds Run, which wires the
// spool watcher, the checkpoint store and the shipper together.
//
// Example usage:
//
//	cfg := hecship.DefaultConfig()
//	cfg.Token = "11111111-2222-3333-4444-555555555555"
//	cfg.Server = "hec.example.com"
//
//	client, err := hecship.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Add(ctx, hecship.Event{"event": "hello, world"})
//
// Programs that ship a spool directory instead of producing events
// themselves can hand the whole loop to Run:
//
//	err := hecship.Run(ctx, cfg, hecship.SpoolConfig{Dir: "/var/spool/hec"})
package hecship

import (
	"context"
	"time"

	"github.com/bft-labs/hecship/internal/shipper"
	"github.com/bft-labs/hecship/internal/spool"
	"github.com/bft-labs/hecship/pkg/checkpoint"
	"github.com/bft-labs/hecship/pkg/hec"
	"github.com/bft-labs/hecship/pkg/log"
)

// Event is the JSON payload of a single collector event.
type Event = hec.Event

// Config selects the collector endpoint and tunes batching and retries.
type Config = hec.Config

// Client batches events and delivers them to the collector.
type Client = hec.Client

// Snapshot holds the client's delivery counters.
type Snapshot = hec.Snapshot

// Option customizes a Client.
type Option = hec.Option

// DefaultConfig returns a Config with the collector defaults filled in.
func DefaultConfig() Config {
	return hec.DefaultConfig()
}

// New builds a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	return hec.New(cfg, opts...)
}

// WithLogger routes the client's logs to logger.
func WithLogger(logger log.Logger) Option {
	return hec.WithLogger(logger)
}

// SpoolConfig tells Run which directory to ship and how.
type SpoolConfig struct {
	// Dir is the watched spool directory.
	Dir string

	// StateDir holds the checkpoint file. Empty means Dir.
	StateDir string

	// Settle is how long a file must stay quiet before it ships.
	// Zero takes the watcher default.
	Settle time.Duration

	// Once ships the files already in Dir and returns instead of
	// watching for new ones.
	Once bool

	// Logger is shared by the watcher, the shipper and the client.
	// Nil discards logs.
	Logger log.Logger
}

// Run ships sp.Dir through a client built from cfg. Unless sp.Once is
// set it blocks until ctx is cancelled, then flushes pending events and
// closes the client. Shipped files are recorded in sp.StateDir so a
// restart does not resend them.
func Run(ctx context.Context, cfg Config, sp SpoolConfig, opts ...Option) error {
	logger := sp.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	} else {
		opts = append([]Option{hec.WithLogger(logger)}, opts...)
	}

	client, err := hec.New(cfg, opts...)
	if err != nil {
		return err
	}

	stateDir := sp.StateDir
	if stateDir == "" {
		stateDir = sp.Dir
	}
	ship := shipper.New(client, checkpoint.NewFileRepository(stateDir), logger)

	var runErr error
	if sp.Once {
		runErr = ship.ShipDir(ctx, sp.Dir)
	} else {
		runErr = watch(ctx, ship, sp, logger)
	}

	if err := client.Close(); runErr == nil {
		runErr = err
	}
	return runErr
}

// watch pumps settled spool files into ship until ctx ends.
func watch(ctx context.Context, ship *shipper.Shipper, sp SpoolConfig, logger log.Logger) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := spool.NewWatcher(sp.Dir, sp.Settle, logger)

	// The watcher failing (missing directory, fd limits) must unblock
	// the shipper, which otherwise waits on the file channel forever.
	var watchErr error
	done := make(chan struct{})
	go func() {
		watchErr = w.Run(watchCtx)
		cancel()
		close(done)
	}()

	err := ship.ShipSpool(watchCtx, w.Files())
	cancel()
	<-done
	if err != nil {
		return err
	}
	return watchErr
}
