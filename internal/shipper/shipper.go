// Package shipper drains event sources into a collector client,
// checkpointing finished spool files so restarts do not ship them
// twice.
package shipper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bft-labs/hecship/internal/spool"
	"github.com/bft-labs/hecship/pkg/checkpoint"
	"github.com/bft-labs/hecship/pkg/hec"
	"github.com/bft-labs/hecship/pkg/log"
)

// Sink is the delivery side of the shipper. *hec.Client satisfies it.
type Sink interface {
	Add(ctx context.Context, e hec.Event) error
	Flush(ctx context.Context) error
	Metrics() hec.Snapshot
}

// Shipper drains event sources into a sink, recording finished units
// in a checkpoint so they are not shipped twice.
type Shipper struct {
	sink   Sink
	repo   checkpoint.Repository
	logger log.Logger
}

// New creates a shipper. repo may be nil when nothing needs to survive
// a restart, for example when shipping a one-shot stream.
func New(sink Sink, repo checkpoint.Repository, logger log.Logger) *Shipper {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Shipper{sink: sink, repo: repo, logger: logger}
}

// Ship drains src into the sink and returns the number of events it
// handed over. Units the checkpoint already records are skipped. After
// the final flush, a unit is recorded only when no delivery failed
// between its first event and the end of the drain; failed units are
// shipped again on the next pass.
func (s *Shipper) Ship(ctx context.Context, src Source) (int, error) {
	state := s.loadState(ctx)

	count := 0
	started := make(map[string]int64)
	var units []string
	var newest int64

	for {
		event, unit, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		var lineErr *spool.LineError
		if errors.As(err, &lineErr) {
			s.logger.Warn("skipping unparseable line",
				log.String("file", lineErr.File),
				log.Int("line", lineErr.Line),
				log.Err(lineErr.Err))
			continue
		}
		if err != nil {
			return count, err
		}

		if unit != "" && state.IsProcessed(unit) {
			continue
		}
		if _, ok := started[unit]; !ok && unit != "" {
			started[unit] = s.sink.Metrics().Errored
			units = append(units, unit)
		}
		if ts, ok := eventUnix(event); ok && ts > newest {
			newest = ts
		}

		if err := s.sink.Add(ctx, event); err != nil {
			return count, err
		}
		count++
	}

	if err := s.sink.Flush(ctx); err != nil {
		return count, err
	}

	errored := s.sink.Metrics().Errored
	dirty := false
	for _, unit := range units {
		if errored > started[unit] {
			s.logger.Warn("unit had delivery failures, will retry next pass",
				log.String("unit", unit))
			continue
		}
		state.MarkProcessed(unit)
		dirty = true
	}
	if dirty {
		state.Advance(newest)
		if err := s.saveState(ctx, state); err != nil {
			return count, err
		}
	}
	return count, nil
}

// ShipStream ships one NDJSON stream, such as stdin or a redirected
// file, and returns the number of events handed to the sink.
func (s *Shipper) ShipStream(ctx context.Context, rd io.Reader, name string) (int, error) {
	src := NewStreamSource(rd, name)
	defer src.Close()
	return s.Ship(ctx, src)
}

// ShipSpool consumes settled spool files until ctx ends or the channel
// closes. A file that fails is logged and left for the next pass; the
// loop keeps going.
func (s *Shipper) ShipSpool(ctx context.Context, files <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-files:
			if !ok {
				return nil
			}
			if err := s.shipFile(ctx, path); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("spool file failed",
					log.String("file", path), log.Err(err))
			}
		}
	}
}

// ShipDir ships the spool files already in dir, in name order, then
// returns. It backs the run-once mode. A file that fails is logged and
// skipped so one bad file does not block the rest.
func (s *Shipper) ShipDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("shipper: read spool dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !spool.IsSpoolFile(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.shipFile(ctx, filepath.Join(dir, entry.Name())); err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.Error("spool file failed",
				log.String("file", entry.Name()), log.Err(err))
		}
	}
	return nil
}

func (s *Shipper) shipFile(ctx context.Context, path string) error {
	src, err := OpenFileSource(path)
	if err != nil {
		return err
	}
	defer src.Close()

	count, err := s.Ship(ctx, src)
	if err != nil {
		return err
	}
	s.logger.Info("spool file shipped",
		log.String("file", filepath.Base(path)),
		log.Int("events", count))
	return nil
}

func (s *Shipper) loadState(ctx context.Context) checkpoint.State {
	if s.repo == nil {
		return checkpoint.State{}
	}
	state, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load checkpoint", log.Err(err))
		// Continue with an empty state.
		return checkpoint.State{}
	}
	return state
}

func (s *Shipper) saveState(ctx context.Context, state checkpoint.State) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Save(ctx, state)
}

// eventUnix extracts an event's epoch seconds, when it carries one.
func eventUnix(e hec.Event) (int64, bool) {
	switch v := e["time"].(type) {
	case string:
		sec, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return sec, true
	case float64:
		return int64(v), true
	}
	return 0, false
}
