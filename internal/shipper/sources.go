package shipper

import (
	"context"
	"io"
	"path/filepath"

	"github.com/bft-labs/hecship/internal/spool"
	"github.com/bft-labs/hecship/pkg/hec"
)

// Source yields events to ship. Next returns io.EOF once the source is
// drained and a *spool.LineError for a line that does not parse; the
// shipper skips those and keeps reading. The unit string names the
// durable item an event belongs to, so the checkpoint can record it.
// Sources with nothing to record return "".
type Source interface {
	Next(ctx context.Context) (hec.Event, string, error)
	Close() error
}

// StreamSource yields the events of one NDJSON stream, such as stdin.
// Its events carry no unit, so they are never checkpointed.
type StreamSource struct {
	r *spool.Reader
}

// NewStreamSource reads events from rd. The name labels the stream in
// parse errors.
func NewStreamSource(rd io.Reader, name string) *StreamSource {
	return &StreamSource{r: spool.NewReader(rd, name)}
}

func (s *StreamSource) Next(ctx context.Context) (hec.Event, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	event, err := s.r.Next()
	if err != nil {
		return nil, "", err
	}
	return event, "", nil
}

func (s *StreamSource) Close() error { return s.r.Close() }

// FileSource yields the events of one spool file. Every event carries
// the file's base name as its unit.
type FileSource struct {
	r    *spool.Reader
	unit string
}

// OpenFileSource opens the spool file at path.
func OpenFileSource(path string) (*FileSource, error) {
	r, err := spool.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{r: r, unit: filepath.Base(path)}, nil
}

func (s *FileSource) Next(ctx context.Context) (hec.Event, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	event, err := s.r.Next()
	if err != nil {
		return nil, "", err
	}
	return event, s.unit, nil
}

func (s *FileSource) Close() error { return s.r.Close() }
