package spool

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/hecship/pkg/hec"
)

// LineError reports a spool line that is not valid JSON. Reading can
// continue past it.
type LineError struct {
	File string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("spool: %s line %d: %v", e.File, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Reader yields the events in one newline-delimited JSON stream.
type Reader struct {
	name string
	f    *os.File
	br   *bufio.Reader
	line int
}

// NewReader reads events from rd. The name labels the stream in errors.
func NewReader(rd io.Reader, name string) *Reader {
	return &Reader{name: name, br: bufio.NewReader(rd)}
}

// Open opens the spool file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("spool: open %s: %w", path, err)
	}
	r := NewReader(f, path)
	r.f = f
	return r, nil
}

// Next returns the next event in the file. It returns io.EOF when the
// file is drained and a *LineError for lines that do not parse; blank
// lines are skipped. A final line without a trailing newline still
// counts.
func (r *Reader) Next() (hec.Event, error) {
	for {
		raw, err := r.br.ReadBytes('\n')
		if len(raw) == 0 {
			if err == io.EOF {
				return nil, io.EOF
			}
			if err != nil {
				return nil, fmt.Errorf("spool: read %s: %w", r.name, err)
			}
		}
		r.line++

		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}

		var e hec.Event
		if uerr := json.Unmarshal(trimmed, &e); uerr != nil {
			return nil, &LineError{File: r.name, Line: r.line, Err: uerr}
		}
		return e, nil
	}
}

// Line returns the number of lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}
