package hec

import "strings"

// batch accumulates serialized events until flushed. The running byte
// count is the sum of event lengths; newline separators are counted only
// when the body is assembled.
type batch struct {
	events []string
	bytes  int
}

// add appends a serialized event. The batch never rejects an event,
// however large.
func (b *batch) add(s string) {
	b.events = append(b.events, s)
	b.bytes += len(s)
}

// wouldExceed reports whether appending n more bytes would push the
// batch past limit.
func (b *batch) wouldExceed(n, limit int) bool {
	return b.bytes+n > limit
}

// size returns the number of buffered events.
func (b *batch) size() int {
	return len(b.events)
}

func (b *batch) empty() bool {
	return len(b.events) == 0
}

// body joins the buffered events into one newline-delimited payload,
// with no trailing newline.
func (b *batch) body() []byte {
	return []byte(strings.Join(b.events, "\n"))
}

// reset clears the batch for reuse.
func (b *batch) reset() {
	b.events = b.events[:0]
	b.bytes = 0
}
