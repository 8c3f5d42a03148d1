package hec

import (
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	json "github.com/goccy/go-json"
)

// Event is a single collector event. Keys the caller leaves unset are
// filled from client configuration when the event is added: "host",
// "index" when one is configured, and "time" as a whole-second epoch
// string. Enrichment mutates the map in place.
type Event map[string]interface{}

// enrichEvent applies default metadata to e. An explicit at time always
// wins over an existing "time" key; the zero time means "keep or stamp".
func enrichEvent(e Event, host, index string, at time.Time, clk clock.Clock) {
	if _, ok := e["host"]; !ok {
		e["host"] = host
	}
	if index != "" {
		if _, ok := e["index"]; !ok {
			e["index"] = index
		}
	}
	if !at.IsZero() {
		e["time"] = epochString(at)
	} else if _, ok := e["time"]; !ok {
		e["time"] = epochString(clk.Now())
	}
}

func epochString(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// serializeEvent encodes e as a compact JSON object.
func serializeEvent(e Event) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", &SerializationError{Err: err}
	}
	return string(b), nil
}
