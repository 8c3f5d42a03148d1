package checkpoint

import (
	"context"
	"time"
)

// State records shipping progress for one event source. The client
// itself never resends a discarded batch, so callers that need
// durability track what they handed over here and re-source the rest
// on the next run.
type State struct {
	// Processed holds the ids of items that were fully shipped.
	Processed map[string]bool `json:"processed"`

	// LastTimestamp is the newest event time shipped, in Unix seconds.
	LastTimestamp int64 `json:"last_timestamp"`

	// UpdatedAt is when the state was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsProcessed reports whether id was already shipped.
func (s State) IsProcessed(id string) bool {
	return s.Processed[id]
}

// MarkProcessed records id as shipped.
func (s *State) MarkProcessed(id string) {
	if s.Processed == nil {
		s.Processed = make(map[string]bool)
	}
	s.Processed[id] = true
}

// Advance raises LastTimestamp to ts if it is newer.
func (s *State) Advance(ts int64) {
	if ts > s.LastTimestamp {
		s.LastTimestamp = ts
	}
}

// IsEmpty reports whether the state has never been saved.
func (s State) IsEmpty() bool {
	return len(s.Processed) == 0 && s.LastTimestamp == 0 && s.UpdatedAt.IsZero()
}

// Repository handles checkpoint persistence across runs.
// Implementations persist state to disk (or other storage) atomically.
type Repository interface {
	// Load retrieves the last saved state.
	// Returns an empty state and nil error if no state exists.
	// Returns an error only for actual read failures.
	Load(ctx context.Context) (State, error)

	// Save persists the current state atomically.
	Save(ctx context.Context, state State) error
}
