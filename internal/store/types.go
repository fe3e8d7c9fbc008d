package store

import (
	"encoding/json"
	"strings"
	"time"

	"placecraft/internal/placement"
)

// DefaultEventLimit caps ListVisitEvents when no limit is given.
const DefaultEventLimit = 100

type PlacementInput struct {
	Name       string
	Layer      string
	SourceFile string
	SourceHash string
	Items      []string
	Definition json.RawMessage
	Body       string
}

type Placement struct {
	Name       string          `json:"name"`
	Layer      string          `json:"layer"`
	SourceFile string          `json:"source_file"`
	SourceHash string          `json:"source_hash"`
	Items      []string        `json:"items"`
	Definition json.RawMessage `json:"definition"`
	Body       string          `json:"body,omitempty"`
	IngestedAt time.Time       `json:"ingested_at"`
}

type PlacementSummary struct {
	Name       string   `json:"name"`
	Layer      string   `json:"layer"`
	SourceFile string   `json:"source_file"`
	Items      []string `json:"items"`
}

type SearchResult struct {
	Name    string   `json:"name"`
	Layer   string   `json:"layer"`
	Items   []string `json:"items"`
	Score   float64  `json:"score"`
	Snippet string   `json:"snippet,omitempty"`
}

// VisitEvent is one recorded growth of a placement's visit state. ID is a
// ULID, so lexical order is chronological.
type VisitEvent struct {
	ID        string    `json:"id"`
	Placement string    `json:"placement"`
	Added     uint32    `json:"added"`
	Previous  uint32    `json:"previous"`
	At        time.Time `json:"at"`
}

// EventFromChange converts a visit change into a storable event.
func EventFromChange(c placement.VisitChange) VisitEvent {
	return VisitEvent{
		ID:        c.ID.String(),
		Placement: c.Placement.Name(),
		Added:     uint32(c.Added),
		Previous:  uint32(c.Previous),
		At:        c.At,
	}
}

// Normalize is the case-insensitive key placements are stored under.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
