// Package store persists ingested placement definitions, per-placement state
// and the visit event history.
package store

import (
	"context"

	"placecraft/internal/profile"
)

type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	UpsertPlacement(ctx context.Context, p PlacementInput) error
	RemoveStalePlacements(ctx context.Context, layer string, currentSourceFiles []string) (int64, error)
	GetLayerHashes(ctx context.Context, layer string) (map[string]string, error)

	ListPlacements(ctx context.Context, layer string) ([]PlacementSummary, error)
	GetPlacement(ctx context.Context, name string) (*Placement, error)
	Search(ctx context.Context, query, layer string) ([]SearchResult, error)

	SaveState(ctx context.Context, st profile.State) error
	LoadState(ctx context.Context, placement string) (*profile.State, error)
	ListStates(ctx context.Context) ([]profile.State, error)

	AppendVisitEvent(ctx context.Context, e VisitEvent) error
	ListVisitEvents(ctx context.Context, placement string, limit int) ([]VisitEvent, error)
}
