//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"placecraft/internal/placement"
	"placecraft/internal/profile"
	"placecraft/internal/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("PLACECRAFT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PLACECRAFT_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	for _, table := range []string{"placements", "placement_state", "visit_events"} {
		if _, err := c.pool.Exec(ctx, "TRUNCATE "+table); err != nil {
			t.Fatalf("truncating %s: %v", table, err)
		}
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	in := store.PlacementInput{Name: "Shrine", Layer: "world", SourceFile: "world/shrine.md", SourceHash: "h", Items: []string{"candle"}, Body: "incense smoke"}
	if err := c.UpsertPlacement(ctx, in); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := c.GetPlacement(ctx, "shrine")
	if err != nil || got == nil || got.Items[0] != "candle" {
		t.Fatalf("get: %+v %v", got, err)
	}
	results, err := c.Search(ctx, "incense", "")
	if err != nil || len(results) != 1 {
		t.Fatalf("search: %+v %v", results, err)
	}

	st := profile.State{Placement: "Shrine", Visit: placement.VisitOpened, Obtained: []string{"candle"}}
	if err := c.SaveState(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := c.LoadState(ctx, "Shrine")
	if err != nil || loaded == nil || loaded.Visit != placement.VisitOpened {
		t.Fatalf("load: %+v %v", loaded, err)
	}

	e := store.VisitEvent{ID: ulid.Make().String(), Placement: "Shrine", Added: 1, At: time.Now().UTC()}
	if err := c.AppendVisitEvent(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, err := c.ListVisitEvents(ctx, "Shrine", 10)
	if err != nil || len(events) != 1 || events[0].ID != e.ID {
		t.Fatalf("events: %+v %v", events, err)
	}

	removed, err := c.RemoveStalePlacements(ctx, "world", []string{"world/other.md"})
	if err != nil || removed != 1 {
		t.Fatalf("remove: %d %v", removed, err)
	}
}
