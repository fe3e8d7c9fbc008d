package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"placecraft/internal/placement"
	"placecraft/internal/profile"
	"placecraft/internal/store"
	"placecraft/internal/tags"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	c, err := New(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema twice: %v", err)
	}
	return c
}

func TestPlacements(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	inputs := []store.PlacementInput{
		{Name: "Sunken Chest", Layer: "world", SourceFile: "world/chest.md", SourceHash: "h1", Items: []string{"silver key"}, Definition: json.RawMessage(`{"title":"Sunken Chest"}`), Body: "The chest sits half-buried in sand."},
		{Name: "Shrine", Layer: "world", SourceFile: "world/shrine.md", SourceHash: "h2", Items: []string{"candle", "incense"}},
		{Name: "Festival Stall", Layer: "events", SourceFile: "events/stall.md", SourceHash: "h3"},
	}
	for _, in := range inputs {
		if err := c.UpsertPlacement(ctx, in); err != nil {
			t.Fatalf("upsert %s: %v", in.Name, err)
		}
	}

	inputs[0].SourceHash = "h1b"
	if err := c.UpsertPlacement(ctx, inputs[0]); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	hashes, err := c.GetLayerHashes(ctx, "world")
	if err != nil {
		t.Fatalf("hashes: %v", err)
	}
	if hashes["world/chest.md"] != "h1b" || len(hashes) != 2 {
		t.Fatalf("unexpected hashes: %v", hashes)
	}

	got, err := c.GetPlacement(ctx, "sunken chest")
	if err != nil || got == nil {
		t.Fatalf("get placement: %v %v", got, err)
	}
	if got.Name != "Sunken Chest" || len(got.Items) != 1 || string(got.Definition) != `{"title":"Sunken Chest"}` {
		t.Fatalf("unexpected placement: %+v", got)
	}
	if got.IngestedAt.IsZero() {
		t.Fatalf("expected ingest time")
	}

	missing, err := c.GetPlacement(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil placement, got %v %v", missing, err)
	}

	all, err := c.ListPlacements(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %v %v", all, err)
	}
	world, err := c.ListPlacements(ctx, "world")
	if err != nil || len(world) != 2 || world[0].Name != "Shrine" {
		t.Fatalf("list world: %v %v", world, err)
	}

	results, err := c.Search(ctx, "buried", "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Sunken Chest" {
		t.Fatalf("unexpected search results: %+v", results)
	}
	if _, err := c.Search(ctx, "  ", ""); err == nil {
		t.Fatalf("expected empty query error")
	}

	removed, err := c.RemoveStalePlacements(ctx, "world", []string{"world/chest.md"})
	if err != nil || removed != 1 {
		t.Fatalf("remove stale: %d %v", removed, err)
	}
	removed, err = c.RemoveStalePlacements(ctx, "events", nil)
	if err != nil || removed != 0 {
		t.Fatalf("remove with no files: %d %v", removed, err)
	}
}

func TestState(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	st := profile.State{
		Placement: "Shrine",
		Visit:     placement.VisitOpened | placement.VisitPreviewed,
		Tags:      []tags.Record{{Type: "fling", Data: json.RawMessage(`{"fling":"straight_up"}`)}},
		Locations: map[string][]tags.Record{"altar": {{Type: "original_container", Data: json.RawMessage(`{"container":"Barrel"}`)}}},
		Obtained:  []string{"candle"},
	}
	if err := c.SaveState(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Visit |= placement.VisitDeclined
	if err := c.SaveState(ctx, st); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := c.LoadState(ctx, "Shrine")
	if err != nil || got == nil {
		t.Fatalf("load: %v %v", got, err)
	}
	if got.Visit != st.Visit || len(got.Tags) != 1 || got.Tags[0].Type != "fling" {
		t.Fatalf("unexpected state: %+v", got)
	}
	if string(got.Locations["altar"][0].Data) != `{"container":"Barrel"}` || got.Obtained[0] != "candle" {
		t.Fatalf("unexpected state details: %+v", got)
	}

	none, err := c.LoadState(ctx, "Ghost")
	if err != nil || none != nil {
		t.Fatalf("expected no state, got %v %v", none, err)
	}

	states, err := c.ListStates(ctx)
	if err != nil || len(states) != 1 {
		t.Fatalf("list states: %v %v", states, err)
	}
}

func TestVisitEvents(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		id := ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
		ids = append(ids, id)
		name := "Shrine"
		if i == 2 {
			name = "Well"
		}
		e := store.VisitEvent{ID: id, Placement: name, Added: 1 << i, Previous: 0, At: at}
		if err := c.AppendVisitEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := c.AppendVisitEvent(ctx, e); err != nil {
			t.Fatalf("append duplicate: %v", err)
		}
	}

	shrine, err := c.ListVisitEvents(ctx, "Shrine", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shrine) != 4 || shrine[0].ID != ids[0] || shrine[3].ID != ids[4] {
		t.Fatalf("unexpected shrine events: %+v", shrine)
	}
	if !shrine[0].At.Equal(base) {
		t.Fatalf("unexpected time %v", shrine[0].At)
	}

	latest, err := c.ListVisitEvents(ctx, "", 2)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(latest) != 2 || latest[0].ID != ids[3] || latest[1].ID != ids[4] {
		t.Fatalf("unexpected latest events: %+v", latest)
	}
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"sqlite://:memory:", ":memory:", false},
		{"sqlite:///var/lib/placecraft.db", "/var/lib/placecraft.db", false},
		{"sqlite://placecraft.db", "./placecraft.db", false},
		{"sqlite://./data/p.db?_pragma=busy_timeout(5000)", "./data/p.db?_pragma=busy_timeout(5000)", false},
		{"sqlite://my%20file.db", "./my file.db", false},
		{"postgres://localhost/db", "", true},
		{"sqlite://", "", true},
	}
	for _, tt := range tests {
		got, err := parseDSN(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseDSN(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
