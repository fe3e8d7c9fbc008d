package store

import (
	"context"
	"errors"
	"testing"

	"placecraft/internal/container"
	"placecraft/internal/placement"
	"placecraft/internal/profile"
)

type memoryStore struct {
	states  map[string]profile.State
	events  []VisitEvent
	failAdd bool
}

func (m *memoryStore) SaveState(ctx context.Context, st profile.State) error {
	if m.states == nil {
		m.states = map[string]profile.State{}
	}
	m.states[st.Placement] = st
	return nil
}

func (m *memoryStore) ListStates(ctx context.Context) ([]profile.State, error) {
	out := make([]profile.State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out, nil
}

func (m *memoryStore) AppendVisitEvent(ctx context.Context, e VisitEvent) error {
	if m.failAdd {
		return errors.New("disk full")
	}
	m.events = append(m.events, e)
	return nil
}

func TestPersistAndHydrate(t *testing.T) {
	ctx := context.Background()
	db := &memoryStore{}

	key := placement.NewItem("silver key", "Chest")
	p := placement.New("Sunken Chest", placement.WithItems(key))
	key.SetObtained(true)
	p.RestoreVisit(placement.VisitOpened)

	if err := Persist(ctx, db, p); err != nil {
		t.Fatalf("persist: %v", err)
	}

	fresh := placement.New("Sunken Chest", placement.WithItems(placement.NewItem("silver key", "Chest")))
	prof := profile.New()
	if err := prof.Add(fresh); err != nil {
		t.Fatalf("add: %v", err)
	}
	db.states["Removed Long Ago"] = profile.State{Placement: "Removed Long Ago"}

	if err := Hydrate(ctx, db, prof); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if fresh.Visit() != placement.VisitOpened {
		t.Fatalf("expected restored visit state, got %v", fresh.Visit())
	}
	if !fresh.Items()[0].Obtained() {
		t.Fatalf("expected silver key to be obtained")
	}
}

func TestHydrate_SkipsStaleState(t *testing.T) {
	ctx := context.Background()
	db := &memoryStore{}

	stale := placement.New("A", placement.WithLocations(placement.NewLocation("old_name", []string{"*"}, false)))
	loc, _ := stale.Location("old_name")
	if err := loc.Tags().Add(&container.OriginalContainerTag{Container: "Barrel"}); err != nil {
		t.Fatalf("tag: %v", err)
	}
	stale.RestoreVisit(placement.VisitOpened)
	healthy := placement.New("B")
	healthy.RestoreVisit(placement.VisitDeclined)
	for _, p := range []*placement.Placement{stale, healthy} {
		if err := Persist(ctx, db, p); err != nil {
			t.Fatalf("persist %s: %v", p.Name(), err)
		}
	}

	renamed := placement.New("A", placement.WithLocations(placement.NewLocation("new_name", []string{"*"}, false)))
	fresh := placement.New("B")
	prof := profile.New()
	for _, p := range []*placement.Placement{renamed, fresh} {
		if err := prof.Add(p); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if err := Hydrate(ctx, db, prof); err != nil {
		t.Fatalf("hydrate should skip the stale state, got %v", err)
	}
	if renamed.Visit() != placement.VisitNone {
		t.Fatalf("stale state was partly applied: visit %v", renamed.Visit())
	}
	if fresh.Visit() != placement.VisitDeclined {
		t.Fatalf("expected B restored, got %v", fresh.Visit())
	}
}

func TestRecordVisits(t *testing.T) {
	db := &memoryStore{}
	stop := RecordVisits(context.Background(), db, nil)

	p := placement.New("Shrine")
	p.AddVisitFlag(placement.VisitOpened)
	stop()
	p.AddVisitFlag(placement.VisitPreviewed)

	if len(db.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(db.events))
	}
	e := db.events[0]
	if e.Placement != "Shrine" || e.Added != uint32(placement.VisitOpened) || e.Previous != 0 || e.ID == "" {
		t.Fatalf("unexpected event: %#v", e)
	}
}

func TestRecordVisits_LogsFailures(t *testing.T) {
	db := &memoryStore{failAdd: true}
	stop := RecordVisits(context.Background(), db, nil)
	defer stop()

	p := placement.New("Shrine")
	p.AddVisitFlag(placement.VisitOpened)

	if p.Visit() != placement.VisitOpened {
		t.Fatalf("expected visit state to grow despite the failed write")
	}
}
