package profile_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placecraft/internal/container"
	"placecraft/internal/placement"
	"placecraft/internal/profile"
	"placecraft/internal/tags"
)

func build(t *testing.T, name string) *placement.Placement {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	loc := placement.NewLocation("altar", []string{"*"}, false)
	p := placement.New(name,
		placement.WithItems(placement.NewItem("sword", "Chest"), placement.NewItem("shield", "")),
		placement.WithLocations(loc),
		placement.WithLogger(log),
	)
	return p
}

func TestProfile_Add(t *testing.T) {
	pr := profile.New()
	require.NoError(t, pr.Add(build(t, "a")))
	require.NoError(t, pr.Add(build(t, "b")))
	err := pr.Add(build(t, "a"))
	require.ErrorIs(t, err, profile.ErrDuplicatePlacement)
	assert.Equal(t, 2, pr.Len())

	_, err = pr.Lookup("missing")
	require.ErrorIs(t, err, profile.ErrUnknownPlacement)

	pr.Load()
	for _, p := range pr.Placements() {
		assert.True(t, p.Loaded())
	}
	pr.Unload()
	for _, p := range pr.Placements() {
		assert.False(t, p.Loaded())
	}
}

func TestProfile_SnapshotRoundTrip(t *testing.T) {
	pr := profile.New()
	p := build(t, "shrine")
	require.NoError(t, pr.Add(p))
	require.NoError(t, p.Tags().Add(&container.FlingTag{Fling: container.FlingDirectDeposit}))
	require.NoError(t, p.Tags().Add(&container.UnsupportedContainerTag{Containers: []string{"Shiny"}}))
	loc, _ := p.Location("altar")
	require.NoError(t, loc.Tags().Add(&container.OriginalContainerTag{Container: "Barrel", Priority: true}))
	p.AddVisitFlag(placement.VisitPreviewed | placement.VisitOpened)
	p.Items()[0].(*placement.BasicItem).SetObtained(true)

	snap, err := pr.Snapshot("demo")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "state", "snap.zst")
	require.NoError(t, profile.WriteSnapshot(path, snap))

	h, err := profile.ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", h.Project)
	assert.Equal(t, profile.SnapshotVersion, h.Version)

	got, err := profile.ReadSnapshot(path)
	require.NoError(t, err)

	fresh := profile.New()
	q := build(t, "shrine")
	require.NoError(t, fresh.Add(q))
	require.NoError(t, fresh.Restore(got))

	assert.Equal(t, p.Visit(), q.Visit())
	require.Equal(t, p.Tags().Len(), q.Tags().Len())
	fling, ok := q.Tags().Tags()[0].(*container.FlingTag)
	require.True(t, ok)
	assert.Equal(t, container.FlingDirectDeposit, fling.Fling)

	qloc, _ := q.Location("altar")
	original, ok := qloc.Tags().Tags()[0].(*container.OriginalContainerTag)
	require.True(t, ok)
	assert.Equal(t, "Barrel", original.Container)
	assert.True(t, original.Priority)

	assert.True(t, q.Items()[0].Obtained())
	assert.False(t, q.Items()[1].Obtained())

	again, err := fresh.Snapshot("demo")
	require.NoError(t, err)
	assert.Equal(t, snap.States, again.States)
}

func TestProfile_RestoreUnknownPlacement(t *testing.T) {
	pr := profile.New()
	p := build(t, "known")
	require.NoError(t, pr.Add(p))

	err := pr.Restore(profile.Snapshot{States: []profile.State{
		{Placement: "known", Visit: placement.VisitDeclined},
		{Placement: "ghost"},
	}})
	require.ErrorIs(t, err, profile.ErrUnknownPlacement)
	assert.Equal(t, placement.VisitNone, p.Visit())
}

func TestApply_LeavesPlacementUntouchedOnError(t *testing.T) {
	p := build(t, "shrine")
	require.NoError(t, p.Tags().Add(&container.FlingTag{Fling: container.FlingDirectDeposit}))

	unsupported, err := tags.Encode(&container.UnsupportedContainerTag{Containers: []string{"Shiny"}})
	require.NoError(t, err)
	original, err := tags.Encode(&container.OriginalContainerTag{Container: "Barrel"})
	require.NoError(t, err)

	tests := []struct {
		name string
		st   profile.State
	}{
		{
			name: "renamed location",
			st: profile.State{
				Placement: "shrine",
				Tags:      []tags.Record{unsupported},
				Locations: map[string][]tags.Record{"old_altar": {original}},
				Visit:     placement.VisitOpened,
				Obtained:  []string{"sword"},
			},
		},
		{
			name: "location tag on placement",
			st: profile.State{
				Placement: "shrine",
				Tags:      []tags.Record{unsupported, original},
				Visit:     placement.VisitOpened,
			},
		},
		{
			name: "unknown tag type",
			st: profile.State{
				Placement: "shrine",
				Locations: map[string][]tags.Record{"altar": {{Type: "no_such_tag"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, profile.Apply(p, tt.st))

			require.Equal(t, 1, p.Tags().Len())
			assert.IsType(t, &container.FlingTag{}, p.Tags().Tags()[0])
			loc, _ := p.Location("altar")
			assert.Zero(t, loc.Tags().Len())
			assert.Equal(t, placement.VisitNone, p.Visit())
			assert.False(t, p.Items()[0].Obtained())
		})
	}
}
