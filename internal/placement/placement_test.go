package placement_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placecraft/internal/give"
	"placecraft/internal/placement"
	"placecraft/internal/tags"
)

func quietLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	return log, &buf
}

type countingItem struct {
	*placement.BasicItem
	loads, unloads int
	failLoad       bool
	panicUnload    bool
	trace          *[]string
}

func (c *countingItem) Load() error {
	c.loads++
	*c.trace = append(*c.trace, "item:"+c.Name())
	if c.failLoad {
		return errors.New("boom")
	}
	return nil
}

func (c *countingItem) Unload() error {
	c.unloads++
	*c.trace = append(*c.trace, "item:"+c.Name())
	if c.panicUnload {
		panic("unload exploded")
	}
	return nil
}

type tracingTag struct {
	trace *[]string
}

func (*tracingTag) TagType() string { return "tracing" }

func (g *tracingTag) LoadTag(tags.Owner) error {
	*g.trace = append(*g.trace, "tag:load")
	return nil
}

func (g *tracingTag) UnloadTag(tags.Owner) error {
	*g.trace = append(*g.trace, "tag:unload")
	return nil
}

func TestPlacement_LifecycleIsIdempotent(t *testing.T) {
	log, _ := quietLogger()
	var trace []string
	a := &countingItem{BasicItem: placement.NewItem("a", ""), trace: &trace}
	b := &countingItem{BasicItem: placement.NewItem("b", ""), trace: &trace}
	loc := placement.NewLocation("altar", []string{"*"}, false)
	loc.OnLoad = func(*placement.BasicLocation) error {
		trace = append(trace, "location")
		return nil
	}
	loc.OnUnload = func(*placement.BasicLocation) error {
		trace = append(trace, "location")
		return nil
	}

	p := placement.New("shrine",
		placement.WithItems(a, b),
		placement.WithLocations(loc),
		placement.WithLogger(log),
	)
	require.NoError(t, p.Tags().Add(&tracingTag{trace: &trace}))
	p.OnLoad = func(*placement.Placement) error {
		trace = append(trace, "hook:load")
		return nil
	}
	p.OnUnload = func(*placement.Placement) error {
		trace = append(trace, "hook:unload")
		return nil
	}

	p.Load()
	p.Load()
	assert.True(t, p.Loaded())
	assert.True(t, p.Tags().Loaded())
	assert.Equal(t, 1, a.loads)
	assert.Equal(t, 1, b.loads)
	assert.Equal(t, []string{"tag:load", "item:a", "item:b", "location", "hook:load"}, trace)
	assert.Same(t, p, loc.Placement())

	trace = nil
	p.Unload()
	p.Unload()
	assert.False(t, p.Loaded())
	assert.False(t, p.Tags().Loaded())
	assert.Equal(t, 1, a.unloads)
	assert.Equal(t, 1, b.unloads)
	assert.Equal(t, []string{"tag:unload", "item:a", "item:b", "location", "hook:unload"}, trace)
}

func TestPlacement_LifecycleFailsOpen(t *testing.T) {
	log, buf := quietLogger()
	var trace []string
	a := &countingItem{BasicItem: placement.NewItem("a", ""), trace: &trace, failLoad: true, panicUnload: true}
	b := &countingItem{BasicItem: placement.NewItem("b", ""), trace: &trace}

	p := placement.New("cache", placement.WithItems(a, b), placement.WithLogger(log))
	hookRan := false
	p.OnLoad = func(*placement.Placement) error {
		hookRan = true
		panic("hook exploded")
	}

	p.Load()
	assert.True(t, p.Loaded())
	assert.True(t, hookRan)
	assert.Equal(t, 1, b.loads)

	p.Unload()
	assert.False(t, p.Loaded())
	assert.Equal(t, 1, b.unloads)

	out := buf.String()
	assert.Contains(t, out, "lifecycle step failed")
	assert.Contains(t, out, "lifecycle step panicked")
}

func TestPlacement_AddVisitFlag(t *testing.T) {
	log, _ := quietLogger()
	p := placement.New("well", placement.WithLogger(log))

	var order []string
	var changes []placement.VisitChange
	unsubscribe := placement.Subscribe(func(c placement.VisitChange) {
		if c.Placement == p {
			order = append(order, "global")
			changes = append(changes, c)
		}
	})
	defer unsubscribe()
	p.OnVisitChanged(func(placement.VisitChange) { order = append(order, "placement") })

	p.AddVisitFlag(placement.VisitPreviewed)
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"global", "placement"}, order)
	assert.Equal(t, placement.VisitNone, changes[0].Previous)
	assert.Equal(t, placement.VisitPreviewed, changes[0].Added)
	assert.Equal(t, placement.VisitPreviewed, changes[0].Current())
	assert.False(t, changes[0].ID.IsZero())

	t.Run("subset is skipped", func(t *testing.T) {
		order = nil
		p.AddVisitFlag(placement.VisitPreviewed)
		p.AddVisitFlag(placement.VisitNone)
		assert.Empty(t, order)
		assert.Equal(t, placement.VisitPreviewed, p.Visit())
	})

	t.Run("monotonic union", func(t *testing.T) {
		masks := []placement.VisitState{
			placement.VisitOpened,
			placement.VisitDeclined | placement.VisitPreviewed,
			placement.VisitAccepted,
			placement.VisitOpened,
		}
		want := p.Visit()
		for _, m := range masks {
			p.AddVisitFlag(m)
			want |= m
			assert.Equal(t, want, p.Visit())
		}
	})
}

func TestPlacement_SubscriberPanicIsIsolated(t *testing.T) {
	log, buf := quietLogger()
	p := placement.New("tomb", placement.WithLogger(log))

	reached := false
	p.OnVisitChanged(func(placement.VisitChange) { panic("observer bug") })
	p.OnVisitChanged(func(placement.VisitChange) { reached = true })

	p.AddVisitFlag(placement.VisitOpened)
	assert.True(t, reached)
	assert.True(t, p.Visit().Has(placement.VisitOpened))
	assert.Contains(t, buf.String(), "visit state subscriber failed")
}

func TestPlacement_Unsubscribe(t *testing.T) {
	log, _ := quietLogger()
	p := placement.New("gate", placement.WithLogger(log))
	calls := 0
	stop := p.OnVisitChanged(func(placement.VisitChange) { calls++ })
	p.AddVisitFlag(placement.VisitOpened)
	stop()
	p.AddVisitFlag(placement.VisitDropped)
	assert.Equal(t, 1, calls)
}

func TestPlacement_GiveAll(t *testing.T) {
	log, _ := quietLogger()
	a := placement.NewItem("sword", "Chest")
	b := placement.NewItem("shield", "")
	b.SetObtained(true)
	c := placement.NewItem("potion", "")

	var pending func()
	c.OnGive = func(_ *placement.BasicItem, info give.Info, done func()) {
		assert.Equal(t, "Chest", info.Container)
		pending = done
	}

	p := placement.New("armory", placement.WithItems(a, b, c), placement.WithLogger(log))
	finished := false
	chain := p.GiveAll(give.Info{Container: "Chest"}, func() { finished = true })

	assert.True(t, a.Obtained())
	assert.True(t, p.Visit().Has(placement.VisitObtainedAnyItem))
	assert.True(t, chain.InFlight())
	assert.False(t, finished)
	assert.Equal(t, 2, chain.Dispatched())

	require.NotNil(t, pending)
	pending()
	assert.True(t, finished)
	assert.True(t, p.AllObtained())
}

func TestVisitState_Parse(t *testing.T) {
	v, err := placement.ParseVisitFlags([]string{"opened", "obtained_any_item"})
	require.NoError(t, err)
	assert.Equal(t, placement.VisitOpened|placement.VisitObtainedAnyItem, v)
	assert.Equal(t, []string{"opened", "obtained_any_item"}, v.Flags())

	_, err = placement.ParseVisitFlag("teleported")
	assert.Error(t, err)
}

func TestBasicLocation_Supports(t *testing.T) {
	wild := placement.NewLocation("a", []string{"*"}, false)
	assert.True(t, wild.Supports("Chest"))
	assert.False(t, wild.Supports(""))

	some := placement.NewLocation("b", []string{"Chest"}, true)
	assert.True(t, some.Supports("Chest"))
	assert.False(t, some.Supports("Shiny"))
	assert.True(t, some.ForceDefaultContainer())
}
