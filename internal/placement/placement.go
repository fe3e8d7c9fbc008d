// Package placement models placements (items bound to locations), their
// idempotent load/unload lifecycle and their monotonic visit state.
package placement

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"placecraft/internal/give"
	"placecraft/internal/logger"
	"placecraft/internal/tags"
)

// Cost is a price attached to a placement. Only its presence matters when a
// container is chosen.
type Cost struct {
	Kind   string `json:"kind" yaml:"kind"`
	Amount int    `json:"amount" yaml:"amount"`
}

func (c *Cost) String() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%d %s", c.Amount, c.Kind)
}

// Placement binds one or more items to one or more locations.
type Placement struct {
	name      string
	items     []Item
	locations []Location
	tags      *tags.List
	cost      *Cost
	visit     VisitState
	loaded    bool
	log       logrus.FieldLogger
	listeners subscribers

	// OnLoad and OnUnload run after the placement's locations.
	OnLoad   func(*Placement) error
	OnUnload func(*Placement) error
}

type Option func(*Placement)

func WithItems(items ...Item) Option {
	return func(p *Placement) { p.items = append(p.items, items...) }
}

func WithLocations(locs ...Location) Option {
	return func(p *Placement) {
		for _, loc := range locs {
			p.AddLocation(loc)
		}
	}
}

func WithCost(c *Cost) Option {
	return func(p *Placement) { p.cost = c }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Placement) { p.log = log }
}

// WithTagOptions configures the placement's own tag list.
func WithTagOptions(opts ...tags.Option) Option {
	return func(p *Placement) { p.tags = tags.NewList(p, opts...) }
}

func New(name string, opts ...Option) *Placement {
	p := &Placement{name: name}
	p.tags = tags.NewList(p)
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Placement) Kind() *tags.Kind { return tags.KindPlacement }

func (p *Placement) Name() string { return p.name }

func (p *Placement) Items() []Item { return p.items }

func (p *Placement) Locations() []Location { return p.locations }

func (p *Placement) Tags() *tags.List { return p.tags }

func (p *Placement) Cost() *Cost { return p.cost }

func (p *Placement) SetCost(c *Cost) { p.cost = c }

func (p *Placement) Visit() VisitState { return p.visit }

func (p *Placement) Loaded() bool { return p.loaded }

func (p *Placement) AddItem(item Item) { p.items = append(p.items, item) }

func (p *Placement) AddLocation(loc Location) {
	loc.SetPlacement(p)
	p.locations = append(p.locations, loc)
}

// Location returns the location with the given name.
func (p *Placement) Location(name string) (Location, bool) {
	for _, loc := range p.locations {
		if loc.Name() == name {
			return loc, true
		}
	}
	return nil, false
}

// AllObtained reports whether every item has been obtained.
func (p *Placement) AllObtained() bool {
	for _, item := range p.items {
		if !item.Obtained() {
			return false
		}
	}
	return true
}

// Load runs tags, items (in order) and the placement's own hook once. A
// failing step is logged and the remaining steps still run.
func (p *Placement) Load() {
	if p.loaded {
		return
	}
	p.step("load", "tags", func() error { p.tags.Load(); return nil })
	for _, item := range p.items {
		p.step("load", "item "+item.Name(), item.Load)
	}
	for _, loc := range p.locations {
		p.step("load", "location "+loc.Name(), loc.Load)
	}
	if p.OnLoad != nil {
		p.step("load", "hook", func() error { return p.OnLoad(p) })
	}
	p.loaded = true
}

// Unload mirrors Load: tags, items, then the placement's own hook.
func (p *Placement) Unload() {
	if !p.loaded {
		return
	}
	p.step("unload", "tags", func() error { p.tags.Unload(); return nil })
	for _, item := range p.items {
		p.step("unload", "item "+item.Name(), item.Unload)
	}
	for _, loc := range p.locations {
		p.step("unload", "location "+loc.Name(), loc.Unload)
	}
	if p.OnUnload != nil {
		p.step("unload", "hook", func() error { return p.OnUnload(p) })
	}
	p.loaded = false
}

func (p *Placement) step(phase, name string, fn func() error) {
	log := logger.Or(p.log).WithFields(logrus.Fields{
		"placement": p.name,
		"phase":     phase,
		"step":      name,
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithError(oops.In("placement").Errorf("panic: %v", r)).Warn("lifecycle step panicked")
		}
	}()
	if err := fn(); err != nil {
		log.WithError(err).Warn("lifecycle step failed")
	}
}

// OnVisitChanged subscribes fn to this placement's visit changes.
func (p *Placement) OnVisitChanged(fn VisitHandler) func() {
	return p.listeners.add(fn)
}

// AddVisitFlag unions mask into the visit state. Global subscribers are
// notified first, then the placement's own. A mask that adds no new bit is
// ignored entirely: no record is built and nobody is notified.
func (p *Placement) AddVisitFlag(mask VisitState) {
	if p.visit.Has(mask) {
		return
	}
	change := VisitChange{
		ID:        ulid.Make(),
		Placement: p,
		Added:     mask,
		Previous:  p.visit,
		At:        time.Now().UTC(),
	}
	global.notify(p.log, "global", change)
	p.listeners.notify(p.log, "placement", change)
	p.visit |= mask
}

// RestoreVisit sets the visit state from persisted data without notifying.
// It is meant for profiles being rebuilt before load.
func (p *Placement) RestoreVisit(v VisitState) {
	p.visit = v
}

// GiveAll delivers every unobtained item in order. The first dispatched grant
// marks the placement with VisitObtainedAnyItem.
func (p *Placement) GiveAll(info give.Info, done func()) *give.Chain {
	if info.Placement == "" {
		info.Placement = p.name
	}
	grantables := make([]give.Grantable, len(p.items))
	for i, item := range p.items {
		grantables[i] = item
	}
	return give.Start(grantables, info, done,
		give.WithLogger(p.log),
		give.WithObserver(func(int, give.Grantable) {
			p.AddVisitFlag(VisitObtainedAnyItem)
		}),
	)
}
