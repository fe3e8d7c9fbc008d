// Package profile holds the active set of placements and their persisted
// per-placement state.
package profile

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"

	"placecraft/internal/placement"
	"placecraft/internal/tags"
)

var (
	ErrDuplicatePlacement = errors.New("duplicate placement name")
	ErrUnknownPlacement   = errors.New("unknown placement")
)

// Profile is an ordered set of uniquely named placements.
type Profile struct {
	order  []*placement.Placement
	byName map[string]*placement.Placement
}

func New() *Profile {
	return &Profile{byName: map[string]*placement.Placement{}}
}

// Add appends p. Names are unique across the profile, ignoring case.
func (pr *Profile) Add(p *placement.Placement) error {
	if _, ok := pr.byName[key(p.Name())]; ok {
		return oops.In("profile").
			Code("duplicate_placement").
			With("placement", p.Name()).
			Wrapf(ErrDuplicatePlacement, "placement %q already in profile", p.Name())
	}
	pr.byName[key(p.Name())] = p
	pr.order = append(pr.order, p)
	return nil
}

func (pr *Profile) Get(name string) (*placement.Placement, bool) {
	p, ok := pr.byName[key(name)]
	return p, ok
}

// Lookup is Get returning ErrUnknownPlacement.
func (pr *Profile) Lookup(name string) (*placement.Placement, error) {
	p, ok := pr.byName[key(name)]
	if !ok {
		return nil, oops.In("profile").
			Code("unknown_placement").
			With("placement", name).
			Wrapf(ErrUnknownPlacement, "placement %q not in profile", name)
	}
	return p, nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (pr *Profile) Placements() []*placement.Placement { return pr.order }

func (pr *Profile) Len() int { return len(pr.order) }

func (pr *Profile) Load() {
	for _, p := range pr.order {
		p.Load()
	}
}

func (pr *Profile) Unload() {
	for _, p := range pr.order {
		p.Unload()
	}
}

// State is the persisted part of a placement.
type State struct {
	Placement string                   `json:"placement"`
	Visit     placement.VisitState     `json:"visit"`
	Tags      []tags.Record            `json:"tags,omitempty"`
	Locations map[string][]tags.Record `json:"locations,omitempty"`
	Obtained  []string                 `json:"obtained,omitempty"`
}

// Snapshot is the persisted state of a whole profile.
type Snapshot struct {
	Header Header  `json:"header"`
	States []State `json:"states"`
}

type Header struct {
	Version   int       `json:"version"`
	Project   string    `json:"project,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const SnapshotVersion = 1

// StateOf captures the persisted state of one placement.
func StateOf(p *placement.Placement) (State, error) {
	st := State{Placement: p.Name(), Visit: p.Visit()}
	recs, err := p.Tags().Records()
	if err != nil {
		return st, err
	}
	st.Tags = recs
	for _, loc := range p.Locations() {
		recs, err := loc.Tags().Records()
		if err != nil {
			return st, err
		}
		if len(recs) == 0 {
			continue
		}
		if st.Locations == nil {
			st.Locations = map[string][]tags.Record{}
		}
		st.Locations[loc.Name()] = recs
	}
	for _, item := range p.Items() {
		if item.Obtained() {
			st.Obtained = append(st.Obtained, item.Name())
		}
	}
	return st, nil
}

// Snapshot captures every placement in profile order.
func (pr *Profile) Snapshot(project string) (Snapshot, error) {
	snap := Snapshot{Header: Header{
		Version:   SnapshotVersion,
		Project:   project,
		CreatedAt: time.Now().UTC(),
	}}
	for _, p := range pr.order {
		st, err := StateOf(p)
		if err != nil {
			return snap, oops.In("profile").With("placement", p.Name()).Wrap(err)
		}
		snap.States = append(snap.States, st)
	}
	return snap, nil
}

type obtainedSetter interface {
	SetObtained(bool)
}

// Apply restores st onto p. Every record and location is checked first; on
// error p is left untouched. Visit state is set without notifying
// subscribers.
func Apply(p *placement.Placement, st State) error {
	own, err := p.Tags().Decode(st.Tags)
	if err != nil {
		return err
	}
	type pending struct {
		list *tags.List
		tags []tags.Tag
	}
	var locs []pending
	for name, recs := range st.Locations {
		loc, ok := p.Location(name)
		if !ok {
			return oops.In("profile").
				With("placement", p.Name(), "location", name).
				Errorf("placement %q has no location %q", p.Name(), name)
		}
		list := loc.Tags()
		if list == nil {
			if len(recs) == 0 {
				continue
			}
			return oops.In("profile").
				With("placement", p.Name(), "location", name).
				Errorf("location %q of %q has no tag list", name, p.Name())
		}
		decoded, err := list.Decode(recs)
		if err != nil {
			return err
		}
		locs = append(locs, pending{list: list, tags: decoded})
	}

	p.Tags().Replace(own)
	for _, l := range locs {
		l.list.Replace(l.tags)
	}
	obtained := map[string]bool{}
	for _, name := range st.Obtained {
		obtained[name] = true
	}
	for _, item := range p.Items() {
		if s, ok := item.(obtainedSetter); ok {
			s.SetObtained(obtained[item.Name()])
		}
	}
	p.RestoreVisit(st.Visit)
	return nil
}

// Restore applies snap to the matching placements. Every named placement
// must exist; nothing is applied otherwise.
func (pr *Profile) Restore(snap Snapshot) error {
	for _, st := range snap.States {
		if _, err := pr.Lookup(st.Placement); err != nil {
			return err
		}
	}
	var errs []error
	for _, st := range snap.States {
		if err := Apply(pr.byName[key(st.Placement)], st); err != nil {
			errs = append(errs, oops.In("profile").With("placement", st.Placement).Wrap(err))
		}
	}
	return errors.Join(errs...)
}
