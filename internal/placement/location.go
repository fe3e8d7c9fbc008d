package placement

import (
	"slices"

	"placecraft/internal/tags"
)

// Location is an interaction point where a placement's items are presented.
type Location interface {
	tags.Owner
	Supports(container string) bool
	ForceDefaultContainer() bool
	Tags() *tags.List
	Placement() *Placement
	SetPlacement(p *Placement)
	Load() error
	Unload() error
}

// SupportsAll is the wildcard entry of BasicLocation's supported set.
const SupportsAll = "*"

// BasicLocation supports a fixed set of container names, or any name when
// the set contains "*".
type BasicLocation struct {
	name         string
	supports     []string
	forceDefault bool
	placement    *Placement
	tags         *tags.List

	OnLoad   func(*BasicLocation) error
	OnUnload func(*BasicLocation) error
}

func NewLocation(name string, supports []string, forceDefault bool, opts ...tags.Option) *BasicLocation {
	loc := &BasicLocation{
		name:         name,
		supports:     slices.Clone(supports),
		forceDefault: forceDefault,
	}
	loc.tags = tags.NewList(loc, opts...)
	return loc
}

func (l *BasicLocation) Kind() *tags.Kind { return KindBasicLocation }

func (l *BasicLocation) Name() string { return l.name }

func (l *BasicLocation) Supports(container string) bool {
	if container == "" {
		return false
	}
	return slices.Contains(l.supports, SupportsAll) || slices.Contains(l.supports, container)
}

// Supported returns the configured names, wildcard included.
func (l *BasicLocation) Supported() []string { return l.supports }

func (l *BasicLocation) ForceDefaultContainer() bool { return l.forceDefault }

func (l *BasicLocation) Tags() *tags.List { return l.tags }

func (l *BasicLocation) Placement() *Placement { return l.placement }

func (l *BasicLocation) SetPlacement(p *Placement) { l.placement = p }

// Load loads the location's tags and runs OnLoad. The tags stay loaded even
// when the hook fails.
func (l *BasicLocation) Load() error {
	l.tags.Load()
	if l.OnLoad != nil {
		return l.OnLoad(l)
	}
	return nil
}

func (l *BasicLocation) Unload() error {
	l.tags.Unload()
	if l.OnUnload != nil {
		return l.OnUnload(l)
	}
	return nil
}
