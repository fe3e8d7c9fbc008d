// Package resolver picks the container that presents a placement's items at
// a location.
//
// The decision is a fixed sequence of steps; the first step that produces a
// name wins:
//
//  1. the location forces the default single-item container
//  2. the requested capability mask is built from capability_request tags,
//     plus PayCosts when the placement has a cost
//  3. unsupported_container tags build the set of excluded names
//  4. the first original_container tag of the combined view is located
//  5. a forced or prioritized original container is returned when it is
//     eligible; a forced one is returned anyway with a warning
//  6. the first item preference that passes every check
//  7. the original container (unless low priority), then the multi-item
//     default for placements with several items, then the single-item
//     default
//
// The combined view lists placement tags before location tags.
package resolver

import (
	"github.com/sirupsen/logrus"

	"placecraft/internal/container"
	"placecraft/internal/logger"
	"placecraft/internal/placement"
	"placecraft/internal/tags"
)

// ErrConfiguration is returned when a resolved container cannot be realized
// even after resolving again.
var ErrConfiguration = container.ErrConfiguration

// Step identifies which rule produced a decision.
type Step string

const (
	StepForcedDefault    Step = "forced_default"
	StepOriginal         Step = "original"
	StepForcedOriginal   Step = "forced_original"
	StepItemPreference   Step = "item_preference"
	StepOriginalFallback Step = "original_fallback"
	StepDefaultMulti     Step = "default_multi"
	StepDefaultSingle    Step = "default_single"
)

// Decision is a resolved container name with an explanation.
type Decision struct {
	Container string   `json:"container"`
	Step      Step     `json:"step"`
	Requested uint32   `json:"requested"`
	Warnings  []string `json:"warnings,omitempty"`
}

type Option func(*Resolver)

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) { r.log = log }
}

// Resolver answers container questions against one registry. It never
// mutates its inputs.
type Resolver struct {
	registry *container.Registry
	log      logrus.FieldLogger
}

func New(registry *container.Registry, opts ...Option) *Resolver {
	r := &Resolver{registry: registry}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Resolver) Registry() *container.Registry { return r.registry }

// Resolve returns the name of the container for p at loc. It always returns
// a registered name.
func (r *Resolver) Resolve(p *placement.Placement, loc placement.Location) string {
	return r.Decide(p, loc).Container
}

// View returns the combined tag view of p and loc.
func View(p *placement.Placement, loc placement.Location) tags.View {
	if loc == nil {
		return tags.Combine(p.Tags())
	}
	return tags.Combine(p.Tags(), loc.Tags())
}

// Decide runs the selection steps and reports which one decided.
func (r *Resolver) Decide(p *placement.Placement, loc placement.Location) Decision {
	single := r.registry.DefaultSingle().Name

	if loc != nil && loc.ForceDefaultContainer() {
		return Decision{Container: single, Step: StepForcedDefault}
	}

	view := View(p, loc)
	requested := requestedMask(p, view)
	unsupported := unsupportedSet(view)
	original, hasOriginal := tags.Get[*container.OriginalContainerTag](view)

	d := Decision{Requested: uint32(requested)}
	supports := func(name string) bool { return loc != nil && loc.Supports(name) }
	log := logger.Or(r.log).WithFields(logrus.Fields{
		"placement": p.Name(),
		"location":  locationName(loc),
	})

	if hasOriginal && (original.Force || original.Priority) {
		if desc, ok := r.registry.Lookup(original.Container); ok {
			eligible := supports(desc.Name) && !unsupported[desc.Name] && desc.SupportsAll(requested)
			qualified := qualifies(desc, original)
			switch {
			case eligible && qualified:
				d.Container, d.Step = desc.Name, StepOriginal
				return d
			case original.Force:
				d.warn(log, desc.Name, "original container forced despite failing eligibility checks")
				if !qualified {
					d.warn(log, desc.Name, "forced original container can neither be instantiated nor modified in place")
				}
				d.Container, d.Step = desc.Name, StepForcedOriginal
				return d
			default:
				d.warn(log, desc.Name, "prioritized original container is not eligible; continuing")
			}
		}
	}

	for _, item := range p.Items() {
		name := item.PreferredContainer()
		if name == "" || !supports(name) || unsupported[name] {
			continue
		}
		desc, ok := r.registry.Lookup(name)
		if !ok || !qualifies(desc, original) || !desc.SupportsAll(requested) {
			continue
		}
		d.Container, d.Step = desc.Name, StepItemPreference
		return d
	}

	if hasOriginal && !original.LowPriority {
		if desc, ok := r.registry.Lookup(original.Container); ok && qualifies(desc, original) && desc.SupportsAll(requested) {
			d.Container, d.Step = desc.Name, StepOriginalFallback
			return d
		}
	}

	if multi := r.registry.DefaultMulti(); len(p.Items()) > 1 && !unsupported[multi.Name] &&
		qualifies(multi, original) && multi.SupportsAll(requested) {
		d.Container, d.Step = multi.Name, StepDefaultMulti
		return d
	}

	d.Container, d.Step = single, StepDefaultSingle
	return d
}

func (d *Decision) warn(log logrus.FieldLogger, name, msg string) {
	d.Warnings = append(d.Warnings, msg)
	log.WithField("container", name).Warn(msg)
}

// qualifies reports whether desc can present the items: the location's
// original container may be edited in place or instantiated, anything else
// must be instantiable.
func qualifies(desc *container.Descriptor, original *container.OriginalContainerTag) bool {
	if original != nil && desc.Name == original.Container {
		return desc.ModifyInPlace || desc.Instantiate
	}
	return desc.Instantiate
}

func requestedMask(p *placement.Placement, view tags.View) container.Capability {
	var mask container.Capability
	for tag := range tags.GetAll[*container.CapabilityRequestTag](view) {
		mask |= tag.Capabilities
	}
	if p.Cost() != nil {
		mask |= container.PayCosts
	}
	return mask
}

func unsupportedSet(view tags.View) map[string]bool {
	set := map[string]bool{}
	for tag := range tags.GetAll[*container.UnsupportedContainerTag](view) {
		for _, name := range tag.Containers {
			set[name] = true
		}
	}
	return set
}

func locationName(loc placement.Location) string {
	if loc == nil {
		return ""
	}
	return loc.Name()
}
