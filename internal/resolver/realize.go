package resolver

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"placecraft/internal/container"
	"placecraft/internal/placement"
	"placecraft/internal/tags"
)

// Realization is what Realize did for one placement and location.
type Realization struct {
	Decision
	Modified bool           `json:"modified"`
	Info     container.Info `json:"info"`
}

// Realize resolves the container and asks its presenter to either edit the
// original object in place or create a fresh one. When the chosen descriptor
// cannot perform the operation the decision is made again once; a second
// failure is a configuration error.
func (r *Resolver) Realize(ctx context.Context, p *placement.Placement, loc placement.Location) (Realization, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		res, err := r.realizeOnce(ctx, p, loc)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, container.ErrConfiguration) {
			return res, err
		}
		lastErr = err
	}
	return Realization{}, oops.In("resolver").
		Code("realize_failed").
		With("placement", p.Name(), "location", locationName(loc)).
		Wrapf(lastErr, "placement %s cannot be realized", p.Name())
}

func (r *Resolver) realizeOnce(ctx context.Context, p *placement.Placement, loc placement.Location) (Realization, error) {
	d := r.Decide(p, loc)
	desc, ok := r.registry.Lookup(d.Container)
	if !ok {
		return Realization{Decision: d}, oops.In("resolver").
			With("container", d.Container).
			Wrapf(container.ErrConfiguration, "container %s is not registered", d.Container)
	}

	res := Realization{Decision: d, Info: r.Info(p, loc, d.Container)}
	original, hasOriginal := tags.Get[*container.OriginalContainerTag](View(p, loc))
	if hasOriginal && original.Container == desc.Name && desc.ModifyInPlace {
		res.Modified = true
		return res, desc.ModifyExisting(ctx, res.Info)
	}
	return res, desc.Create(ctx, res.Info)
}

// Info builds the metadata bundle handed to the presentation layer.
func (r *Resolver) Info(p *placement.Placement, loc placement.Location, containerName string) container.Info {
	info := container.Info{
		Container: containerName,
		Placement: p.Name(),
		Location:  locationName(loc),
	}
	for _, item := range p.Items() {
		info.Items = append(info.Items, item.Name())
	}
	if fling, ok := tags.Get[*container.FlingTag](View(p, loc)); ok {
		info.Fling = fling.Fling
	}
	if c := p.Cost(); c != nil {
		info.Cost = c.String()
	}
	return info
}
