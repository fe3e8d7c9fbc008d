// Package container holds the registry of container implementations: the
// concrete ways a placement's items can be presented in the world.
package container

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

var (
	ErrDuplicate      = errors.New("container already registered")
	ErrConfiguration  = errors.New("container configuration error")
	ErrInvalidDefault = errors.New("default container must support every capability and instantiation")
)

// Fling controls how dispensed items leave the container.
type Fling int

const (
	FlingEverywhere Fling = iota
	FlingStraightUp
	FlingDirectDeposit
)

func (f Fling) String() string {
	switch f {
	case FlingStraightUp:
		return "straight_up"
	case FlingDirectDeposit:
		return "direct_deposit"
	default:
		return "everywhere"
	}
}

// ParseFling accepts the names produced by String.
func ParseFling(s string) (Fling, error) {
	switch s {
	case "", "everywhere":
		return FlingEverywhere, nil
	case "straight_up":
		return FlingStraightUp, nil
	case "direct_deposit":
		return FlingDirectDeposit, nil
	}
	return FlingEverywhere, oops.In("container").Errorf("unknown fling %q", s)
}

func (f Fling) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Fling) UnmarshalText(b []byte) error {
	v, err := ParseFling(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Info is the metadata bundle handed to the presentation layer.
type Info struct {
	Container string
	Placement string
	Location  string
	Items     []string
	Fling     Fling
	Cost      string
}

// Presenter is implemented by the presentation layer for one container type.
type Presenter interface {
	Create(ctx context.Context, info Info) error
	ModifyExisting(ctx context.Context, info Info) error
}

// Descriptor describes one container implementation.
type Descriptor struct {
	Name          string
	Capabilities  Capability
	Instantiate   bool
	ModifyInPlace bool
	Presenter     Presenter
}

// SupportsAll reports whether every requested capability bit is advertised.
func (d *Descriptor) SupportsAll(mask Capability) bool {
	return d.Capabilities.Has(mask)
}

// Create builds a fresh container object. It fails with ErrConfiguration if
// the descriptor cannot be instantiated.
func (d *Descriptor) Create(ctx context.Context, info Info) error {
	if !d.Instantiate {
		return oops.In("container").
			Code("cannot_instantiate").
			With("container", d.Name, "placement", info.Placement).
			Wrapf(ErrConfiguration, "container %s cannot be instantiated", d.Name)
	}
	if d.Presenter == nil {
		return nil
	}
	return d.Presenter.Create(ctx, info)
}

// ModifyExisting edits the object already present at the location.
func (d *Descriptor) ModifyExisting(ctx context.Context, info Info) error {
	if !d.ModifyInPlace {
		return oops.In("container").
			Code("cannot_modify").
			With("container", d.Name, "placement", info.Placement).
			Wrapf(ErrConfiguration, "container %s cannot be modified in place", d.Name)
	}
	if d.Presenter == nil {
		return nil
	}
	return d.Presenter.ModifyExisting(ctx, info)
}
