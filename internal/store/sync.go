package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"placecraft/internal/logger"
	"placecraft/internal/placement"
	"placecraft/internal/profile"
)

// StateStore is the state half of Store.
type StateStore interface {
	SaveState(ctx context.Context, st profile.State) error
	ListStates(ctx context.Context) ([]profile.State, error)
}

// EventStore is the visit event half of Store.
type EventStore interface {
	AppendVisitEvent(ctx context.Context, e VisitEvent) error
}

// Hydrate applies every saved state to the matching placement in prof.
// States for placements no longer in the profile are ignored. A state that
// no longer fits its placement is logged and skipped, leaving the authored
// state in place; only a failure to list states is returned.
func Hydrate(ctx context.Context, s StateStore, prof *profile.Profile) error {
	states, err := s.ListStates(ctx)
	if err != nil {
		return fmt.Errorf("listing states: %w", err)
	}
	for _, st := range states {
		p, ok := prof.Get(st.Placement)
		if !ok {
			logger.Log.WithField("placement", st.Placement).Debug("saved state has no placement")
			continue
		}
		if err := profile.Apply(p, st); err != nil {
			logger.Log.WithError(err).WithField("placement", st.Placement).Warn("saved state skipped")
		}
	}
	return nil
}

// Persist saves the current state of p.
func Persist(ctx context.Context, s StateStore, p *placement.Placement) error {
	st, err := profile.StateOf(p)
	if err != nil {
		return fmt.Errorf("capturing state for %s: %w", p.Name(), err)
	}
	if err := s.SaveState(ctx, st); err != nil {
		return fmt.Errorf("saving state for %s: %w", p.Name(), err)
	}
	return nil
}

// RecordVisits appends every process-wide visit change to s until the
// returned function is called. Write failures are logged.
func RecordVisits(ctx context.Context, s EventStore, log logrus.FieldLogger) func() {
	log = logger.Or(log)
	return placement.Subscribe(func(c placement.VisitChange) {
		e := EventFromChange(c)
		if err := s.AppendVisitEvent(ctx, e); err != nil {
			log.WithError(err).WithField("placement", e.Placement).Warn("recording visit event failed")
		}
	})
}
