package placement

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"placecraft/internal/logger"
)

// VisitState records what has happened to a placement. Bits are only ever
// added.
type VisitState uint32

const (
	VisitOpened VisitState = 1 << iota
	VisitDropped
	VisitAccepted
	VisitObtainedAnyItem
	VisitPreviewed
	VisitDeclined

	VisitNone VisitState = 0
)

var visitNames = []struct {
	flag VisitState
	name string
}{
	{VisitOpened, "opened"},
	{VisitDropped, "dropped"},
	{VisitAccepted, "accepted"},
	{VisitObtainedAnyItem, "obtained_any_item"},
	{VisitPreviewed, "previewed"},
	{VisitDeclined, "declined"},
}

// Has reports whether every bit of mask is set.
func (v VisitState) Has(mask VisitState) bool { return v&mask == mask }

func (v VisitState) String() string {
	if v == VisitNone {
		return "none"
	}
	var parts []string
	rest := v
	for _, n := range visitNames {
		if v&n.flag != 0 {
			parts = append(parts, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Flags lists the names of the known bits that are set.
func (v VisitState) Flags() []string {
	var out []string
	for _, n := range visitNames {
		if v&n.flag != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// ParseVisitFlag maps a flag name to its bit.
func ParseVisitFlag(name string) (VisitState, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, n := range visitNames {
		if n.name == key {
			return n.flag, nil
		}
	}
	return VisitNone, oops.In("placement").With("flag", name).Errorf("unknown visit flag %q", name)
}

// ParseVisitFlags unions several flag names.
func ParseVisitFlags(names []string) (VisitState, error) {
	var out VisitState
	for _, name := range names {
		flag, err := ParseVisitFlag(name)
		if err != nil {
			return VisitNone, err
		}
		out |= flag
	}
	return out, nil
}

// VisitChange describes one growth of a placement's visit state.
type VisitChange struct {
	ID        ulid.ULID
	Placement *Placement
	Added     VisitState
	Previous  VisitState
	At        time.Time
}

// Current is the state after the change is applied.
func (c VisitChange) Current() VisitState { return c.Previous | c.Added }

// VisitHandler observes visit state changes.
type VisitHandler func(VisitChange)

type subscribers struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	fn VisitHandler
}

func (s *subscribers) add(fn VisitHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() { s.remove(id) }
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *subscribers) snapshot() []subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]subscriber(nil), s.subs...)
}

// notify calls every subscriber in subscription order. A failing subscriber is
// logged and skipped.
func (s *subscribers) notify(log logrus.FieldLogger, channel string, change VisitChange) {
	for _, sub := range s.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Or(log).WithFields(logrus.Fields{
						"channel": channel,
						"added":   change.Added.String(),
					}).WithError(oops.In("placement").Errorf("panic: %v", r)).Warn("visit state subscriber failed")
				}
			}()
			sub.fn(change)
		}()
	}
}

var global subscribers

// Subscribe registers fn on the process-wide visit channel. Global subscribers
// run before the placement's own. The returned func unsubscribes.
func Subscribe(fn VisitHandler) func() {
	return global.add(fn)
}
