package tags

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"placecraft/internal/logger"
)

// List is the ordered tag set of a single owner. Order is insertion order and
// is meaningful: Get returns the first match.
type List struct {
	owner    Owner
	registry *Registry
	log      logrus.FieldLogger
	tags     []Tag
	loaded   bool
}

type Option func(*List)

// WithRegistry overrides the Default registry used for constraint checks.
func WithRegistry(r *Registry) Option {
	return func(l *List) {
		if r != nil {
			l.registry = r
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *List) {
		l.log = log
	}
}

func NewList(owner Owner, opts ...Option) *List {
	l := &List{owner: owner, registry: Default}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *List) Owner() Owner { return l.owner }

// Tags returns the tags in insertion order. A nil list has none.
func (l *List) Tags() []Tag {
	if l == nil {
		return nil
	}
	return l.tags
}

func (l *List) Len() int { return len(l.Tags()) }

// Loaded reports whether the owner's tags are currently loaded.
func (l *List) Loaded() bool { return l.loaded }

// Add attaches tag after checking its owner-kind constraint. When the owner is
// loaded the tag is loaded before it is appended.
func (l *List) Add(tag Tag) error {
	if err := l.registry.Check(tag, l.owner); err != nil {
		return err
	}
	if l.loaded {
		l.loadTag(tag)
	}
	l.tags = append(l.tags, tag)
	return nil
}

// AddAll checks every tag before attaching any of them.
func (l *List) AddAll(tags ...Tag) error {
	for _, tag := range tags {
		if err := l.registry.Check(tag, l.owner); err != nil {
			return err
		}
	}
	for _, tag := range tags {
		if l.loaded {
			l.loadTag(tag)
		}
		l.tags = append(l.tags, tag)
	}
	return nil
}

// Load loads every tag once. Failures are logged and do not stop the others.
func (l *List) Load() {
	if l == nil || l.loaded {
		return
	}
	for _, tag := range l.tags {
		l.loadTag(tag)
	}
	l.loaded = true
}

func (l *List) Unload() {
	if l == nil || !l.loaded {
		return
	}
	for _, tag := range l.tags {
		l.unloadTag(tag)
	}
	l.loaded = false
}

// Records encodes the list for persistence.
func (l *List) Records() ([]Record, error) {
	records := make([]Record, 0, l.Len())
	for _, tag := range l.Tags() {
		rec, err := Encode(tag)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Decode turns records into tags for this list without changing it. Every
// record must decode and satisfy the owner constraint.
func (l *List) Decode(records []Record) ([]Tag, error) {
	decoded := make([]Tag, 0, len(records))
	for _, rec := range records {
		tag, err := l.registry.Decode(rec)
		if err != nil {
			return nil, err
		}
		if err := l.registry.Check(tag, l.owner); err != nil {
			return nil, err
		}
		decoded = append(decoded, tag)
	}
	return decoded, nil
}

// Replace swaps in tags previously returned by Decode. A loaded list unloads
// the old tags and loads the new ones.
func (l *List) Replace(tags []Tag) {
	if l.loaded {
		for _, tag := range l.tags {
			l.unloadTag(tag)
		}
		for _, tag := range tags {
			l.loadTag(tag)
		}
	}
	l.tags = tags
}

// Restore replaces the list contents with decoded records. Nothing changes if
// any record fails to decode or violates a constraint.
func (l *List) Restore(records []Record) error {
	decoded, err := l.Decode(records)
	if err != nil {
		return err
	}
	l.Replace(decoded)
	return nil
}

func (l *List) loadTag(tag Tag) {
	if lt, ok := tag.(Loadable); ok {
		l.guard("load", tag, func() error { return lt.LoadTag(l.owner) })
	}
}

func (l *List) unloadTag(tag Tag) {
	if lt, ok := tag.(Loadable); ok {
		l.guard("unload", tag, func() error { return lt.UnloadTag(l.owner) })
	}
}

func (l *List) guard(phase string, tag Tag, fn func() error) {
	log := logger.Or(l.log).WithFields(logrus.Fields{
		"tag_type": tag.TagType(),
		"owner":    ownerName(l.owner),
		"phase":    phase,
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithError(oops.In("tags").Errorf("panic: %v", r)).Warn("tag lifecycle hook panicked")
		}
	}()
	if err := fn(); err != nil {
		log.WithError(fmt.Errorf("%s tag %s: %w", phase, tag.TagType(), err)).Warn("tag lifecycle hook failed")
	}
}
