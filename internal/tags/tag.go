// Package tags attaches ordered, typed metadata records to items, locations
// and placements. Each tag type may be restricted to a set of owner kinds;
// the restriction is looked up in a Registry when the tag is attached.
package tags

import (
	"errors"
	"iter"
)

var (
	ErrConstraint    = errors.New("tag not applicable to owner")
	ErrUnknownType   = errors.New("unknown tag type")
	ErrDuplicateType = errors.New("tag type already declared")
	ErrNilTag        = errors.New("nil tag")
)

// Tag is a metadata record. TagType must be stable: it keys the registry and
// the persisted form.
type Tag interface {
	TagType() string
}

// Loadable tags take part in their owner's load/unload lifecycle.
type Loadable interface {
	LoadTag(owner Owner) error
	UnloadTag(owner Owner) error
}

// Owner is an entity tags can be attached to.
type Owner interface {
	Kind() *Kind
	Name() string
}

// Source is anything exposing an ordered tag sequence. The returned slice
// must not be modified.
type Source interface {
	Tags() []Tag
}

// Get returns the first tag of type T in insertion order.
func Get[T Tag](s Source) (T, bool) {
	for _, tag := range s.Tags() {
		if v, ok := tag.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Has reports whether s carries at least one tag of type T.
func Has[T Tag](s Source) bool {
	_, ok := Get[T](s)
	return ok
}

// GetAll lazily yields every tag of type T in insertion order.
func GetAll[T Tag](s Source) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, tag := range s.Tags() {
			if v, ok := tag.(T); ok {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// GetOrAdd returns the first tag of type T, attaching create() when none is
// present.
func GetOrAdd[T Tag](l *List, create func() T) (T, error) {
	if v, ok := Get[T](l); ok {
		return v, nil
	}
	v := create()
	if err := l.Add(v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// AddNew attaches a zero-valued *T and returns it.
func AddNew[T any, P interface {
	*T
	Tag
}](l *List) (P, error) {
	tag := P(new(T))
	if err := l.Add(tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// RemoveAll detaches every tag of type T, unloading each first when the owner
// is loaded. It returns the number of removed tags.
func RemoveAll[T Tag](l *List) int {
	kept := make([]Tag, 0, len(l.tags))
	removed := 0
	for _, tag := range l.tags {
		if _, ok := tag.(T); ok {
			if l.loaded {
				l.unloadTag(tag)
			}
			removed++
			continue
		}
		kept = append(kept, tag)
	}
	l.tags = kept
	return removed
}

// View concatenates several sources, e.g. placement tags followed by
// location tags. Nil sources, including a nil *List, contribute nothing.
type View []Source

func Combine(sources ...Source) View {
	return View(sources)
}

func (v View) Tags() []Tag {
	var out []Tag
	for _, src := range v {
		if src == nil {
			continue
		}
		out = append(out, src.Tags()...)
	}
	return out
}
