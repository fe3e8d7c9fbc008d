package tags

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// TypeSpec declares a tag type. Kinds lists the owner kinds the tag may be
// attached to; an empty list leaves the tag unconstrained. New must return a
// pointer so persisted records can be decoded into it.
type TypeSpec struct {
	Name  string
	Kinds []*Kind
	New   func() Tag
}

// Registry maps tag type names to their declarations.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TypeSpec
}

// Default holds the built-in tag types and anything declared through the
// package-level helpers.
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]TypeSpec)}
}

// Declare registers spec with the Default registry.
func Declare(spec TypeSpec) error {
	return Default.Declare(spec)
}

// MustDeclare is Declare for package initialisation.
func MustDeclare(spec TypeSpec) {
	if err := Default.Declare(spec); err != nil {
		panic(err)
	}
}

func (r *Registry) Declare(spec TypeSpec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return oops.In("tags").Errorf("tag type name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return oops.In("tags").With("tag_type", name).Wrapf(ErrDuplicateType, "declare %s", name)
	}
	spec.Name = name
	r.types[name] = spec
	return nil
}

func (r *Registry) Lookup(name string) (TypeSpec, bool) {
	if r == nil {
		return TypeSpec{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.types[name]
	return spec, ok
}

// Names returns declared type names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

// Check verifies that tag may be attached to owner. Undeclared types are
// unconstrained.
func (r *Registry) Check(tag Tag, owner Owner) error {
	if tag == nil {
		return oops.In("tags").Wrapf(ErrNilTag, "attach to %s", ownerName(owner))
	}
	spec, ok := r.Lookup(tag.TagType())
	if !ok || len(spec.Kinds) == 0 {
		return nil
	}
	var kind *Kind
	if owner != nil {
		kind = owner.Kind()
	}
	for _, allowed := range spec.Kinds {
		if kind.AssignableTo(allowed) {
			return nil
		}
	}
	return oops.In("tags").
		Code("tag_constraint").
		With("tag_type", tag.TagType(), "owner_kind", kind.String(), "owner", ownerName(owner)).
		Wrap(&ConstraintError{TagType: tag.TagType(), OwnerKind: kind.String(), Owner: ownerName(owner)})
}

// ConstraintError names the tag type and the owner it was rejected by.
type ConstraintError struct {
	TagType   string
	OwnerKind string
	Owner     string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("tag %s cannot be attached to %s %q", e.TagType, e.OwnerKind, e.Owner)
}

func (e *ConstraintError) Unwrap() error { return ErrConstraint }

// Record is the persisted form of a tag.
type Record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Encode(tag Tag) (Record, error) {
	if tag == nil {
		return Record{}, oops.In("tags").Wrapf(ErrNilTag, "encode")
	}
	data, err := json.Marshal(tag)
	if err != nil {
		return Record{}, oops.In("tags").With("tag_type", tag.TagType()).Wrapf(err, "encode %s", tag.TagType())
	}
	return Record{Type: tag.TagType(), Data: data}, nil
}

// Decode rebuilds a tag from its record using the declared constructor.
func (r *Registry) Decode(rec Record) (Tag, error) {
	spec, ok := r.Lookup(rec.Type)
	if !ok || spec.New == nil {
		return nil, oops.In("tags").With("tag_type", rec.Type).Wrapf(ErrUnknownType, "decode %s", rec.Type)
	}
	tag := spec.New()
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, tag); err != nil {
			return nil, oops.In("tags").With("tag_type", rec.Type).Wrapf(err, "decode %s", rec.Type)
		}
	}
	return tag, nil
}

func ownerName(owner Owner) string {
	if owner == nil {
		return ""
	}
	return owner.Name()
}
