package container

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Registry stores descriptors keyed by name. The two defaults are always
// present and must satisfy any capability request.
type Registry struct {
	mu            sync.RWMutex
	byName        map[string]*Descriptor
	defaultSingle *Descriptor
	defaultMulti  *Descriptor
}

// NewRegistry registers single and multi as the default single-item and
// multi-item containers. Both must advertise All capabilities and support
// instantiation.
func NewRegistry(single, multi Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Descriptor)}
	for _, d := range []Descriptor{single, multi} {
		if d.Capabilities != All || !d.Instantiate {
			return nil, oops.In("container").
				With("container", d.Name).
				Wrapf(ErrInvalidDefault, "default %s", d.Name)
		}
	}
	if err := r.Register(single); err != nil {
		return nil, err
	}
	if single.Name != multi.Name {
		if err := r.Register(multi); err != nil {
			return nil, err
		}
	}
	r.defaultSingle, _ = r.Lookup(single.Name)
	r.defaultMulti, _ = r.Lookup(multi.Name)
	return r, nil
}

// Register adds d. Names are unique; registering an existing name fails.
func (r *Registry) Register(d Descriptor) error {
	if strings.TrimSpace(d.Name) == "" {
		return oops.In("container").Errorf("container name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[d.Name]; exists {
		return oops.In("container").With("container", d.Name).Wrapf(ErrDuplicate, "register %s", d.Name)
	}
	desc := d
	r.byName[d.Name] = &desc
	return nil
}

func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) DefaultSingle() *Descriptor { return r.defaultSingle }

func (r *Registry) DefaultMulti() *Descriptor { return r.defaultMulti }

// Names returns registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
