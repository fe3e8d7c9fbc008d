package placement

import (
	"placecraft/internal/give"
	"placecraft/internal/tags"
)

var (
	KindBasicItem     = tags.NewKind("basic", tags.KindItem)
	KindBasicLocation = tags.NewKind("basic", tags.KindLocation)
)

// Item is something a placement grants.
type Item interface {
	tags.Owner
	give.Grantable
	PreferredContainer() string
	Tags() *tags.List
	Load() error
	Unload() error
}

// BasicItem is the content-defined item the CLI builds from documents.
type BasicItem struct {
	name      string
	preferred string
	obtained  bool
	tags      *tags.List

	// OnGive runs the grant. It must call done when finished; a nil hook
	// completes immediately.
	OnGive func(item *BasicItem, info give.Info, done func())
}

func NewItem(name, preferred string, opts ...tags.Option) *BasicItem {
	it := &BasicItem{name: name, preferred: preferred}
	it.tags = tags.NewList(it, opts...)
	return it
}

func (it *BasicItem) Kind() *tags.Kind { return KindBasicItem }

func (it *BasicItem) Name() string { return it.name }

func (it *BasicItem) PreferredContainer() string { return it.preferred }

func (it *BasicItem) Tags() *tags.List { return it.tags }

func (it *BasicItem) Obtained() bool { return it.obtained }

// SetObtained overrides the obtained flag, e.g. when restoring a profile.
func (it *BasicItem) SetObtained(v bool) { it.obtained = v }

// Give marks the item obtained and then hands off to OnGive.
func (it *BasicItem) Give(info give.Info) {
	it.obtained = true
	done := info.Callback
	if done == nil {
		done = func() {}
	}
	if it.OnGive == nil {
		done()
		return
	}
	it.OnGive(it, info, done)
}

func (it *BasicItem) Load() error {
	it.tags.Load()
	return nil
}

func (it *BasicItem) Unload() error {
	it.tags.Unload()
	return nil
}
