package tags

import "strings"

// Kind identifies the runtime kind of a taggable entity. Kinds form a tree:
// a kind is assignable to itself and to every ancestor.
type Kind struct {
	name   string
	parent *Kind
}

var (
	KindItem      = NewKind("item", nil)
	KindLocation  = NewKind("location", nil)
	KindPlacement = NewKind("placement", nil)
)

// NewKind returns a kind named name below parent. A nil parent creates a root.
func NewKind(name string, parent *Kind) *Kind {
	return &Kind{name: name, parent: parent}
}

func (k *Kind) Name() string {
	if k == nil {
		return ""
	}
	return k.name
}

func (k *Kind) Parent() *Kind {
	if k == nil {
		return nil
	}
	return k.parent
}

// AssignableTo reports whether an entity of kind k may stand in for target.
func (k *Kind) AssignableTo(target *Kind) bool {
	if target == nil {
		return false
	}
	for cur := k; cur != nil; cur = cur.parent {
		if cur == target {
			return true
		}
	}
	return false
}

// String renders the path from the root, e.g. "location/shop".
func (k *Kind) String() string {
	if k == nil {
		return "<nil>"
	}
	var parts []string
	for cur := k; cur != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}
