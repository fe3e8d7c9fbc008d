package container

import "placecraft/internal/tags"

// Tag type names as they appear in content files and persisted records.
const (
	TagCapabilityRequest    = "capability_request"
	TagUnsupportedContainer = "unsupported_container"
	TagOriginalContainer    = "original_container"
	TagFling                = "fling"
)

// CapabilityRequestTag asks the resolver for containers advertising every
// listed bit.
type CapabilityRequestTag struct {
	Capabilities Capability `json:"capabilities"`
}

func (*CapabilityRequestTag) TagType() string { return TagCapabilityRequest }

// UnsupportedContainerTag excludes containers by name.
type UnsupportedContainerTag struct {
	Containers []string `json:"containers"`
}

func (*UnsupportedContainerTag) TagType() string { return TagUnsupportedContainer }

// OriginalContainerTag names the container natively present at a location.
// Force beats Priority; LowPriority keeps it out of the location fallback.
type OriginalContainerTag struct {
	Container   string `json:"container"`
	Force       bool   `json:"force,omitempty"`
	Priority    bool   `json:"priority,omitempty"`
	LowPriority bool   `json:"low_priority,omitempty"`
}

func (*OriginalContainerTag) TagType() string { return TagOriginalContainer }

// FlingTag picks the fling behaviour passed to the presentation layer.
type FlingTag struct {
	Fling Fling `json:"fling"`
}

func (*FlingTag) TagType() string { return TagFling }

func init() {
	tags.MustDeclare(tags.TypeSpec{
		Name: TagCapabilityRequest,
		New:  func() tags.Tag { return &CapabilityRequestTag{} },
	})
	tags.MustDeclare(tags.TypeSpec{
		Name:  TagUnsupportedContainer,
		Kinds: []*tags.Kind{tags.KindLocation, tags.KindPlacement},
		New:   func() tags.Tag { return &UnsupportedContainerTag{} },
	})
	tags.MustDeclare(tags.TypeSpec{
		Name:  TagOriginalContainer,
		Kinds: []*tags.Kind{tags.KindLocation},
		New:   func() tags.Tag { return &OriginalContainerTag{} },
	})
	tags.MustDeclare(tags.TypeSpec{
		Name:  TagFling,
		Kinds: []*tags.Kind{tags.KindLocation, tags.KindPlacement},
		New:   func() tags.Tag { return &FlingTag{} },
	})
}
