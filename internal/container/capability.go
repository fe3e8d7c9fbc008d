package container

import (
	"fmt"
	"math/bits"
	"strings"
)

// Capability is a bitset of optional behaviours a container can provide.
type Capability uint32

const (
	// PayCosts is reserved: placements carrying a cost always request it.
	PayCosts Capability = 1 << 0

	None Capability = 0
	All  Capability = ^Capability(0)
)

// Has reports whether every bit of mask is set in c.
func (c Capability) Has(mask Capability) bool {
	return c&mask == mask
}

func (c Capability) String() string {
	switch c {
	case None:
		return "none"
	case All:
		return "all"
	}
	parts := make([]string, 0, bits.OnesCount32(uint32(c)))
	for bit := 0; bit < 32; bit++ {
		if c&(1<<bit) == 0 {
			continue
		}
		if bit == 0 {
			parts = append(parts, "pay_costs")
			continue
		}
		parts = append(parts, fmt.Sprintf("bit%d", bit))
	}
	return strings.Join(parts, "|")
}
