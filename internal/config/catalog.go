package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"placecraft/internal/container"
)

// CapabilityAll grants every capability bit to a container.
const CapabilityAll = "all"

// Catalog lists the capabilities and containers a project can resolve to.
type Catalog struct {
	Version      int             `yaml:"version"`
	Capabilities []CapabilityDef `yaml:"capabilities"`
	Containers   []ContainerDef  `yaml:"containers"`
	Defaults     CatalogDefaults `yaml:"defaults"`

	capIndex  map[string]container.Capability
	contIndex map[string]*ContainerDef
}

type CapabilityDef struct {
	Name string `yaml:"name"`
	Bit  int    `yaml:"bit"`
}

type ContainerDef struct {
	Name          string   `yaml:"name"`
	Instantiate   bool     `yaml:"instantiate"`
	ModifyInPlace bool     `yaml:"modify_in_place"`
	Capabilities  []string `yaml:"capabilities"`
}

type CatalogDefaults struct {
	Single string `yaml:"single"`
	Multi  string `yaml:"multi"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if err := cat.index(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return &cat, nil
}

func (c *Catalog) index() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported version: %d", c.Version)
	}

	c.capIndex = map[string]container.Capability{"pay_costs": container.PayCosts}
	usedBits := map[int]string{0: "pay_costs"}
	for i, def := range c.Capabilities {
		name := strings.ToLower(strings.TrimSpace(def.Name))
		if name == "" {
			return fmt.Errorf("capability %d name is required", i)
		}
		if name == CapabilityAll {
			return fmt.Errorf("capability name %q is reserved", def.Name)
		}
		if def.Bit < 0 || def.Bit > 31 {
			return fmt.Errorf("capability %s bit %d out of range", def.Name, def.Bit)
		}
		if name == "pay_costs" && def.Bit == 0 {
			continue
		}
		if _, exists := c.capIndex[name]; exists {
			return fmt.Errorf("duplicate capability name: %s", def.Name)
		}
		if other, taken := usedBits[def.Bit]; taken {
			return fmt.Errorf("capability %s reuses bit %d of %s", def.Name, def.Bit, other)
		}
		usedBits[def.Bit] = name
		c.capIndex[name] = container.Capability(1) << def.Bit
	}

	if len(c.Containers) == 0 {
		return fmt.Errorf("at least one container is required")
	}
	c.contIndex = make(map[string]*ContainerDef)
	for i := range c.Containers {
		def := &c.Containers[i]
		if strings.TrimSpace(def.Name) == "" {
			return fmt.Errorf("container %d name is required", i)
		}
		if _, exists := c.contIndex[def.Name]; exists {
			return fmt.Errorf("duplicate container name: %s", def.Name)
		}
		if _, err := c.Mask(def.Capabilities); err != nil {
			return fmt.Errorf("container %s: %w", def.Name, err)
		}
		c.contIndex[def.Name] = def
	}

	if c.Defaults.Single == "" || c.Defaults.Multi == "" {
		return fmt.Errorf("defaults.single and defaults.multi are required")
	}
	for _, name := range []string{c.Defaults.Single, c.Defaults.Multi} {
		if _, ok := c.contIndex[name]; !ok {
			return fmt.Errorf("default container %s is not defined", name)
		}
	}
	return nil
}

// Mask converts capability names to a bitmask. The single name "all" yields
// every bit.
func (c *Catalog) Mask(names []string) (container.Capability, error) {
	var mask container.Capability
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == CapabilityAll {
			return container.All, nil
		}
		bit, ok := c.capIndex[key]
		if !ok {
			return 0, fmt.Errorf("unknown capability: %s", name)
		}
		mask |= bit
	}
	return mask, nil
}

// CapabilityNames lists declared capability names, pay_costs included.
func (c *Catalog) CapabilityNames() []string {
	names := make([]string, 0, len(c.capIndex))
	for name := range c.capIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names converts a mask back to capability names, sorted. Bits with no
// declared name are omitted.
func (c *Catalog) Names(mask container.Capability) []string {
	if mask == container.All {
		return []string{CapabilityAll}
	}
	names := make([]string, 0)
	for name, bit := range c.capIndex {
		if mask.Has(bit) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) ContainerByName(name string) (*ContainerDef, bool) {
	if c == nil {
		return nil, false
	}
	def, ok := c.contIndex[name]
	return def, ok
}

// Registry builds the container registry described by the catalog.
func (c *Catalog) Registry() (*container.Registry, error) {
	descriptor := func(def *ContainerDef) container.Descriptor {
		mask, _ := c.Mask(def.Capabilities)
		return container.Descriptor{
			Name:          def.Name,
			Capabilities:  mask,
			Instantiate:   def.Instantiate,
			ModifyInPlace: def.ModifyInPlace,
		}
	}

	single, _ := c.ContainerByName(c.Defaults.Single)
	multi, _ := c.ContainerByName(c.Defaults.Multi)
	reg, err := container.NewRegistry(descriptor(single), descriptor(multi))
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}
	for i := range c.Containers {
		def := &c.Containers[i]
		if def.Name == single.Name || def.Name == multi.Name {
			continue
		}
		if err := reg.Register(descriptor(def)); err != nil {
			return nil, fmt.Errorf("building registry: %w", err)
		}
	}
	return reg, nil
}
