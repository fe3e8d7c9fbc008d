package ingest

import (
	"fmt"

	"placecraft/internal/config"
	"placecraft/internal/container"
	"placecraft/internal/parser"
	"placecraft/internal/placement"
	"placecraft/internal/tags"
)

// Build turns a parsed placement document into a placement. Capability names
// are resolved against catalog; tag constraint violations are errors.
func Build(doc *parser.Document, catalog *config.Catalog, opts ...placement.Option) (*placement.Placement, error) {
	if doc == nil || doc.Placement == nil {
		return nil, fmt.Errorf("document is not a placement")
	}
	spec := doc.Placement

	items := make([]placement.Item, 0, len(spec.Items))
	for _, is := range spec.Items {
		item := placement.NewItem(is.Name, is.Container)
		item.SetObtained(is.Obtained)
		if err := attach(item.Tags(), is.Tags, catalog); err != nil {
			return nil, fmt.Errorf("item %s: %w", is.Name, err)
		}
		items = append(items, item)
	}

	locs := make([]placement.Location, 0, len(spec.Locations))
	for _, ls := range spec.Locations {
		supports := ls.Supports
		if len(supports) == 0 {
			supports = []string{placement.SupportsAll}
		}
		loc := placement.NewLocation(ls.Name, supports, ls.ForceDefault)
		if err := attach(loc.Tags(), ls.Tags, catalog); err != nil {
			return nil, fmt.Errorf("location %s: %w", ls.Name, err)
		}
		locs = append(locs, loc)
	}

	all := append([]placement.Option{
		placement.WithItems(items...),
		placement.WithLocations(locs...),
	}, opts...)
	if spec.Cost != nil {
		all = append(all, placement.WithCost(&placement.Cost{Kind: spec.Cost.Kind, Amount: spec.Cost.Amount}))
	}

	p := placement.New(doc.Title, all...)
	if err := attach(p.Tags(), spec.Tags, catalog); err != nil {
		return nil, err
	}
	return p, nil
}

func attach(list *tags.List, specs []parser.TagSpec, catalog *config.Catalog) error {
	for _, spec := range specs {
		tag, err := decodeTag(spec, catalog)
		if err != nil {
			return err
		}
		if err := list.Add(tag); err != nil {
			return err
		}
	}
	return nil
}

// decodeTag maps an authored tag onto its declared type. capability_request
// is written with names and stored as a mask, so it bypasses the generic
// decoder.
func decodeTag(spec parser.TagSpec, catalog *config.Catalog) (tags.Tag, error) {
	if spec.Type() == container.TagCapabilityRequest {
		names, err := stringList(spec["capabilities"])
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", spec.Type(), err)
		}
		mask, err := catalog.Mask(names)
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", spec.Type(), err)
		}
		return &container.CapabilityRequestTag{Capabilities: mask}, nil
	}

	data, err := spec.Data()
	if err != nil {
		return nil, fmt.Errorf("tag %s: %w", spec.Type(), err)
	}
	return tags.Default.Decode(tags.Record{Type: spec.Type(), Data: data})
}

func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			s, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("expected a list of names, got %T", entry)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of names, got %T", value)
	}
}
