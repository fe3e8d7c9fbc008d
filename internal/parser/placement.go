package parser

import (
	_ "embed"
	"encoding/json"
	"maps"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed placement.schema.json
var placementSchemaSource string

var placementSchema = jsonschema.MustCompileString("placement.schema.json", placementSchemaSource)

// PlacementSpec is the frontmatter of a placement document.
type PlacementSpec struct {
	Name      string         `json:"title"`
	Items     []ItemSpec     `json:"items"`
	Locations []LocationSpec `json:"locations"`
	Tags      []TagSpec      `json:"tags"`
	Cost      *CostSpec      `json:"cost"`
}

type ItemSpec struct {
	Name      string    `json:"name"`
	Container string    `json:"container"`
	Obtained  bool      `json:"obtained"`
	Tags      []TagSpec `json:"tags"`
}

type LocationSpec struct {
	Name         string    `json:"name"`
	Supports     []string  `json:"supports"`
	ForceDefault bool      `json:"force_default"`
	Tags         []TagSpec `json:"tags"`
}

type CostSpec struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
}

// TagSpec is a typed tag as written by authors: a map whose "type" key names
// the tag type and whose other keys are its fields.
type TagSpec map[string]any

func (t TagSpec) Type() string {
	s, _ := t["type"].(string)
	return s
}

// Fields returns the tag's fields without the type key.
func (t TagSpec) Fields() map[string]any {
	out := maps.Clone(map[string]any(t))
	delete(out, "type")
	return out
}

// Data encodes the fields as JSON.
func (t TagSpec) Data() (json.RawMessage, error) {
	return json.Marshal(t.Fields())
}

// parsePlacement validates the frontmatter against the placement schema and
// decodes it. YAML values are normalised through JSON first so the validator
// only sees JSON types.
func parsePlacement(frontmatter map[string]any) (*PlacementSpec, error) {
	raw, err := json.Marshal(frontmatter)
	if err != nil {
		return nil, wrapInvalid(err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, wrapInvalid(err)
	}
	if err := placementSchema.Validate(generic); err != nil {
		return nil, wrapInvalid(err)
	}

	var spec PlacementSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, wrapInvalid(err)
	}
	return &spec, nil
}
