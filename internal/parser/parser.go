package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TypePlacement marks documents that define a placement.
const TypePlacement = "placement"

type Document struct {
	Frontmatter map[string]any
	Title       string
	Type        string
	Body        string
	SourceFile  string

	// Placement is set for documents of type placement.
	Placement *PlacementSpec
}

var (
	ErrNoFrontmatter   = errors.New("no frontmatter found")
	ErrInvalidYAML     = errors.New("invalid YAML in frontmatter")
	ErrMissingTitle    = errors.New("frontmatter missing required 'title' field")
	ErrMissingType     = errors.New("frontmatter missing required 'type' field")
	ErrInvalidDocument = errors.New("document does not match its schema")
)

func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = path
	return doc, nil
}

func Parse(content []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(content, "\ufeff\n\r\t ")
	trimmed = bytes.ReplaceAll(trimmed, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(trimmed, []byte("---\n")) {
		return nil, ErrNoFrontmatter
	}

	rest := trimmed[len("---\n"):]
	end := closingFence(rest)
	if end == -1 {
		return nil, ErrNoFrontmatter
	}

	yamlBytes := rest[:end]
	body := strings.TrimPrefix(string(rest[end+len("---"):]), "\n")

	var frontmatter map[string]any
	if err := yaml.Unmarshal(yamlBytes, &frontmatter); err != nil {
		return nil, ErrInvalidYAML
	}

	title, ok := frontmatter["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, ErrMissingTitle
	}

	docType, ok := frontmatter["type"].(string)
	if !ok || strings.TrimSpace(docType) == "" {
		return nil, ErrMissingType
	}

	doc := &Document{
		Frontmatter: frontmatter,
		Title:       title,
		Type:        docType,
		Body:        body,
	}

	if docType == TypePlacement {
		spec, err := parsePlacement(frontmatter)
		if err != nil {
			return nil, err
		}
		doc.Placement = spec
	}

	return doc, nil
}

// closingFence finds a "---" line that ends the frontmatter.
func closingFence(rest []byte) int {
	if bytes.HasPrefix(rest, []byte("---\n")) || bytes.Equal(rest, []byte("---")) {
		return 0
	}
	if i := bytes.Index(rest, []byte("\n---\n")); i != -1 {
		return i + 1
	}
	if bytes.HasSuffix(rest, []byte("\n---")) {
		return len(rest) - len("---")
	}
	return -1
}

// IsMarkdown reports whether path names a markdown file.
func IsMarkdown(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}

func wrapInvalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
}
