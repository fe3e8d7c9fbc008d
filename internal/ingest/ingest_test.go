package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"placecraft/internal/config"
	"placecraft/internal/container"
	"placecraft/internal/parser"
	"placecraft/internal/profile"
	"placecraft/internal/store"
	"placecraft/internal/tags"
)

const testCatalog = `
version: 1
capabilities:
  - { name: glow, bit: 1 }
  - { name: animate, bit: 2 }
containers:
  - { name: Default, instantiate: true, capabilities: [all] }
  - { name: DefaultMulti, instantiate: true, capabilities: [all] }
  - { name: Chest, instantiate: true, modify_in_place: true, capabilities: [animate] }
  - { name: Shop, instantiate: true, capabilities: [pay_costs] }
  - { name: Barrel, modify_in_place: true }
defaults:
  single: Default
  multi: DefaultMulti
`

type mockStore struct {
	upserts      []store.PlacementInput
	removeCalls  []removeCall
	ensureCalled bool
	failUpsert   string
	layerHashes  map[string]map[string]string
}

type removeCall struct {
	layer string
	files []string
}

func (m *mockStore) EnsureSchema(ctx context.Context) error {
	m.ensureCalled = true
	return nil
}

func (m *mockStore) UpsertPlacement(ctx context.Context, p store.PlacementInput) error {
	if m.failUpsert != "" && p.Name == m.failUpsert {
		return errors.New("forced error")
	}
	m.upserts = append(m.upserts, p)
	return nil
}

func (m *mockStore) RemoveStalePlacements(ctx context.Context, layer string, currentSourceFiles []string) (int64, error) {
	m.removeCalls = append(m.removeCalls, removeCall{layer: layer, files: currentSourceFiles})
	return 0, nil
}

func (m *mockStore) GetLayerHashes(ctx context.Context, layer string) (map[string]string, error) {
	if hashes, ok := m.layerHashes[layer]; ok {
		return hashes, nil
	}
	return map[string]string{}, nil
}

func (m *mockStore) upserted(name string) *store.PlacementInput {
	for i := range m.upserts {
		if m.upserts[i].Name == name {
			return &m.upserts[i]
		}
	}
	return nil
}

func TestBuild(t *testing.T) {
	doc, err := parser.ParseFile(filepath.Join("testdata", "world", "sunken_chest.md"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	p, err := Build(doc, testCatalogConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if p.Name() != "Sunken Chest" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	if len(p.Items()) != 2 || p.Items()[0].PreferredContainer() != "Chest" {
		t.Fatalf("unexpected items: %#v", p.Items())
	}
	if p.Cost() != nil {
		t.Fatalf("expected no cost, got %v", p.Cost())
	}

	req, ok := tags.Get[*container.CapabilityRequestTag](p.Tags())
	if !ok {
		t.Fatalf("expected capability request tag")
	}
	if req.Capabilities != container.Capability(1<<2) {
		t.Fatalf("expected animate bit, got %v", req.Capabilities)
	}
	fling, ok := tags.Get[*container.FlingTag](p.Tags())
	if !ok || fling.Fling != container.FlingStraightUp {
		t.Fatalf("expected straight_up fling")
	}

	loc, ok := p.Location("shipwreck")
	if !ok {
		t.Fatalf("expected shipwreck location")
	}
	if !loc.Supports("Barrel") {
		t.Fatalf("expected location without supports to accept any container")
	}
	if loc.Placement() != p {
		t.Fatalf("expected location to point back at its placement")
	}
	orig, ok := tags.Get[*container.OriginalContainerTag](loc.Tags())
	if !ok || orig.Container != "Chest" || !orig.Priority {
		t.Fatalf("unexpected original container tag: %#v", orig)
	}
}

func TestBuild_Cost(t *testing.T) {
	doc, err := parser.ParseFile(filepath.Join("testdata", "world", "merchant.md"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, err := Build(doc, testCatalogConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if p.Cost() == nil || p.Cost().String() != "25 gold" {
		t.Fatalf("unexpected cost: %v", p.Cost())
	}
	loc, _ := p.Location("market stall")
	if loc.Supports("Chest") || !loc.Supports("Shop") {
		t.Fatalf("unexpected supports for market stall")
	}
}

func TestBuild_RejectsTagOnWrongOwner(t *testing.T) {
	doc, err := parser.ParseFile(filepath.Join("testdata", "dupes", "bad_tag.md"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = Build(doc, testCatalogConfig(t))
	if !errors.Is(err, tags.ErrConstraint) {
		t.Fatalf("expected constraint error, got %v", err)
	}
}

func TestBuild_UnknownCapability(t *testing.T) {
	doc, err := parser.Parse([]byte("---\ntitle: Odd\ntype: placement\ntags:\n  - type: capability_request\n    capabilities: [teleport]\n---\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = Build(doc, testCatalogConfig(t))
	if err == nil || !strings.Contains(err.Error(), "unknown capability") {
		t.Fatalf("expected unknown capability error, got %v", err)
	}
}

func TestBuild_UnknownTagType(t *testing.T) {
	doc, err := parser.Parse([]byte("---\ntitle: Odd\ntype: placement\ntags:\n  - type: sparkle\n---\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = Build(doc, testCatalogConfig(t))
	if !errors.Is(err, tags.ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	prof, errs := Load(testProjectConfig(t), testCatalogConfig(t))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if prof.Len() != 2 {
		t.Fatalf("expected 2 placements, got %d", prof.Len())
	}
	if _, ok := prof.Get("harbour merchant"); !ok {
		t.Fatalf("expected case-insensitive lookup of Harbour Merchant")
	}
	if _, ok := prof.Get("Unfinished"); ok {
		t.Fatalf("expected drafts to be excluded")
	}
	if _, ok := prof.Get("Old Draft"); ok {
		t.Fatalf("expected *.draft.md to be excluded")
	}
}

func TestLoad_CollectsErrors(t *testing.T) {
	cfg := &config.ProjectConfig{
		Project: "test",
		Version: 1,
		Layers: []config.Layer{{
			Name:  "dupes",
			Paths: []string{filepath.Join("testdata", "dupes")},
		}},
	}

	prof, errs := Load(cfg, testCatalogConfig(t))
	if prof.Len() != 1 {
		t.Fatalf("expected only the first tide pool to load, got %d", prof.Len())
	}

	var dup, constraint bool
	for _, err := range errs {
		dup = dup || errors.Is(err, profile.ErrDuplicatePlacement)
		constraint = constraint || errors.Is(err, tags.ErrConstraint)
	}
	if !dup || !constraint {
		t.Fatalf("expected duplicate and constraint errors, got %v", errs)
	}
}

func TestRun_BasicIngestion(t *testing.T) {
	db := &mockStore{}

	result, err := Run(context.Background(), testProjectConfig(t), testCatalogConfig(t), db, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !db.ensureCalled {
		t.Fatalf("expected ensure schema")
	}
	if result.PlacementsUpserted != 2 || len(db.upserts) != 2 {
		t.Fatalf("expected 2 placements upserted, got %d", result.PlacementsUpserted)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	chest := db.upserted("Sunken Chest")
	if chest == nil {
		t.Fatalf("expected Sunken Chest upsert")
	}
	if chest.Layer != "world" || chest.SourceHash == "" {
		t.Fatalf("unexpected upsert: %#v", chest)
	}
	if strings.Join(chest.Items, ",") != "silver key,map fragment" {
		t.Fatalf("unexpected items: %v", chest.Items)
	}
	if !strings.Contains(chest.Body, "half-buried") {
		t.Fatalf("expected body to be stored")
	}

	var def parser.PlacementSpec
	if err := json.Unmarshal(chest.Definition, &def); err != nil {
		t.Fatalf("decode definition: %v", err)
	}
	if def.Name != "Sunken Chest" || len(def.Locations) != 1 {
		t.Fatalf("unexpected definition: %#v", def)
	}
}

func TestRun_SkipsNonPlacements(t *testing.T) {
	result, err := Run(context.Background(), testProjectConfig(t), testCatalogConfig(t), &mockStore{}, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// notes.md has no frontmatter, harbour.md is a region.
	if result.FilesSkipped != 2 {
		t.Fatalf("expected 2 files skipped, got %d", result.FilesSkipped)
	}
}

func TestRun_ContinuesOnError(t *testing.T) {
	db := &mockStore{failUpsert: "Sunken Chest"}

	result, err := Run(context.Background(), testProjectConfig(t), testCatalogConfig(t), db, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}
	if db.upserted("Harbour Merchant") == nil {
		t.Fatalf("expected remaining placements to be ingested")
	}
}

func TestRun_DuplicateNames(t *testing.T) {
	cfg := &config.ProjectConfig{
		Project: "test",
		Version: 1,
		Layers: []config.Layer{{
			Name:  "dupes",
			Paths: []string{filepath.Join("testdata", "dupes")},
		}},
	}
	db := &mockStore{}

	result, err := Run(context.Background(), cfg, testCatalogConfig(t), db, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.PlacementsUpserted != 1 {
		t.Fatalf("expected 1 upsert, got %d", result.PlacementsUpserted)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected duplicate and constraint errors, got %v", result.Errors)
	}
}

func TestRun_RemoveStalePlacements(t *testing.T) {
	db := &mockStore{}

	_, err := Run(context.Background(), testProjectConfig(t), testCatalogConfig(t), db, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(db.removeCalls) != 1 {
		t.Fatalf("expected remove stale placements call")
	}
	files := db.removeCalls[0].files
	if len(files) != 4 {
		t.Fatalf("expected the 4 walked files, got %v", files)
	}
	for _, f := range files {
		if strings.Contains(f, "drafts") || strings.HasSuffix(f, ".draft.md") {
			t.Fatalf("excluded file %s passed as current", f)
		}
	}
}

func TestRun_IncrementalSkip(t *testing.T) {
	path := filepath.Join("testdata", "world", "sunken_chest.md")
	hash, err := computeHash(path)
	if err != nil {
		t.Fatalf("compute hash: %v", err)
	}
	db := &mockStore{
		layerHashes: map[string]map[string]string{
			"world": {path: hash},
		},
	}

	_, err = Run(context.Background(), testProjectConfig(t), testCatalogConfig(t), db, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if db.upserted("Sunken Chest") != nil {
		t.Fatalf("expected Sunken Chest to be skipped")
	}
	if db.upserted("Harbour Merchant") == nil {
		t.Fatalf("expected Harbour Merchant to be ingested")
	}
}

func TestRun_IncrementalDuplicateOfUnchangedFile(t *testing.T) {
	path := filepath.Join("testdata", "dupes", "a.md")
	hash, err := computeHash(path)
	if err != nil {
		t.Fatalf("compute hash: %v", err)
	}
	cfg := &config.ProjectConfig{
		Project: "test",
		Version: 1,
		Layers: []config.Layer{{
			Name:  "dupes",
			Paths: []string{filepath.Join("testdata", "dupes")},
		}},
	}
	db := &mockStore{
		layerHashes: map[string]map[string]string{
			"dupes": {path: hash},
		},
	}

	result, err := Run(context.Background(), cfg, testCatalogConfig(t), db, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(db.upserts) != 0 {
		t.Fatalf("expected no upserts, got %v", db.upserts)
	}
	var dup bool
	for _, e := range result.Errors {
		if errors.Is(e, profile.ErrDuplicatePlacement) && strings.Contains(e.Error(), "b.md") {
			dup = true
		}
	}
	if !dup {
		t.Fatalf("expected b.md reported as duplicate, got %v", result.Errors)
	}

	prof, _ := Load(cfg, testCatalogConfig(t))
	p, ok := prof.Get("tide pool")
	if !ok || p.Items()[0].Name() != "shell" {
		t.Fatalf("expected Load to keep a.md's placement")
	}
}

func TestRun_FullIngestionOverridesHashes(t *testing.T) {
	path := filepath.Join("testdata", "world", "sunken_chest.md")
	hash, err := computeHash(path)
	if err != nil {
		t.Fatalf("compute hash: %v", err)
	}
	db := &mockStore{
		layerHashes: map[string]map[string]string{
			"world": {path: hash},
		},
	}

	_, err = Run(context.Background(), testProjectConfig(t), testCatalogConfig(t), db, Options{Full: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if db.upserted("Sunken Chest") == nil {
		t.Fatalf("expected Sunken Chest to be ingested in full mode")
	}
}

func TestIsExcluded(t *testing.T) {
	prefixes := []string{filepath.Join("a", "drafts")}
	patterns := []string{"*.draft.md"}

	cases := []struct {
		path     string
		expected bool
	}{
		{path: filepath.Join("a", "drafts"), expected: true},
		{path: filepath.Join("a", "drafts", "x.md"), expected: true},
		{path: filepath.Join("a", "draftsman.md"), expected: false},
		{path: filepath.Join("b", "y.draft.md"), expected: true},
		{path: filepath.Join("b", "y.md"), expected: false},
	}
	for _, tc := range cases {
		if got := isExcluded(tc.path, prefixes, patterns); got != tc.expected {
			t.Fatalf("isExcluded(%q) = %v, want %v", tc.path, got, tc.expected)
		}
	}
}

func testProjectConfig(t *testing.T) *config.ProjectConfig {
	t.Helper()
	return &config.ProjectConfig{
		Project: "test",
		Version: 1,
		Exclude: []string{filepath.Join("testdata", "world", "drafts"), "*.draft.md"},
		Layers: []config.Layer{{
			Name:  "world",
			Paths: []string{filepath.Join("testdata", "world")},
		}},
	}
}

func testCatalogConfig(t *testing.T) *config.Catalog {
	t.Helper()
	catalog, err := config.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return catalog
}
