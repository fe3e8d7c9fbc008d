package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"placecraft/internal/config"
	"placecraft/internal/container"
	"placecraft/internal/give"
	"placecraft/internal/placement"
	"placecraft/internal/store"
)

type ResolveContainerInput struct {
	Placement string `json:"placement" jsonschema:"placement name"`
	Location  string `json:"location,omitempty" jsonschema:"location name, defaults to the placement's first location"`
}

type ListPlacementsInput struct {
	Layer string `json:"layer,omitempty" jsonschema:"layer filter"`
}

type GetPlacementInput struct {
	Name   string `json:"name" jsonschema:"placement name"`
	Events int    `json:"events,omitempty" jsonschema:"number of recent visit events to include"`
}

type GivePlacementInput struct {
	Placement string `json:"placement" jsonschema:"placement name"`
}

type AddVisitFlagsInput struct {
	Placement string   `json:"placement" jsonschema:"placement name"`
	Flags     []string `json:"flags" jsonschema:"visit flags to add, e.g. opened or previewed"`
}

type SearchPlacementsInput struct {
	Query string `json:"query" jsonschema:"search terms"`
	Layer string `json:"layer,omitempty" jsonschema:"restrict to a specific layer"`
}

type GetCatalogInput struct{}

type ResolveOutput struct {
	Placement    string   `json:"placement"`
	Location     string   `json:"location,omitempty"`
	Container    string   `json:"container"`
	Step         string   `json:"step"`
	Capabilities []string `json:"capabilities"`
	Warnings     []string `json:"warnings"`
	Items        []string `json:"items"`
	Fling        string   `json:"fling"`
	Cost         string   `json:"cost,omitempty"`
}

type PlacementSummaryOutput struct {
	Name  string   `json:"name"`
	Layer string   `json:"layer"`
	Items []string `json:"items"`
}

type ListPlacementsOutput struct {
	Placements []PlacementSummaryOutput `json:"placements"`
}

type VisitEventOutput struct {
	ID       string   `json:"id"`
	Added    []string `json:"added"`
	Previous []string `json:"previous"`
	At       string   `json:"at"`
}

type PlacementOutput struct {
	Name       string             `json:"name"`
	Layer      string             `json:"layer"`
	SourceFile string             `json:"source_file"`
	Items      []string           `json:"items"`
	Definition json.RawMessage    `json:"definition,omitempty"`
	Visit      []string           `json:"visit"`
	Obtained   []string           `json:"obtained"`
	Events     []VisitEventOutput `json:"events"`
}

type GiveOutput struct {
	Placement string   `json:"placement"`
	Given     []string `json:"given"`
	Complete  bool     `json:"complete"`
	Visit     []string `json:"visit"`
}

type VisitOutput struct {
	Placement string   `json:"placement"`
	Previous  []string `json:"previous"`
	Visit     []string `json:"visit"`
}

type SearchResultOutput struct {
	Name    string   `json:"name"`
	Layer   string   `json:"layer"`
	Items   []string `json:"items"`
	Score   float64  `json:"score"`
	Snippet string   `json:"snippet,omitempty"`
}

type SearchPlacementsOutput struct {
	Results []SearchResultOutput `json:"results"`
}

type CatalogOutput struct {
	Version      int                `json:"version"`
	Capabilities []CapabilityOutput `json:"capabilities"`
	Containers   []ContainerOutput  `json:"containers"`
	Defaults     DefaultsOutput     `json:"defaults"`
}

type CapabilityOutput struct {
	Name string `json:"name"`
	Bit  int    `json:"bit"`
}

type ContainerOutput struct {
	Name          string   `json:"name"`
	Instantiate   bool     `json:"instantiate"`
	ModifyInPlace bool     `json:"modify_in_place"`
	Capabilities  []string `json:"capabilities"`
}

type DefaultsOutput struct {
	Single string `json:"single"`
	Multi  string `json:"multi"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "resolve_container",
		Description: "Explain which container a placement resolves to at a location",
	}, s.handleResolveContainer)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_placements",
		Description: "List ingested placements with an optional layer filter",
	}, s.handleListPlacements)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_placement",
		Description: "Retrieve a placement definition, its live state and recent visit events",
	}, s.handleGetPlacement)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "give_placement",
		Description: "Give every unobtained item of a placement and persist the result",
	}, s.handleGivePlacement)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "add_visit_flags",
		Description: "Add visit flags to a placement and persist the result",
	}, s.handleAddVisitFlags)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_placements",
		Description: "Search placements by name, items and description",
	}, s.handleSearchPlacements)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_catalog",
		Description: "Return the container catalog",
	}, s.handleGetCatalog)
}

func (s *Server) handleResolveContainer(ctx context.Context, req *sdk.CallToolRequest, input ResolveContainerInput) (*sdk.CallToolResult, ResolveOutput, error) {
	if input.Placement == "" {
		return nil, ResolveOutput{}, fmt.Errorf("placement is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profile.Lookup(input.Placement)
	if err != nil {
		return nil, ResolveOutput{}, err
	}
	loc := firstLocation(p)
	if input.Location != "" {
		l, ok := p.Location(input.Location)
		if !ok {
			return nil, ResolveOutput{}, fmt.Errorf("placement %s has no location %s", p.Name(), input.Location)
		}
		loc = l
	}

	d := s.resolver.Decide(p, loc)
	info := s.resolver.Info(p, loc, d.Container)
	out := ResolveOutput{
		Placement:    p.Name(),
		Location:     info.Location,
		Container:    d.Container,
		Step:         string(d.Step),
		Capabilities: s.catalog.Names(container.Capability(d.Requested)),
		Warnings:     nonNil(d.Warnings),
		Items:        nonNil(info.Items),
		Fling:        info.Fling.String(),
		Cost:         info.Cost,
	}
	return nil, out, nil
}

func (s *Server) handleListPlacements(ctx context.Context, req *sdk.CallToolRequest, input ListPlacementsInput) (*sdk.CallToolResult, ListPlacementsOutput, error) {
	items, err := s.db.ListPlacements(ctx, input.Layer)
	if err != nil {
		return nil, ListPlacementsOutput{}, err
	}

	output := make([]PlacementSummaryOutput, 0, len(items))
	for _, item := range items {
		output = append(output, PlacementSummaryOutput{
			Name:  item.Name,
			Layer: item.Layer,
			Items: nonNil(item.Items),
		})
	}
	return nil, ListPlacementsOutput{Placements: output}, nil
}

func (s *Server) handleGetPlacement(ctx context.Context, req *sdk.CallToolRequest, input GetPlacementInput) (*sdk.CallToolResult, PlacementOutput, error) {
	if input.Name == "" {
		return nil, PlacementOutput{}, fmt.Errorf("name is required")
	}
	stored, err := s.db.GetPlacement(ctx, input.Name)
	if err != nil {
		return nil, PlacementOutput{}, err
	}
	if stored == nil {
		return nil, PlacementOutput{}, fmt.Errorf("placement not found")
	}

	out := PlacementOutput{
		Name:       stored.Name,
		Layer:      stored.Layer,
		SourceFile: stored.SourceFile,
		Items:      nonNil(stored.Items),
		Definition: stored.Definition,
		Visit:      []string{},
		Obtained:   []string{},
		Events:     []VisitEventOutput{},
	}

	s.mu.Lock()
	if p, ok := s.profile.Get(stored.Name); ok {
		out.Visit = nonNil(p.Visit().Flags())
		for _, item := range p.Items() {
			if item.Obtained() {
				out.Obtained = append(out.Obtained, item.Name())
			}
		}
	}
	s.mu.Unlock()

	limit := input.Events
	if limit <= 0 {
		limit = 10
	}
	events, err := s.db.ListVisitEvents(ctx, stored.Name, limit)
	if err != nil {
		return nil, PlacementOutput{}, err
	}
	for _, e := range events {
		out.Events = append(out.Events, visitEventOutput(e))
	}
	return nil, out, nil
}

func (s *Server) handleGivePlacement(ctx context.Context, req *sdk.CallToolRequest, input GivePlacementInput) (*sdk.CallToolResult, GiveOutput, error) {
	if input.Placement == "" {
		return nil, GiveOutput{}, fmt.Errorf("placement is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profile.Lookup(input.Placement)
	if err != nil {
		return nil, GiveOutput{}, err
	}

	before := make(map[string]bool, len(p.Items()))
	for _, item := range p.Items() {
		before[item.Name()] = item.Obtained()
	}

	loc := firstLocation(p)
	d := s.resolver.Decide(p, loc)
	info := s.resolver.Info(p, loc, d.Container)
	chain := p.GiveAll(give.Info{Container: d.Container, Fling: info.Fling}, nil)

	out := GiveOutput{Placement: p.Name(), Given: []string{}, Complete: chain.Done()}
	for _, item := range p.Items() {
		if item.Obtained() && !before[item.Name()] {
			out.Given = append(out.Given, item.Name())
		}
	}
	out.Visit = nonNil(p.Visit().Flags())

	if err := store.Persist(ctx, s.db, p); err != nil {
		return nil, GiveOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) handleAddVisitFlags(ctx context.Context, req *sdk.CallToolRequest, input AddVisitFlagsInput) (*sdk.CallToolResult, VisitOutput, error) {
	if input.Placement == "" {
		return nil, VisitOutput{}, fmt.Errorf("placement is required")
	}
	mask, err := placement.ParseVisitFlags(input.Flags)
	if err != nil {
		return nil, VisitOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profile.Lookup(input.Placement)
	if err != nil {
		return nil, VisitOutput{}, err
	}
	previous := p.Visit()
	p.AddVisitFlag(mask)

	if p.Visit() != previous {
		if err := store.Persist(ctx, s.db, p); err != nil {
			return nil, VisitOutput{}, err
		}
	}
	return nil, VisitOutput{
		Placement: p.Name(),
		Previous:  nonNil(previous.Flags()),
		Visit:     nonNil(p.Visit().Flags()),
	}, nil
}

func (s *Server) handleSearchPlacements(ctx context.Context, req *sdk.CallToolRequest, input SearchPlacementsInput) (*sdk.CallToolResult, SearchPlacementsOutput, error) {
	if input.Query == "" {
		return nil, SearchPlacementsOutput{}, fmt.Errorf("query is required")
	}
	results, err := s.db.Search(ctx, input.Query, input.Layer)
	if err != nil {
		return nil, SearchPlacementsOutput{}, err
	}

	output := make([]SearchResultOutput, 0, len(results))
	for _, result := range results {
		output = append(output, SearchResultOutput{
			Name:    result.Name,
			Layer:   result.Layer,
			Items:   nonNil(result.Items),
			Score:   result.Score,
			Snippet: result.Snippet,
		})
	}
	return nil, SearchPlacementsOutput{Results: output}, nil
}

func (s *Server) handleGetCatalog(ctx context.Context, req *sdk.CallToolRequest, input GetCatalogInput) (*sdk.CallToolResult, CatalogOutput, error) {
	return nil, catalogOutputFromConfig(s.catalog), nil
}

func catalogOutputFromConfig(catalog *config.Catalog) CatalogOutput {
	if catalog == nil {
		return CatalogOutput{}
	}

	out := CatalogOutput{
		Version:      catalog.Version,
		Capabilities: []CapabilityOutput{{Name: "pay_costs", Bit: 0}},
		Containers:   make([]ContainerOutput, 0, len(catalog.Containers)),
		Defaults: DefaultsOutput{
			Single: catalog.Defaults.Single,
			Multi:  catalog.Defaults.Multi,
		},
	}
	for _, c := range catalog.Capabilities {
		if c.Bit == 0 {
			continue
		}
		out.Capabilities = append(out.Capabilities, CapabilityOutput{Name: c.Name, Bit: c.Bit})
	}
	for _, c := range catalog.Containers {
		out.Containers = append(out.Containers, ContainerOutput{
			Name:          c.Name,
			Instantiate:   c.Instantiate,
			ModifyInPlace: c.ModifyInPlace,
			Capabilities:  nonNil(c.Capabilities),
		})
	}
	return out
}

func visitEventOutput(e store.VisitEvent) VisitEventOutput {
	return VisitEventOutput{
		ID:       e.ID,
		Added:    nonNil(placement.VisitState(e.Added).Flags()),
		Previous: nonNil(placement.VisitState(e.Previous).Flags()),
		At:       e.At.UTC().Format(time.RFC3339),
	}
}

func firstLocation(p *placement.Placement) placement.Location {
	if locs := p.Locations(); len(locs) > 0 {
		return locs[0]
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
