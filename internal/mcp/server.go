package mcp

import (
	"context"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"placecraft/internal/config"
	"placecraft/internal/profile"
	"placecraft/internal/resolver"
	"placecraft/internal/store"
)

// Store is the part of store.Store the tools read and write.
type Store interface {
	ListPlacements(ctx context.Context, layer string) ([]store.PlacementSummary, error)
	GetPlacement(ctx context.Context, name string) (*store.Placement, error)
	Search(ctx context.Context, query, layer string) ([]store.SearchResult, error)
	SaveState(ctx context.Context, st profile.State) error
	ListVisitEvents(ctx context.Context, placement string, limit int) ([]store.VisitEvent, error)
}

type Server struct {
	catalog  *config.Catalog
	profile  *profile.Profile
	resolver *resolver.Resolver
	db       Store
	mcp      *sdk.Server

	// mu serialises tools that touch the live profile.
	mu sync.Mutex
}

func NewServer(catalog *config.Catalog, prof *profile.Profile, res *resolver.Resolver, db Store, version string) *Server {
	s := &Server{
		catalog:  catalog,
		profile:  prof,
		resolver: res,
		db:       db,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "placecraft",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
