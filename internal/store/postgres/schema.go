package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// Executed as one implicit transaction; every statement is idempotent.
	ddl := `
CREATE TABLE IF NOT EXISTS placements (
    id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name            TEXT NOT NULL,
    name_normalized TEXT NOT NULL,
    layer           TEXT NOT NULL,
    source_file     TEXT,
    source_hash     TEXT,
    items           TEXT[] DEFAULT '{}',
    definition      JSONB DEFAULT '{}',
    body            TEXT DEFAULT '',
    search_vector   TSVECTOR,
    last_ingested   TIMESTAMPTZ DEFAULT now(),
    CONSTRAINT uq_placement_name UNIQUE (name_normalized)
);

CREATE TABLE IF NOT EXISTS placement_state (
    placement  TEXT PRIMARY KEY,
    visit      BIGINT NOT NULL DEFAULT 0,
    tags       JSONB DEFAULT '[]',
    locations  JSONB DEFAULT '{}',
    obtained   TEXT[] DEFAULT '{}',
    updated_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS visit_events (
    id        TEXT PRIMARY KEY,
    placement TEXT NOT NULL,
    added     BIGINT NOT NULL,
    previous  BIGINT NOT NULL,
    at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_placements_search ON placements USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_placements_layer ON placements (layer);
CREATE INDEX IF NOT EXISTS idx_placements_source_file ON placements (source_file);
CREATE INDEX IF NOT EXISTS idx_visit_events_placement ON visit_events (placement, id);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
