package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"placecraft/internal/store"
)

func (c *Client) UpsertPlacement(ctx context.Context, p store.PlacementInput) error {
	definition := p.Definition
	if len(definition) == 0 {
		definition = json.RawMessage("{}")
	}
	items := p.Items
	if items == nil {
		items = []string{}
	}

	query := `
INSERT INTO placements (name, name_normalized, layer, source_file, source_hash, items, definition, body, last_ingested, search_vector)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(),
    setweight(to_tsvector('simple', coalesce($1, '')), 'A') ||
    setweight(to_tsvector('english', coalesce(array_to_string($6::text[], ' '), '')), 'B') ||
    setweight(to_tsvector('english', coalesce($8, '')), 'C')
)
ON CONFLICT (name_normalized) DO UPDATE SET
    name = EXCLUDED.name,
    layer = EXCLUDED.layer,
    source_file = EXCLUDED.source_file,
    source_hash = EXCLUDED.source_hash,
    items = EXCLUDED.items,
    definition = EXCLUDED.definition,
    body = EXCLUDED.body,
    last_ingested = now(),
    search_vector = EXCLUDED.search_vector
`

	_, err := c.pool.Exec(ctx, query,
		p.Name,
		store.Normalize(p.Name),
		p.Layer,
		p.SourceFile,
		p.SourceHash,
		items,
		[]byte(definition),
		p.Body,
	)
	if err != nil {
		return fmt.Errorf("upserting placement: %w", err)
	}
	return nil
}

func (c *Client) RemoveStalePlacements(ctx context.Context, layer string, currentSourceFiles []string) (int64, error) {
	if len(currentSourceFiles) == 0 {
		return 0, nil
	}

	tag, err := c.pool.Exec(ctx, `
DELETE FROM placements
WHERE layer = $1
  AND source_file IS NOT NULL
  AND source_file <> ''
  AND NOT (source_file = ANY($2))
`, layer, currentSourceFiles)
	if err != nil {
		return 0, fmt.Errorf("removing stale placements: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (c *Client) GetLayerHashes(ctx context.Context, layer string) (map[string]string, error) {
	query := `
SELECT source_file, source_hash FROM placements
WHERE layer = $1
  AND source_file IS NOT NULL
  AND source_file <> ''
`

	rows, err := c.pool.Query(ctx, query, layer)
	if err != nil {
		return nil, fmt.Errorf("query layer hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var sourceFile, sourceHash string
		if err := rows.Scan(&sourceFile, &sourceHash); err != nil {
			return nil, fmt.Errorf("scanning layer hash: %w", err)
		}
		hashes[sourceFile] = sourceHash
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating layer hashes: %w", err)
	}

	return hashes, nil
}

func (c *Client) ListPlacements(ctx context.Context, layer string) ([]store.PlacementSummary, error) {
	rows, err := c.pool.Query(ctx, `
SELECT name, layer, coalesce(source_file, ''), items FROM placements
WHERE ($1 = '' OR layer = $1)
ORDER BY layer, name
`, layer)
	if err != nil {
		return nil, fmt.Errorf("listing placements: %w", err)
	}
	defer rows.Close()

	summaries := []store.PlacementSummary{}
	for rows.Next() {
		var s store.PlacementSummary
		if err := rows.Scan(&s.Name, &s.Layer, &s.SourceFile, &s.Items); err != nil {
			return nil, fmt.Errorf("scanning placement: %w", err)
		}
		if s.Items == nil {
			s.Items = []string{}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating placements: %w", err)
	}
	return summaries, nil
}

func (c *Client) GetPlacement(ctx context.Context, name string) (*store.Placement, error) {
	var p store.Placement
	var definition []byte
	err := c.pool.QueryRow(ctx, `
SELECT name, layer, coalesce(source_file, ''), coalesce(source_hash, ''), items, definition, body, last_ingested
FROM placements
WHERE name_normalized = $1
`, store.Normalize(name)).Scan(
		&p.Name, &p.Layer, &p.SourceFile, &p.SourceHash, &p.Items, &definition, &p.Body, &p.IngestedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting placement: %w", err)
	}
	if p.Items == nil {
		p.Items = []string{}
	}
	p.Definition = json.RawMessage(definition)
	return &p, nil
}
