package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"placecraft/internal/store"
)

func (c *Client) UpsertPlacement(ctx context.Context, p store.PlacementInput) error {
	itemsJSON, err := json.Marshal(nonNil(p.Items))
	if err != nil {
		return fmt.Errorf("marshaling items: %w", err)
	}
	definition := p.Definition
	if len(definition) == 0 {
		definition = json.RawMessage("{}")
	}

	query := `
	INSERT INTO placements (name, name_normalized, layer, source_file, source_hash, items, definition, body, last_ingested)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT (name_normalized) DO UPDATE SET
		name = excluded.name,
		layer = excluded.layer,
		source_file = excluded.source_file,
		source_hash = excluded.source_hash,
		items = excluded.items,
		definition = excluded.definition,
		body = excluded.body,
		last_ingested = datetime('now')
	`

	_, err = c.db.ExecContext(ctx, query,
		p.Name,
		store.Normalize(p.Name),
		p.Layer,
		p.SourceFile,
		p.SourceHash,
		string(itemsJSON),
		string(definition),
		p.Body,
	)
	if err != nil {
		return fmt.Errorf("upserting placement: %w", err)
	}
	return nil
}

// RemoveStalePlacements deletes rows of layer whose source file is no longer
// present. An empty file list removes nothing.
func (c *Client) RemoveStalePlacements(ctx context.Context, layer string, currentSourceFiles []string) (int64, error) {
	if len(currentSourceFiles) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(currentSourceFiles))
	args := make([]any, len(currentSourceFiles)+1)
	args[0] = layer
	for i, f := range currentSourceFiles {
		placeholders[i] = "?"
		args[i+1] = f
	}

	query := fmt.Sprintf(`
	DELETE FROM placements
	WHERE layer = ?
	  AND source_file IS NOT NULL
	  AND source_file <> ''
	  AND source_file NOT IN (%s)
	`, strings.Join(placeholders, ", "))

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("removing stale placements: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return affected, nil
}

func (c *Client) GetLayerHashes(ctx context.Context, layer string) (map[string]string, error) {
	query := `
	SELECT source_file, source_hash FROM placements
	WHERE layer = ?
	  AND source_file IS NOT NULL
	  AND source_file <> ''
	`

	rows, err := c.db.QueryContext(ctx, query, layer)
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
	query := `
	SELECT name, layer, source_file, items FROM placements
	WHERE (? = '' OR layer = ?)
	ORDER BY layer, name
	`

	rows, err := c.db.QueryContext(ctx, query, layer, layer)
	if err != nil {
		return nil, fmt.Errorf("listing placements: %w", err)
	}
	defer rows.Close()

	summaries := []store.PlacementSummary{}
	for rows.Next() {
		var s store.PlacementSummary
		var itemsText string
		if err := rows.Scan(&s.Name, &s.Layer, &s.SourceFile, &itemsText); err != nil {
			return nil, fmt.Errorf("scanning placement: %w", err)
		}
		if s.Items, err = decodeItems(itemsText); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating placements: %w", err)
	}

	return summaries, nil
}

func (c *Client) GetPlacement(ctx context.Context, name string) (*store.Placement, error) {
	query := `
	SELECT name, layer, source_file, source_hash, items, definition, body, last_ingested
	FROM placements
	WHERE name_normalized = ?
	`

	rows, err := c.db.QueryContext(ctx, query, store.Normalize(name))
	if err != nil {
		return nil, fmt.Errorf("getting placement: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("getting placement: %w", err)
		}
		return nil, nil
	}

	var p store.Placement
	var itemsText, definition, ingested string
	if err := rows.Scan(&p.Name, &p.Layer, &p.SourceFile, &p.SourceHash, &itemsText, &definition, &p.Body, &ingested); err != nil {
		return nil, fmt.Errorf("scanning placement: %w", err)
	}
	if p.Items, err = decodeItems(itemsText); err != nil {
		return nil, err
	}
	p.Definition = json.RawMessage(definition)
	p.IngestedAt = parseTime(ingested)
	return &p, nil
}

func decodeItems(text string) ([]string, error) {
	items := []string{}
	if text == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("unmarshaling items: %w", err)
	}
	return items, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
