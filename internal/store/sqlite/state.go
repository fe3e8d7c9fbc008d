package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"placecraft/internal/placement"
	"placecraft/internal/profile"
	"placecraft/internal/tags"
)

func (c *Client) SaveState(ctx context.Context, st profile.State) error {
	tagsJSON, err := json.Marshal(nonNil(st.Tags))
	if err != nil {
		return fmt.Errorf("marshaling tags: %w", err)
	}
	locations := st.Locations
	if locations == nil {
		locations = map[string][]tags.Record{}
	}
	locJSON, err := json.Marshal(locations)
	if err != nil {
		return fmt.Errorf("marshaling location tags: %w", err)
	}
	obtainedJSON, err := json.Marshal(nonNil(st.Obtained))
	if err != nil {
		return fmt.Errorf("marshaling obtained items: %w", err)
	}

	query := `
	INSERT INTO placement_state (placement, visit, tags, locations, obtained, updated_at)
	VALUES (?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT (placement) DO UPDATE SET
		visit = excluded.visit,
		tags = excluded.tags,
		locations = excluded.locations,
		obtained = excluded.obtained,
		updated_at = datetime('now')
	`
	_, err = c.db.ExecContext(ctx, query,
		st.Placement,
		int64(st.Visit),
		string(tagsJSON),
		string(locJSON),
		string(obtainedJSON),
	)
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (c *Client) LoadState(ctx context.Context, name string) (*profile.State, error) {
	row := c.db.QueryRowContext(ctx, `
	SELECT placement, visit, tags, locations, obtained
	FROM placement_state
	WHERE placement = ?
	`, name)

	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Client) ListStates(ctx context.Context) ([]profile.State, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT placement, visit, tags, locations, obtained
	FROM placement_state
	ORDER BY placement
	`)
	if err != nil {
		return nil, fmt.Errorf("listing states: %w", err)
	}
	defer rows.Close()

	states := []profile.State{}
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating states: %w", err)
	}
	return states, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*profile.State, error) {
	var st profile.State
	var visit int64
	var tagsText, locText, obtainedText string
	if err := row.Scan(&st.Placement, &visit, &tagsText, &locText, &obtainedText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning state: %w", err)
	}
	st.Visit = placement.VisitState(visit)
	if err := json.Unmarshal([]byte(tagsText), &st.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(locText), &st.Locations); err != nil {
		return nil, fmt.Errorf("unmarshaling location tags: %w", err)
	}
	if len(st.Locations) == 0 {
		st.Locations = nil
	}
	if err := json.Unmarshal([]byte(obtainedText), &st.Obtained); err != nil {
		return nil, fmt.Errorf("unmarshaling obtained items: %w", err)
	}
	if len(st.Tags) == 0 {
		st.Tags = nil
	}
	if len(st.Obtained) == 0 {
		st.Obtained = nil
	}
	return &st, nil
}

