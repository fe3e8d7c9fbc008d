package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"placecraft/internal/placement"
	"placecraft/internal/profile"
	"placecraft/internal/tags"
)

func (c *Client) SaveState(ctx context.Context, st profile.State) error {
	recs := st.Tags
	if recs == nil {
		recs = []tags.Record{}
	}
	tagsJSON, err := json.Marshal(recs)
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
	obtained := st.Obtained
	if obtained == nil {
		obtained = []string{}
	}

	_, err = c.pool.Exec(ctx, `
INSERT INTO placement_state (placement, visit, tags, locations, obtained, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (placement) DO UPDATE SET
    visit = EXCLUDED.visit,
    tags = EXCLUDED.tags,
    locations = EXCLUDED.locations,
    obtained = EXCLUDED.obtained,
    updated_at = now()
`, st.Placement, int64(st.Visit), tagsJSON, locJSON, obtained)
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (c *Client) LoadState(ctx context.Context, name string) (*profile.State, error) {
	row := c.pool.QueryRow(ctx, `
SELECT placement, visit, tags, locations, obtained
FROM placement_state
WHERE placement = $1
`, name)
	st, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Client) ListStates(ctx context.Context) ([]profile.State, error) {
	rows, err := c.pool.Query(ctx, `
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

func scanState(row pgx.Row) (*profile.State, error) {
	var st profile.State
	var visit int64
	var tagsJSON, locJSON []byte
	if err := row.Scan(&st.Placement, &visit, &tagsJSON, &locJSON, &st.Obtained); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning state: %w", err)
	}
	st.Visit = placement.VisitState(visit)
	if err := json.Unmarshal(tagsJSON, &st.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal(locJSON, &st.Locations); err != nil {
		return nil, fmt.Errorf("unmarshaling location tags: %w", err)
	}
	if len(st.Tags) == 0 {
		st.Tags = nil
	}
	if len(st.Locations) == 0 {
		st.Locations = nil
	}
	if len(st.Obtained) == 0 {
		st.Obtained = nil
	}
	return &st, nil
}
