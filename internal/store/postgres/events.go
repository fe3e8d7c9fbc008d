package postgres

import (
	"context"
	"fmt"

	"placecraft/internal/store"
)

func (c *Client) AppendVisitEvent(ctx context.Context, e store.VisitEvent) error {
	_, err := c.pool.Exec(ctx, `
INSERT INTO visit_events (id, placement, added, previous, at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING
`, e.ID, e.Placement, int64(e.Added), int64(e.Previous), e.At)
	if err != nil {
		return fmt.Errorf("appending visit event: %w", err)
	}
	return nil
}

func (c *Client) ListVisitEvents(ctx context.Context, placement string, limit int) ([]store.VisitEvent, error) {
	if limit <= 0 {
		limit = store.DefaultEventLimit
	}

	rows, err := c.pool.Query(ctx, `
SELECT id, placement, added, previous, at FROM (
    SELECT id, placement, added, previous, at FROM visit_events
    WHERE ($1 = '' OR placement = $1)
    ORDER BY id DESC
    LIMIT $2
) recent
ORDER BY id ASC
`, placement, limit)
	if err != nil {
		return nil, fmt.Errorf("listing visit events: %w", err)
	}
	defer rows.Close()

	events := []store.VisitEvent{}
	for rows.Next() {
		var e store.VisitEvent
		var added, previous int64
		if err := rows.Scan(&e.ID, &e.Placement, &added, &previous, &e.At); err != nil {
			return nil, fmt.Errorf("scanning visit event: %w", err)
		}
		e.Added, e.Previous = uint32(added), uint32(previous)
		e.At = e.At.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visit events: %w", err)
	}
	return events, nil
}
