package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS placements (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		name            TEXT NOT NULL,
		name_normalized TEXT NOT NULL,
		layer           TEXT NOT NULL,
		source_file     TEXT,
		source_hash     TEXT,
		items           TEXT DEFAULT '[]',
		definition      TEXT DEFAULT '{}',
		body            TEXT DEFAULT '',
		last_ingested   TEXT DEFAULT (datetime('now')),
		CONSTRAINT uq_placement_name UNIQUE (name_normalized)
	);

	CREATE TABLE IF NOT EXISTS placement_state (
		placement  TEXT PRIMARY KEY,
		visit      INTEGER NOT NULL DEFAULT 0,
		tags       TEXT DEFAULT '[]',
		locations  TEXT DEFAULT '{}',
		obtained   TEXT DEFAULT '[]',
		updated_at TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS visit_events (
		id        TEXT PRIMARY KEY,
		placement TEXT NOT NULL,
		added     INTEGER NOT NULL,
		previous  INTEGER NOT NULL,
		at        TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_placements_layer ON placements (layer);
	CREATE INDEX IF NOT EXISTS idx_placements_source_file ON placements (source_file);
	CREATE INDEX IF NOT EXISTS idx_visit_events_placement ON visit_events (placement, id);

	CREATE VIRTUAL TABLE IF NOT EXISTS placements_fts USING fts5(
		name,
		items,
		body,
		content=placements,
		content_rowid=id
	);

	CREATE TRIGGER IF NOT EXISTS placements_ai AFTER INSERT ON placements BEGIN
		INSERT INTO placements_fts(rowid, name, items, body)
		VALUES (new.id, new.name, new.items, new.body);
	END;

	CREATE TRIGGER IF NOT EXISTS placements_ad AFTER DELETE ON placements BEGIN
		INSERT INTO placements_fts(placements_fts, rowid, name, items, body)
		VALUES ('delete', old.id, old.name, old.items, old.body);
	END;

	CREATE TRIGGER IF NOT EXISTS placements_au AFTER UPDATE ON placements BEGIN
		INSERT INTO placements_fts(placements_fts, rowid, name, items, body)
		VALUES ('delete', old.id, old.name, old.items, old.body);
		INSERT INTO placements_fts(rowid, name, items, body)
		VALUES (new.id, new.name, new.items, new.body);
	END;
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

// splitStatements splits DDL on statement-terminating semicolons. Semicolons
// inside a trigger's BEGIN ... END body do not terminate it.
func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder
	inBody := false

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		upper := strings.ToUpper(stripped)
		switch {
		case strings.HasSuffix(upper, "BEGIN"):
			inBody = true
		case inBody && upper == "END;":
			inBody = false
			statements = append(statements, current.String())
			current.Reset()
		case !inBody && strings.HasSuffix(stripped, ";"):
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}

	return statements
}
