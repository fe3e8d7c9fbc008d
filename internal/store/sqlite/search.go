package sqlite

import (
	"context"
	"fmt"
	"strings"

	"placecraft/internal/store"
)

func (c *Client) Search(ctx context.Context, query, layer string) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	sqlQuery := `
	SELECT p.name, p.layer, p.items,
		   bm25(placements_fts, 10.0, 4.0, 1.0) AS score,
		   snippet(placements_fts, 2, '**', '**', '...', 50) AS snippet
	FROM placements_fts
	JOIN placements p ON placements_fts.rowid = p.id
	WHERE placements_fts MATCH ?
	  AND (? = '' OR p.layer = ?)
	ORDER BY score ASC, p.name ASC
	LIMIT 50
	`

	rows, err := c.db.QueryContext(ctx, sqlQuery, convertWebsearchToFTS5(query), layer, layer)
	if err != nil {
		return nil, fmt.Errorf("searching placements: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		var itemsText string
		if err := rows.Scan(&r.Name, &r.Layer, &itemsText, &r.Score, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if r.Items, err = decodeItems(itemsText); err != nil {
			return nil, err
		}
		// bm25 ranks better matches lower; expose higher-is-better.
		r.Score = -r.Score
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

// convertWebsearchToFTS5 maps the websearch syntax accepted by the postgres
// backend onto FTS5. Bare terms are ANDed and quoted phrases pass through.
// FTS5 NOT is binary, so "-term" becomes "NOT term" after an operand and is
// dropped when nothing precedes it.
func convertWebsearchToFTS5(query string) string {
	var out []string
	operand := func() bool {
		if len(out) == 0 {
			return false
		}
		switch out[len(out)-1] {
		case "AND", "OR", "NOT":
			return false
		}
		return true
	}

	for _, tok := range tokenize(query) {
		if tok.phrase {
			if operand() {
				out = append(out, "AND")
			}
			out = append(out, `"`+tok.text+`"`)
			continue
		}
		switch upper := strings.ToUpper(tok.text); upper {
		case "AND", "OR", "NOT":
			if operand() {
				out = append(out, upper)
			}
			continue
		}
		if strings.HasPrefix(tok.text, "-") && len(tok.text) > 1 {
			if operand() {
				out = append(out, "NOT", tok.text[1:])
			}
			continue
		}
		if operand() {
			out = append(out, "AND")
		}
		out = append(out, tok.text)
	}
	for len(out) > 0 && !operand() {
		out = out[:len(out)-1]
	}
	return strings.Join(out, " ")
}

type token struct {
	text   string
	phrase bool
}

func tokenize(query string) []token {
	var tokens []token
	var cur strings.Builder
	inQuote := false

	flush := func(phrase bool) {
		if cur.Len() > 0 {
			tokens = append(tokens, token{text: cur.String(), phrase: phrase})
		}
		cur.Reset()
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '"':
			flush(inQuote)
			inQuote = !inQuote
		case inQuote:
			cur.WriteByte(ch)
		case ch == ' ' || ch == '\t':
			flush(false)
		default:
			cur.WriteByte(ch)
		}
	}
	flush(inQuote)
	return tokens
}
