package sqlite

import (
	"context"
	"fmt"
	"strings"

	"toolpath/internal/store"
)

// SearchSteps runs a websearch-style query over step intents and actors.
// Scores are negated bm25 values so that higher means more relevant.
func (c *Client) SearchSteps(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}

	sqlQuery := `
	SELECT s.doc_id, s.path_id, s.step_id, s.actor, s.timestamp, s.intent, s.revision,
		   -bm25(steps_fts, 4.0, 1.0) AS score,
		   snippet(steps_fts, 0, '**', '**', '...', 20) AS snippet
	FROM steps_fts
	JOIN steps s ON steps_fts.rowid = s.id
	WHERE steps_fts MATCH ?
	ORDER BY score DESC, s.doc_id ASC, s.step_id ASC
	LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, sqlQuery, convertWebsearchToFTS5(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching steps: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		err := rows.Scan(&r.DocumentID, &r.PathID, &r.StepID, &r.Actor, &r.Timestamp, &r.Intent, &r.Revision, &r.Score, &r.Snippet)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

func convertWebsearchToFTS5(query string) string {
	var result strings.Builder
	var inQuote bool
	var current strings.Builder

	flushToken := func() {
		token := current.String()
		current.Reset()
		if token == "" {
			return
		}

		upper := strings.ToUpper(token)
		switch upper {
		case "AND", "OR", "NOT":
			if result.Len() > 0 {
				result.WriteString(" ")
			}
			result.WriteString(upper)
			return
		}

		if result.Len() > 0 {
			lastWord := lastWord(result.String())
			if lastWord != "AND" && lastWord != "OR" && lastWord != "NOT" && lastWord != "" {
				result.WriteString(" AND ")
			} else {
				result.WriteString(" ")
			}
		}

		if strings.HasPrefix(token, "-") && len(token) > 1 {
			result.WriteString("NOT ")
			result.WriteString(token[1:])
		} else {
			result.WriteString(token)
		}
	}

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '"':
			if inQuote {
				inQuote = false
				token := current.String()
				current.Reset()
				if token != "" {
					if result.Len() > 0 {
						result.WriteString(" AND ")
					}
					result.WriteString(`"`)
					result.WriteString(token)
					result.WriteString(`"`)
				}
			} else {
				flushToken()
				inQuote = true
			}
		case inQuote:
			current.WriteByte(ch)
		case ch == ' ' || ch == '\t':
			flushToken()
		default:
			current.WriteByte(ch)
		}
	}

	flushToken()

	return result.String()
}

func lastWord(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}
