package postgres

import (
	"context"
	"fmt"
	"strings"

	"toolpath/internal/store"
)

func (c *Client) SearchSteps(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}

	sql := `
SELECT doc_id, path_id, step_id, actor, timestamp, intent, revision,
    ts_rank(search_vector, websearch_to_tsquery('english', $1)) AS score,
    CASE WHEN intent <> '' THEN
        ts_headline('english', intent, websearch_to_tsquery('english', $1),
            'MaxFragments=1, MaxWords=20, MinWords=5, StartSel=**, StopSel=**')
    ELSE '' END AS snippet
FROM steps
WHERE search_vector @@ websearch_to_tsquery('english', $1)
ORDER BY score DESC, doc_id ASC, step_id ASC
LIMIT $2
`

	rows, err := c.pool.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching steps: %w", err)
	}
	defer rows.Close()

	results := []store.SearchResult{}
	for rows.Next() {
		var r store.SearchResult
		var score float32
		err := rows.Scan(&r.DocumentID, &r.PathID, &r.StepID, &r.Actor, &r.Timestamp, &r.Intent, &r.Revision, &score, &r.Snippet)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Score = float64(score)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}
