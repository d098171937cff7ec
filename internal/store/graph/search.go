package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"toolpath/internal/store"
)

// SearchSteps runs a full-text query over step intents and actors. Every
// term must match; a trailing term also matches as a prefix.
func (c *Client) SearchSteps(ctx context.Context, q string, limit int) ([]store.SearchResult, error) {
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}
	lucene := toLucene(q)
	if lucene == "" {
		return []store.SearchResult{}, nil
	}

	session := c.session(ctx)
	defer session.Close(ctx)

	query := `
CALL db.index.fulltext.queryNodes('step_fulltext', $query) YIELD node, score
RETURN node.doc_id AS doc_id, node.path_id AS path_id, node.step_id AS step_id,
       node.actor AS actor, node.timestamp AS timestamp, node.intent AS intent,
       node.revision AS revision, score
ORDER BY score DESC, doc_id ASC
LIMIT $limit
`
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"query": lucene, "limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		results := []store.SearchResult{}
		for res.Next(ctx) {
			r := res.Record()
			step := stepRecord(r)
			score, _ := r.Get("score")
			f, _ := score.(float64)
			results = append(results, store.SearchResult{StepRecord: step, Score: f, Snippet: step.Intent})
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return results, nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching steps: %w", err)
	}
	return result.([]store.SearchResult), nil
}

const luceneSpecial = `+-&|!(){}[]^"~*?:\/`

// toLucene turns free text into a conjunction of escaped terms.
func toLucene(q string) string {
	words := strings.Fields(q)
	terms := make([]string, 0, len(words))
	for i, w := range words {
		var b strings.Builder
		for _, r := range w {
			if strings.ContainsRune(luceneSpecial, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		term := b.String()
		if i == len(words)-1 {
			term = "(" + term + " OR " + term + "*)"
		}
		terms = append(terms, "+"+term)
	}
	return strings.Join(terms, " ")
}
