package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DeleteDocument removes a document node with its steps. It reports whether
// the document existed.
func (c *Client) DeleteDocument(ctx context.Context, id string) (bool, error) {
	session := c.session(ctx)
	defer session.Close(ctx)

	query := `
MATCH (d:Document {doc_id: $id})
OPTIONAL MATCH (s:Step {doc_id: $id})
DETACH DELETE s, d
RETURN count(DISTINCT d) AS deleted
`

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			value, _ := res.Record().Get("deleted")
			if count, ok := value.(int64); ok {
				return count, nil
			}
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return int64(0), nil
	})
	if err != nil {
		return false, fmt.Errorf("removing document: %w", err)
	}

	return result.(int64) > 0, nil
}
