package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"toolpath/internal/store"
)

// RunSQL executes a read-only Cypher query. Parameters are bound by name,
// so params["revision"] is $revision in the query.
func (c *Client) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if err := store.CheckReadOnlyCypher(query); err != nil {
		return nil, err
	}

	session := c.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0)
		for res.Next(ctx) {
			record := res.Record()
			row := make(map[string]any, len(record.Keys))
			for _, key := range record.Keys {
				value, _ := record.Get(key)
				row[key] = plainValue(value)
			}
			rows = append(rows, row)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("run cypher: %w", err)
	}

	return result.([]map[string]any), nil
}

// plainValue flattens graph entities into maps that encode as JSON.
func plainValue(value any) any {
	switch v := value.(type) {
	case neo4j.Node:
		return map[string]any{"labels": v.Labels, "props": v.Props}
	case neo4j.Relationship:
		return map[string]any{"type": v.Type, "props": v.Props}
	case []any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = plainValue(v[i])
		}
		return out
	}
	return value
}
