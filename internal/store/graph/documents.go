package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"toolpath/internal/document"
	"toolpath/internal/store"
)

// PutDocument upserts doc by id and rebuilds its step nodes and PARENT edges.
func (c *Client) PutDocument(ctx context.Context, doc document.Document) (*store.DocumentRecord, error) {
	prep, err := store.Prepare(doc)
	if err != nil {
		return nil, err
	}
	rec := prep.Record
	rec.StoredAt = time.Now().UTC().Format(time.RFC3339)

	steps := make([]map[string]any, 0, len(prep.Steps))
	for i, s := range prep.Steps {
		steps = append(steps, map[string]any{
			"seq":       i,
			"path_id":   s.PathID,
			"step_id":   s.StepID,
			"actor":     s.Actor,
			"timestamp": s.Timestamp,
			"intent":    s.Intent,
			"revision":  s.Revision,
		})
	}
	edges := make([]map[string]any, 0, len(prep.Edges))
	for _, e := range prep.Edges {
		edges = append(edges, map[string]any{"path_id": e.PathID, "child": e.Child, "parent": e.Parent})
	}

	session := c.session(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (s:Step {doc_id: $id}) DETACH DELETE s`, map[string]any{"id": rec.ID}); err != nil {
			return nil, fmt.Errorf("clearing step nodes: %w", err)
		}

		upsert := `
MERGE (d:Document {doc_id: $id})
SET d.kind = $kind,
    d.digest = $digest,
    d.title = $title,
    d.step_count = $step_count,
    d.body = $body,
    d.stored_at = $stored_at
`
		if _, err := tx.Run(ctx, upsert, map[string]any{
			"id":         rec.ID,
			"kind":       rec.Kind,
			"digest":     rec.Digest,
			"title":      rec.Title,
			"step_count": rec.StepCount,
			"body":       string(prep.Body),
			"stored_at":  rec.StoredAt,
		}); err != nil {
			return nil, fmt.Errorf("upserting document: %w", err)
		}

		createSteps := `
MATCH (d:Document {doc_id: $id})
UNWIND $steps AS row
CREATE (s:Step {
    doc_id: $id,
    seq: row.seq,
    path_id: row.path_id,
    step_id: row.step_id,
    actor: row.actor,
    timestamp: row.timestamp,
    intent: row.intent,
    revision: row.revision
})-[:IN]->(d)
`
		if _, err := tx.Run(ctx, createSteps, map[string]any{"id": rec.ID, "steps": steps}); err != nil {
			return nil, fmt.Errorf("creating step nodes: %w", err)
		}

		linkParents := `
UNWIND $edges AS e
MATCH (c:Step {doc_id: $id, path_id: e.path_id, step_id: e.child})
MATCH (p:Step {doc_id: $id, path_id: e.path_id, step_id: e.parent})
MERGE (c)-[:PARENT]->(p)
`
		if _, err := tx.Run(ctx, linkParents, map[string]any{"id": rec.ID, "edges": edges}); err != nil {
			return nil, fmt.Errorf("linking parents: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (document.Document, error) {
	session := c.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (d:Document {doc_id: $id}) RETURN d.body AS body`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if res.Next(ctx) {
			value, _ := res.Record().Get("body")
			return toString(value), nil
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return "", nil
	})
	if err != nil {
		return document.Document{}, fmt.Errorf("getting document: %w", err)
	}

	body := result.(string)
	if body == "" {
		return document.Document{}, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	return store.Decode([]byte(body))
}

func (c *Client) ListDocuments(ctx context.Context, kind document.Kind) ([]store.DocumentRecord, error) {
	session := c.session(ctx)
	defer session.Close(ctx)

	query := `
MATCH (d:Document)
WHERE $kind = '' OR d.kind = $kind
RETURN d.doc_id AS id, d.kind AS kind, d.digest AS digest, d.title AS title,
       d.step_count AS step_count, d.stored_at AS stored_at
ORDER BY id ASC
`
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"kind": string(kind)})
		if err != nil {
			return nil, err
		}
		records := []store.DocumentRecord{}
		for res.Next(ctx) {
			r := res.Record()
			records = append(records, store.DocumentRecord{
				ID:        recordString(r, "id"),
				Kind:      recordString(r, "kind"),
				Digest:    recordString(r, "digest"),
				Title:     recordString(r, "title"),
				StepCount: int(recordInt(r, "step_count")),
				StoredAt:  recordString(r, "stored_at"),
			})
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return result.([]store.DocumentRecord), nil
}

func (c *Client) FindRevision(ctx context.Context, revision string) ([]store.StepRecord, error) {
	if revision == "" {
		return nil, fmt.Errorf("revision must not be empty")
	}
	session := c.session(ctx)
	defer session.Close(ctx)

	query := `
MATCH (s:Step {revision: $revision})
RETURN s.doc_id AS doc_id, s.path_id AS path_id, s.step_id AS step_id, s.actor AS actor,
       s.timestamp AS timestamp, s.intent AS intent, s.revision AS revision
ORDER BY doc_id ASC, path_id ASC, s.seq ASC
`
	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"revision": revision})
		if err != nil {
			return nil, err
		}
		steps := []store.StepRecord{}
		for res.Next(ctx) {
			steps = append(steps, stepRecord(res.Record()))
		}
		if err := res.Err(); err != nil {
			return nil, err
		}
		return steps, nil
	})
	if err != nil {
		return nil, fmt.Errorf("finding revision: %w", err)
	}
	return result.([]store.StepRecord), nil
}

func stepRecord(r *neo4j.Record) store.StepRecord {
	return store.StepRecord{
		DocumentID: recordString(r, "doc_id"),
		PathID:     recordString(r, "path_id"),
		StepID:     recordString(r, "step_id"),
		Actor:      recordString(r, "actor"),
		Timestamp:  recordString(r, "timestamp"),
		Intent:     recordString(r, "intent"),
		Revision:   recordString(r, "revision"),
	}
}

func recordString(r *neo4j.Record, key string) string {
	value, _ := r.Get(key)
	return toString(value)
}

func recordInt(r *neo4j.Record, key string) int64 {
	value, _ := r.Get(key)
	n, _ := value.(int64)
	return n
}

func toString(value any) string {
	s, _ := value.(string)
	return s
}
