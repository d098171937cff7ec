package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"toolpath/internal/document"
	"toolpath/internal/store"
)

// PutDocument upserts doc by id and replaces its indexed step rows. The raw
// serialized body is kept next to the JSONB copy so extension fields survive
// byte for byte.
func (c *Client) PutDocument(ctx context.Context, doc document.Document) (*store.DocumentRecord, error) {
	prep, err := store.Prepare(doc)
	if err != nil {
		return nil, err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM steps WHERE doc_id = $1`, prep.Record.ID); err != nil {
		return nil, fmt.Errorf("clearing step rows: %w", err)
	}

	upsert := `
INSERT INTO documents (doc_id, kind, digest, title, step_count, body, raw_body, stored_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, now())
ON CONFLICT (doc_id) DO UPDATE SET
    kind = EXCLUDED.kind,
    digest = EXCLUDED.digest,
    title = EXCLUDED.title,
    step_count = EXCLUDED.step_count,
    body = EXCLUDED.body,
    raw_body = EXCLUDED.raw_body,
    stored_at = EXCLUDED.stored_at
RETURNING stored_at
`
	rec := prep.Record
	var storedAt time.Time
	err = tx.QueryRow(ctx, upsert,
		rec.ID, rec.Kind, rec.Digest, rec.Title, rec.StepCount, string(prep.Body), string(prep.Body),
	).Scan(&storedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}
	rec.StoredAt = document.FormatTimestamp(storedAt)

	batch := &pgx.Batch{}
	for _, s := range prep.Steps {
		batch.Queue(`
INSERT INTO steps (doc_id, path_id, step_id, actor, timestamp, intent, revision)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, s.DocumentID, s.PathID, s.StepID, s.Actor, s.Timestamp, s.Intent, s.Revision)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("inserting step rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing document: %w", err)
	}
	return &rec, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var body string
	err := c.pool.QueryRow(ctx, `SELECT raw_body FROM documents WHERE doc_id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return document.Document{}, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("getting document: %w", err)
	}
	return store.Decode([]byte(body))
}

func (c *Client) ListDocuments(ctx context.Context, kind document.Kind) ([]store.DocumentRecord, error) {
	query := `
SELECT doc_id, kind, digest, title, step_count, stored_at
FROM documents
WHERE ($1 = '' OR kind = $1)
ORDER BY doc_id ASC
`
	rows, err := c.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	results := []store.DocumentRecord{}
	for rows.Next() {
		var r store.DocumentRecord
		var storedAt time.Time
		if err := rows.Scan(&r.ID, &r.Kind, &r.Digest, &r.Title, &r.StepCount, &storedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		r.StoredAt = document.FormatTimestamp(storedAt)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return results, nil
}

func (c *Client) FindRevision(ctx context.Context, revision string) ([]store.StepRecord, error) {
	if revision == "" {
		return nil, fmt.Errorf("revision must not be empty")
	}
	query := `
SELECT doc_id, path_id, step_id, actor, timestamp, intent, revision
FROM steps
WHERE revision = $1
ORDER BY doc_id ASC, path_id ASC, id ASC
`
	rows, err := c.pool.Query(ctx, query, revision)
	if err != nil {
		return nil, fmt.Errorf("finding revision: %w", err)
	}
	defer rows.Close()

	results := []store.StepRecord{}
	for rows.Next() {
		var r store.StepRecord
		if err := rows.Scan(&r.DocumentID, &r.PathID, &r.StepID, &r.Actor, &r.Timestamp, &r.Intent, &r.Revision); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps: %w", err)
	}
	return results, nil
}
