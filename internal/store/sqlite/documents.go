package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toolpath/internal/document"
	"toolpath/internal/store"
)

// PutDocument upserts doc by id and replaces its indexed step rows.
func (c *Client) PutDocument(ctx context.Context, doc document.Document) (*store.DocumentRecord, error) {
	prep, err := store.Prepare(doc)
	if err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE doc_id = ?`, prep.Record.ID); err != nil {
		return nil, fmt.Errorf("clearing step rows: %w", err)
	}

	upsert := `
	INSERT INTO documents (doc_id, kind, digest, title, step_count, body, stored_at)
	VALUES (?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	ON CONFLICT (doc_id) DO UPDATE SET
		kind = excluded.kind,
		digest = excluded.digest,
		title = excluded.title,
		step_count = excluded.step_count,
		body = excluded.body,
		stored_at = excluded.stored_at
	RETURNING stored_at
	`
	rec := prep.Record
	err = tx.QueryRowContext(ctx, upsert,
		rec.ID, rec.Kind, rec.Digest, rec.Title, rec.StepCount, string(prep.Body),
	).Scan(&rec.StoredAt)
	if err != nil {
		return nil, fmt.Errorf("upserting document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO steps (doc_id, path_id, step_id, actor, timestamp, intent, revision)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("preparing step insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range prep.Steps {
		if _, err := stmt.ExecContext(ctx, s.DocumentID, s.PathID, s.StepID, s.Actor, s.Timestamp, s.Intent, s.Revision); err != nil {
			return nil, fmt.Errorf("inserting step %s: %w", s.StepID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing document: %w", err)
	}
	return &rec, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var body string
	err := c.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE doc_id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
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
	WHERE (? = '' OR kind = ?)
	ORDER BY doc_id ASC
	`
	rows, err := c.db.QueryContext(ctx, query, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	results := []store.DocumentRecord{}
	for rows.Next() {
		var r store.DocumentRecord
		if err := rows.Scan(&r.ID, &r.Kind, &r.Digest, &r.Title, &r.StepCount, &r.StoredAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
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
	WHERE revision = ?
	ORDER BY doc_id ASC, path_id ASC, id ASC
	`
	rows, err := c.db.QueryContext(ctx, query, revision)
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
