package sqlite

import (
	"context"
	"fmt"
)

// DeleteDocument removes a document and its step rows. It reports whether
// anything was deleted.
func (c *Client) DeleteDocument(ctx context.Context, id string) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE doc_id = ?`, id); err != nil {
		return false, fmt.Errorf("removing step rows: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("removing document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}
	return affected > 0, nil
}
