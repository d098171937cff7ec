package postgres

import (
	"context"
	"fmt"
)

// DeleteDocument removes a document; its step rows go with it through the
// ON DELETE CASCADE foreign key.
func (c *Client) DeleteDocument(ctx context.Context, id string) (bool, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("removing document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
