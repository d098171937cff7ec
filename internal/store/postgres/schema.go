package postgres

import (
	"context"
	"fmt"
)

// All statements run in a single Exec, which PostgreSQL wraps in one implicit
// transaction.
const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    doc_id     TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    digest     TEXT NOT NULL,
    title      TEXT DEFAULT '',
    step_count INTEGER DEFAULT 0,
    body       JSONB NOT NULL,
    raw_body   TEXT NOT NULL,
    stored_at  TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS steps (
    id        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    doc_id    TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
    path_id   TEXT NOT NULL DEFAULT '',
    step_id   TEXT NOT NULL,
    actor     TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    intent    TEXT DEFAULT '',
    revision  TEXT DEFAULT ''
);

ALTER TABLE steps ADD COLUMN IF NOT EXISTS search_vector TSVECTOR
    GENERATED ALWAYS AS (
        setweight(to_tsvector('english', coalesce(intent, '')), 'A') ||
        setweight(to_tsvector('simple', coalesce(actor, '')), 'B')
    ) STORED;

CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents (kind);
CREATE INDEX IF NOT EXISTS idx_steps_doc ON steps (doc_id);
CREATE INDEX IF NOT EXISTS idx_steps_revision ON steps (revision) WHERE revision <> '';
CREATE INDEX IF NOT EXISTS idx_steps_actor ON steps (actor);
CREATE INDEX IF NOT EXISTS idx_steps_search ON steps USING GIN (search_vector);
`

func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
