package sqlite

import (
	"context"
	"fmt"
	"strings"
)

const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id     TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	digest     TEXT NOT NULL,
	title      TEXT DEFAULT '',
	step_count INTEGER DEFAULT 0,
	body       TEXT NOT NULL,
	stored_at  TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);

CREATE TABLE IF NOT EXISTS steps (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id    TEXT NOT NULL REFERENCES documents(doc_id) ON DELETE CASCADE,
	path_id   TEXT NOT NULL DEFAULT '',
	step_id   TEXT NOT NULL,
	actor     TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	intent    TEXT DEFAULT '',
	revision  TEXT DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents (kind);
CREATE INDEX IF NOT EXISTS idx_steps_doc ON steps (doc_id);
CREATE INDEX IF NOT EXISTS idx_steps_revision ON steps (revision) WHERE revision <> '';
CREATE INDEX IF NOT EXISTS idx_steps_actor ON steps (actor);

CREATE VIRTUAL TABLE IF NOT EXISTS steps_fts USING fts5(
	intent,
	actor,
	content=steps,
	content_rowid=id
);

CREATE TRIGGER IF NOT EXISTS steps_ai AFTER INSERT ON steps BEGIN
	INSERT INTO steps_fts(rowid, intent, actor)
	VALUES (new.id, new.intent, new.actor);
END;

CREATE TRIGGER IF NOT EXISTS steps_ad AFTER DELETE ON steps BEGIN
	INSERT INTO steps_fts(steps_fts, rowid, intent, actor)
	VALUES ('delete', old.id, old.intent, old.actor);
END;

CREATE TRIGGER IF NOT EXISTS steps_au AFTER UPDATE ON steps BEGIN
	INSERT INTO steps_fts(steps_fts, rowid, intent, actor)
	VALUES ('delete', old.id, old.intent, old.actor);
	INSERT INTO steps_fts(rowid, intent, actor)
	VALUES (new.id, new.intent, new.actor);
END;
`

func (c *Client) EnsureSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}

// splitStatements breaks ddl on trailing semicolons, keeping trigger bodies
// between BEGIN and END intact.
func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder
	inBody := false

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		upper := strings.ToUpper(stripped)
		switch {
		case strings.HasSuffix(upper, " BEGIN"):
			inBody = true
			continue
		case upper == "END;":
			inBody = false
		}

		if !inBody && strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
