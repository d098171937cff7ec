package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"toolpath/internal/document"
	"toolpath/internal/store"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "archive.db")
	c, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return c
}

func testPath(id, revision, intent string) *document.Path {
	at := time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC)
	p := document.NewPath(id, document.VCSBase("github:org/repo", "abc"), "s2").WithTitle("title " + id)
	p.AddStep(document.NewStep("s1", "human:alex", at).
		WithRawChange("src/auth.go", "@@").
		WithIntent(intent).
		WithVCSSource("git", revision))
	p.AddStep(document.NewStep("s2", "agent:claude-code", at.Add(time.Minute)).
		WithParent("s1").
		WithRawChange("src/auth_test.go", "@@").
		WithIntent("Add regression tests"))
	return p
}

func TestClientDocuments(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	rec, err := c.PutDocument(ctx, document.PathDocument(testPath("p1", "deadbeef", "Refactor login flow")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.StepCount != 2 || rec.StoredAt == "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := c.PutDocument(ctx, document.PathDocument(testPath("p2", "cafef00d", "Tune cache size"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("get round trips", func(t *testing.T) {
		doc, err := c.GetDocument(ctx, "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Kind() != document.KindPath || len(doc.Path().Steps) != 2 {
			t.Fatalf("unexpected document: %s with %d steps", doc.Kind(), len(doc.Path().Steps))
		}
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := c.GetDocument(ctx, "nope")
		if !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list filters by kind", func(t *testing.T) {
		all, err := c.ListDocuments(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(all) != 2 || all[0].ID != "p1" || all[1].ID != "p2" {
			t.Fatalf("expected [p1 p2], got %+v", all)
		}
		graphs, err := c.ListDocuments(ctx, document.KindGraph)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(graphs) != 0 {
			t.Fatalf("expected no graphs, got %d", len(graphs))
		}
	})

	t.Run("find revision", func(t *testing.T) {
		steps, err := c.FindRevision(ctx, "deadbeef")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(steps) != 1 || steps[0].PathID != "p1" || steps[0].StepID != "s1" {
			t.Fatalf("expected p1/s1, got %+v", steps)
		}
	})

	t.Run("search intents", func(t *testing.T) {
		results, err := c.SearchSteps(ctx, "login", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 || results[0].DocumentID != "p1" {
			t.Fatalf("expected one hit in p1, got %+v", results)
		}
	})

	t.Run("put replaces step rows", func(t *testing.T) {
		if _, err := c.PutDocument(ctx, document.PathDocument(testPath("p1", "0badc0de", "Rewrite session handling"))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		old, err := c.FindRevision(ctx, "deadbeef")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(old) != 0 {
			t.Fatalf("expected stale revision gone, got %+v", old)
		}
		results, err := c.SearchSteps(ctx, "login", 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 0 {
			t.Fatalf("expected stale intent unindexed, got %+v", results)
		}
	})

	t.Run("run sql", func(t *testing.T) {
		rows, err := c.RunSQL(ctx, "SELECT step_id FROM steps WHERE doc_id = ? ORDER BY step_id", map[string]any{"1": "p2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rows) != 2 || rows[0]["step_id"] != "s1" {
			t.Fatalf("unexpected rows: %v", rows)
		}
		if _, err := c.RunSQL(ctx, "DELETE FROM steps", nil); !errors.Is(err, store.ErrNotReadOnly) {
			t.Fatalf("expected ErrNotReadOnly, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		ok, err := c.DeleteDocument(ctx, "p2")
		if err != nil || !ok {
			t.Fatalf("expected delete, got %v %v", ok, err)
		}
		ok, err = c.DeleteDocument(ctx, "p2")
		if err != nil || ok {
			t.Fatalf("expected no-op delete, got %v %v", ok, err)
		}
		steps, _ := c.FindRevision(ctx, "cafef00d")
		if len(steps) != 0 {
			t.Fatalf("expected step rows removed, got %+v", steps)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	var triggers int
	for _, stmt := range splitStatements(ddl) {
		if strings.Contains(stmt, "CREATE TRIGGER") {
			if !strings.Contains(stmt, "END;") {
				t.Fatalf("trigger split before END: %q", stmt)
			}
			triggers++
		}
	}
	if triggers != 3 {
		t.Fatalf("expected 3 trigger statements, got %d", triggers)
	}
}
