package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"toolpath/internal/document"
	"toolpath/internal/store"
)

type mockArchive struct {
	records []store.DocumentRecord
	stored  []string
	deleted []string
	failPut string
}

func (m *mockArchive) PutDocument(ctx context.Context, doc document.Document) (*store.DocumentRecord, error) {
	if doc.ID() == m.failPut {
		return nil, errors.New("forced error")
	}
	m.stored = append(m.stored, doc.ID())
	return &store.DocumentRecord{ID: doc.ID(), Kind: doc.Kind().String()}, nil
}

func (m *mockArchive) DeleteDocument(ctx context.Context, id string) (bool, error) {
	m.deleted = append(m.deleted, id)
	return true, nil
}

func (m *mockArchive) ListDocuments(ctx context.Context, kind document.Kind) ([]store.DocumentRecord, error) {
	return m.records, nil
}

func testPath(id, title string) *document.Path {
	at := time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC)
	p := document.NewPath(id, nil, "s1").WithTitle(title)
	p.AddStep(document.NewStep("s1", "human:alex", at).WithRawChange("a.txt", "@@"))
	return p
}

func writeDoc(t *testing.T, path string, doc document.Document) {
	t.Helper()
	data, err := document.Serialize(doc, true)
	if err != nil {
		t.Fatalf("serializing: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func digestOf(t *testing.T, doc document.Document) string {
	t.Helper()
	prep, err := store.Prepare(doc)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return prep.Record.Digest
}

func TestRun_StoresDocuments(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "a.json"), document.PathDocument(testPath("pa", "A")))
	writeDoc(t, filepath.Join(root, "nested", "b.json"), document.PathDocument(testPath("pb", "B")))
	os.WriteFile(filepath.Join(root, "notes.md"), []byte("# not a document"), 0o644)

	db := &mockArchive{}
	result, err := Run(context.Background(), db, []string{root}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Stored, []string{"pa", "pb"}) {
		t.Fatalf("expected pa and pb stored, got %v", result.Stored)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
}

func TestRun_SkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	same := document.PathDocument(testPath("pa", "A"))
	writeDoc(t, filepath.Join(root, "a.json"), same)
	writeDoc(t, filepath.Join(root, "b.json"), document.PathDocument(testPath("pb", "B")))

	db := &mockArchive{records: []store.DocumentRecord{
		{ID: "pa", Digest: digestOf(t, same)},
		{ID: "pb", Digest: "stale"},
	}}

	t.Run("incremental", func(t *testing.T) {
		db.stored = nil
		result, err := Run(context.Background(), db, []string{root}, Options{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Skipped != 1 || !reflect.DeepEqual(db.stored, []string{"pb"}) {
			t.Fatalf("expected only pb stored, got skipped=%d stored=%v", result.Skipped, db.stored)
		}
	})

	t.Run("full", func(t *testing.T) {
		db.stored = nil
		result, err := Run(context.Background(), db, []string{root}, Options{Full: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Skipped != 0 || len(db.stored) != 2 {
			t.Fatalf("expected both stored, got skipped=%d stored=%v", result.Skipped, db.stored)
		}
	})
}

func TestRun_Prune(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "a.json"), document.PathDocument(testPath("pa", "A")))

	db := &mockArchive{records: []store.DocumentRecord{{ID: "pa"}, {ID: "gone"}}}
	result, err := Run(context.Background(), db, []string{root}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.deleted) != 0 {
		t.Fatalf("expected no deletes without prune, got %v", db.deleted)
	}

	result, err = Run(context.Background(), db, []string{root}, Options{Prune: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(result.Removed, []string{"gone"}) {
		t.Fatalf("expected gone removed, got %v", result.Removed)
	}
}

func TestRun_CollectsErrors(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "a.json"), document.PathDocument(testPath("pa", "A")))
	writeDoc(t, filepath.Join(root, "copy.json"), document.PathDocument(testPath("pa", "A again")))
	writeDoc(t, filepath.Join(root, "fail.json"), document.PathDocument(testPath("pf", "F")))
	os.WriteFile(filepath.Join(root, "broken.json"), []byte("{"), 0o644)

	bad := testPath("pbad", "Bad")
	bad.Steps[0].Identity.Parents = []string{"ghost"}
	writeDoc(t, filepath.Join(root, "invalid.json"), document.PathDocument(bad))

	db := &mockArchive{failPut: "pf"}
	result, err := Run(context.Background(), db, []string{root}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 4 {
		t.Fatalf("expected 4 errors, got %d: %v", len(result.Errors), result.Errors)
	}
	if !reflect.DeepEqual(result.Stored, []string{"pa"}) {
		t.Fatalf("expected only pa stored, got %v", result.Stored)
	}
}

func TestWalkDocumentFiles_Exclude(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "keep.json"), document.PathDocument(testPath("k", "K")))
	writeDoc(t, filepath.Join(root, "vendor", "skip.json"), document.PathDocument(testPath("s", "S")))

	files, err := walkDocumentFiles([]string{root}, []string{filepath.Join(root, "vendor")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(files, []string{filepath.Join(root, "keep.json")}) {
		t.Fatalf("unexpected files: %v", files)
	}
}
