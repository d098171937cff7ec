package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"toolpath/internal/document"
	"toolpath/internal/signing"
	"toolpath/internal/store"
)

type mockArchive struct {
	docs          map[string]document.Document
	listResult    []store.DocumentRecord
	revisionSteps []store.StepRecord
	searchResult  []store.SearchResult

	lastListKind    document.Kind
	lastRevision    string
	lastSearchQuery string
	lastSearchLimit int
}

func (m *mockArchive) GetDocument(ctx context.Context, id string) (document.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return document.Document{}, store.ErrNotFound
	}
	return doc, nil
}

func (m *mockArchive) ListDocuments(ctx context.Context, kind document.Kind) ([]store.DocumentRecord, error) {
	m.lastListKind = kind
	return m.listResult, nil
}

func (m *mockArchive) FindRevision(ctx context.Context, revision string) ([]store.StepRecord, error) {
	m.lastRevision = revision
	return m.revisionSteps, nil
}

func (m *mockArchive) SearchSteps(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	m.lastSearchQuery = query
	m.lastSearchLimit = limit
	return m.searchResult, nil
}

var t0 = time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC)

// branchingPath has head s3 and an abandoned branch s2a off s1.
func branchingPath() *document.Path {
	p := document.NewPath("p1", nil, "s3")
	p.AddStep(document.NewStep("s1", "human:alex", t0).WithRawChange("src/main.go", "@@").WithIntent("Start"))
	p.AddStep(document.NewStep("s2", "agent:claude-code", t0.Add(time.Minute)).WithParent("s1").WithRawChange("src/main.go", "@@"))
	p.AddStep(document.NewStep("s2a", "agent:claude-code", t0.Add(2*time.Minute)).WithParent("s1").WithRawChange("README.md", "@@").WithIntent("Abandoned idea"))
	p.AddStep(document.NewStep("s3", "tool:rustfmt", t0.Add(3*time.Minute)).WithParent("s2").WithRawChange("src/main.go", "@@"))
	return p
}

func newTestServer(archive *mockArchive) *Server {
	return NewServer(archive, nil, []signing.Requirement{signing.RequireStepAuthor}, "test")
}

func TestGetDocument_NotFound(t *testing.T) {
	server := newTestServer(&mockArchive{docs: map[string]document.Document{}})

	_, _, err := server.handleGetDocument(context.Background(), nil, GetDocumentInput{ID: "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetDocument(t *testing.T) {
	archive := &mockArchive{docs: map[string]document.Document{"p1": document.PathDocument(branchingPath())}}
	server := newTestServer(archive)

	_, output, err := server.handleGetDocument(context.Background(), nil, GetDocumentInput{ID: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, ok := output.Document.(map[string]any)
	if !ok || output.Kind != "Path" {
		t.Fatalf("unexpected output: %+v", output)
	}
	if _, ok := body["Path"]; !ok {
		t.Fatalf("expected Path envelope, got keys %v", body)
	}
}

func TestListDocuments(t *testing.T) {
	archive := &mockArchive{listResult: []store.DocumentRecord{{ID: "p1", Kind: "Path", StepCount: 4}}}
	server := newTestServer(archive)

	_, output, err := server.handleListDocuments(context.Background(), nil, ListDocumentsInput{Kind: "Path"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Documents) != 1 || output.Documents[0].StepCount != 4 {
		t.Fatalf("unexpected list output: %+v", output)
	}
	if archive.lastListKind != document.KindPath {
		t.Fatalf("expected kind Path, got %q", archive.lastListKind)
	}

	if _, _, err := server.handleListDocuments(context.Background(), nil, ListDocumentsInput{Kind: "Tree"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestAncestorsAndDeadEnds(t *testing.T) {
	g := document.NewGraph("g1").AddPath(branchingPath())
	archive := &mockArchive{docs: map[string]document.Document{
		"p1": document.PathDocument(branchingPath()),
		"g1": document.GraphDocument(g),
	}}
	server := newTestServer(archive)
	ctx := context.Background()

	t.Run("ancestors", func(t *testing.T) {
		_, output, err := server.handleAncestors(ctx, nil, AncestorsInput{ID: "p1", Step: "s3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.StepIDs) != 3 {
			t.Fatalf("expected 3 ancestors, got %v", output.StepIDs)
		}
	})

	t.Run("unknown step", func(t *testing.T) {
		if _, _, err := server.handleAncestors(ctx, nil, AncestorsInput{ID: "p1", Step: "zz"}); err == nil {
			t.Fatal("expected error for unknown step")
		}
	})

	t.Run("dead ends", func(t *testing.T) {
		_, output, err := server.handleDeadEnds(ctx, nil, DeadEndsInput{ID: "p1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.Steps) != 1 || output.Steps[0].ID != "s2a" || output.Steps[0].Intent != "Abandoned idea" {
			t.Fatalf("expected s2a dead end, got %+v", output.Steps)
		}
	})

	t.Run("graph requires path", func(t *testing.T) {
		if _, _, err := server.handleDeadEnds(ctx, nil, DeadEndsInput{ID: "g1"}); err == nil {
			t.Fatal("expected error without path")
		}
		_, output, err := server.handleDeadEnds(ctx, nil, DeadEndsInput{ID: "g1", Path: "p1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.Steps) != 1 {
			t.Fatalf("expected one dead end, got %+v", output.Steps)
		}
	})
}

func TestFilterSteps(t *testing.T) {
	archive := &mockArchive{docs: map[string]document.Document{"p1": document.PathDocument(branchingPath())}}
	server := newTestServer(archive)
	ctx := context.Background()

	tests := []struct {
		name  string
		input FilterStepsInput
		want  []string
	}{
		{name: "actor prefix", input: FilterStepsInput{ID: "p1", Actor: "agent:"}, want: []string{"s2", "s2a"}},
		{name: "artifact", input: FilterStepsInput{ID: "p1", Artifact: "README.md"}, want: []string{"s2a"}},
		{name: "actor and artifact", input: FilterStepsInput{ID: "p1", Actor: "agent:", Artifact: "src/main.go"}, want: []string{"s2"}},
		{name: "time range", input: FilterStepsInput{ID: "p1", From: "2026-01-29T10:01:00Z", To: "2026-01-29T10:02:00Z"}, want: []string{"s2", "s2a"}},
		{name: "no filters", input: FilterStepsInput{ID: "p1"}, want: []string{"s1", "s2", "s2a", "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, output, err := server.handleFilterSteps(ctx, nil, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(output.Steps) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, output.Steps)
			}
			for i, id := range tt.want {
				if output.Steps[i].ID != id {
					t.Fatalf("expected %v, got %+v", tt.want, output.Steps)
				}
			}
		})
	}

	if _, _, err := server.handleFilterSteps(ctx, nil, FilterStepsInput{ID: "p1", From: "yesterday"}); err == nil {
		t.Fatal("expected error for malformed bound")
	}
}

func TestVerifyPath(t *testing.T) {
	signer, _, err := signing.Generate(signing.KeyTypeEd25519, "human:alex")
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	p := document.NewPath("p1", nil, "s1")
	s := document.NewStep("s1", "human:alex", t0).WithRawChange("a.txt", "@@")
	p.AddStep(s)
	sig, err := signing.SignStep(&p.Steps[0], signer, t0)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	p.Steps[0].AddSignature(sig)

	actors := map[string]document.ActorDefinition{
		"human:alex": {Name: "Alex", Keys: []document.Key{signer.Key()}},
	}
	archive := &mockArchive{docs: map[string]document.Document{"p1": document.PathDocument(p)}}
	ctx := context.Background()

	t.Run("extra directory resolves key", func(t *testing.T) {
		server := NewServer(archive, actors, []signing.Requirement{signing.RequireStepAuthor}, "test")
		_, output, err := server.handleVerifyPath(ctx, nil, VerifyPathInput{ID: "p1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !output.OK || output.Verified != 1 {
			t.Fatalf("expected verified path, got %+v", output)
		}
	})

	t.Run("unknown key fails closed", func(t *testing.T) {
		server := newTestServer(archive)
		_, output, err := server.handleVerifyPath(ctx, nil, VerifyPathInput{ID: "p1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.OK || len(output.Failures) != 1 {
			t.Fatalf("expected one failure, got %+v", output)
		}
	})

	t.Run("graph directory resolves key", func(t *testing.T) {
		gp := document.NewPath("p1", nil, "s1")
		gp.AddStep(document.NewStep("s1", "human:alex", t0).WithRawChange("a.txt", "@@"))
		pathSig, err := signing.SignPath(gp, signing.ScopeAuthor, "human:alex", signer, t0)
		if err != nil {
			t.Fatalf("signing path: %v", err)
		}
		gp.AddSignature(pathSig)
		g := document.NewGraph("g").AddPath(gp)
		g.Meta = &document.GraphMeta{Actors: actors}
		graphArchive := &mockArchive{docs: map[string]document.Document{"g": document.GraphDocument(g)}}

		server := newTestServer(graphArchive)
		_, output, err := server.handleVerifyPath(ctx, nil, VerifyPathInput{ID: "g", Path: "p1", Require: []string{"path/author"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !output.OK || output.Verified != 1 {
			t.Fatalf("expected graph-level key to verify, got %+v", output)
		}
	})

	t.Run("missing path author", func(t *testing.T) {
		server := NewServer(archive, actors, nil, "test")
		_, output, err := server.handleVerifyPath(ctx, nil, VerifyPathInput{ID: "p1", Require: []string{"path/author"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.OK || output.Failures[0].Requirement != "path/author" {
			t.Fatalf("expected path/author failure, got %+v", output)
		}
	})
}

func TestFindRevisionAndSearch(t *testing.T) {
	archive := &mockArchive{
		revisionSteps: []store.StepRecord{{DocumentID: "p1", PathID: "p1", StepID: "s1", Revision: "abc"}},
		searchResult:  []store.SearchResult{{StepRecord: store.StepRecord{DocumentID: "p1", StepID: "s2"}, Score: 2.5, Snippet: "**login**"}},
	}
	server := newTestServer(archive)
	ctx := context.Background()

	_, revs, err := server.handleFindRevision(ctx, nil, FindRevisionInput{Revision: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(revs.Steps) != 1 || revs.Steps[0].Step != "s1" || archive.lastRevision != "abc" {
		t.Fatalf("unexpected revision output: %+v", revs)
	}

	_, hits, err := server.handleSearchSteps(ctx, nil, SearchStepsInput{Query: "login", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits.Steps) != 1 || hits.Steps[0].Score != 2.5 || hits.Steps[0].Snippet != "**login**" {
		t.Fatalf("unexpected search output: %+v", hits)
	}
	if archive.lastSearchQuery != "login" || archive.lastSearchLimit != 5 {
		t.Fatalf("unexpected search params")
	}

	if _, _, err := server.handleSearchSteps(ctx, nil, SearchStepsInput{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}
