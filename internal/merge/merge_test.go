package merge

import (
	"errors"
	"testing"
	"time"

	"toolpath/internal/document"
)

var t0 = time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC)

func pathDoc(id string) document.Document {
	s := document.NewStep(id+"-s1", "human:alex", t0).WithRawChange("a.txt", "+x")
	return document.PathDocument(document.NewPath(id, nil, s.Identity.ID).AddStep(s))
}

func TestMerge(t *testing.T) {
	t.Run("distinct paths", func(t *testing.T) {
		g, err := Merge([]document.Document{pathDoc("pr-42"), pathDoc("pr-43")}, "Release")
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if len(g.Paths) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(g.Paths))
		}
		if g.Identity.ID != "graph-merged-2" || g.Meta == nil || g.Meta.Title != "Release" {
			t.Fatalf("unexpected graph header %#v %#v", g.Identity, g.Meta)
		}
	})

	t.Run("duplicate path ids", func(t *testing.T) {
		_, err := Merge([]document.Document{pathDoc("pr-42"), pathDoc("pr-42")}, "")
		if !errors.Is(err, ErrDuplicatePathID) {
			t.Fatalf("expected ErrDuplicatePathID, got %v", err)
		}
		if !errors.Is(err, document.ErrInvariantViolation) {
			t.Fatalf("expected invariant violation, got %v", err)
		}
	})

	t.Run("graphs are flattened one level", func(t *testing.T) {
		inner := document.NewGraph("g1").AddPath(pathDoc("a").Path()).AddPathRef("remote.json")
		g, err := Merge([]document.Document{document.GraphDocument(inner), pathDoc("b")}, "")
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		if len(g.Paths) != 3 || g.Paths[1].Ref != "remote.json" || g.Paths[2].Path.Identity.ID != "b" {
			t.Fatalf("unexpected entries %#v", g.Paths)
		}
		if g.Meta != nil {
			t.Fatalf("expected no meta without a title")
		}
	})

	t.Run("duplicate across graph and path", func(t *testing.T) {
		inner := document.NewGraph("g1").AddPath(pathDoc("a").Path())
		_, err := Merge([]document.Document{document.GraphDocument(inner), pathDoc("a")}, "")
		if !errors.Is(err, ErrDuplicatePathID) {
			t.Fatalf("expected ErrDuplicatePathID, got %v", err)
		}
	})

	t.Run("step input rejected", func(t *testing.T) {
		step := document.NewStep("s1", "human:alex", t0)
		_, err := Merge([]document.Document{pathDoc("a"), document.StepDocument(step)}, "")
		if !errors.Is(err, ErrStepInput) {
			t.Fatalf("expected ErrStepInput, got %v", err)
		}
	})

	t.Run("duplicate step ids", func(t *testing.T) {
		doc := pathDoc("a")
		doc.Path().AddStep(document.NewStep("a-s1", "human:alex", t0))
		_, err := Merge([]document.Document{doc}, "")
		if !errors.Is(err, document.ErrInvariantViolation) || errors.Is(err, ErrDuplicatePathID) {
			t.Fatalf("expected step invariant violation, got %v", err)
		}
	})

	t.Run("inputs are copied", func(t *testing.T) {
		doc := pathDoc("a")
		g, err := Merge([]document.Document{doc}, "")
		if err != nil {
			t.Fatalf("merge: %v", err)
		}
		g.Paths[0].Path.Identity.Head = "changed"
		if doc.Path().Identity.Head != "a-s1" {
			t.Fatalf("merge output aliases its input")
		}
	})

	t.Run("no input", func(t *testing.T) {
		if _, err := Merge(nil, ""); !errors.Is(err, ErrNoInput) {
			t.Fatalf("expected ErrNoInput, got %v", err)
		}
	})
}
