package document

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 29, 10, 0, 0, 0, time.UTC)

func samplePath() *Path {
	s1 := NewStep("s1", "human:alex", t0).
		WithRawChange("src/main.rs", "@@ -1 +1 @@\n-a\n+b").
		WithIntent("first")
	s2 := NewStep("s2", "agent:claude-code", t0.Add(time.Minute)).
		WithParent("s1").
		WithStructuralChange("src/main.rs", StructuralChange{Type: "rename_function"})
	return NewPath("p1", VCSBase("github:org/repo", "abc123"), "s2").AddStep(s1).AddStep(s2)
}

func TestParse(t *testing.T) {
	t.Run("enveloped step", func(t *testing.T) {
		doc, err := Parse([]byte(`{"Step":{"step":{"id":"s1","actor":"human:alex","timestamp":"2026-01-29T10:00:00Z"},"change":{"a.txt":{"raw":"x"}}}}`))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if doc.Kind() != KindStep {
			t.Fatalf("expected Step, got %s", doc.Kind())
		}
		if doc.Step().Change["a.txt"].RawDiff() != "x" {
			t.Fatalf("unexpected change: %#v", doc.Step().Change)
		}
	})

	t.Run("bare bodies classified by shape", func(t *testing.T) {
		cases := map[string]Kind{
			`{"graph":{"id":"g"},"paths":[]}`:                                                   KindGraph,
			`{"path":{"id":"p","head":"s"},"steps":[]}`:                                         KindPath,
			`{"step":{"id":"s","actor":"tool:x","timestamp":"2026-01-29T10:00:00Z"},"change":{}}`: KindStep,
		}
		for input, want := range cases {
			doc, err := Parse([]byte(input))
			if err != nil {
				t.Fatalf("parse %s: %v", input, err)
			}
			if doc.Kind() != want {
				t.Fatalf("expected %s, got %s", want, doc.Kind())
			}
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Parse([]byte(`{"Step":`))
		if !errors.Is(err, ErrParse) {
			t.Fatalf("expected ErrParse, got %v", err)
		}
	})

	t.Run("missing required field", func(t *testing.T) {
		_, err := Parse([]byte(`{"Step":{"step":{"id":"s1","timestamp":"2026-01-29T10:00:00Z"},"change":{}}}`))
		if !errors.Is(err, ErrSchema) {
			t.Fatalf("expected ErrSchema, got %v", err)
		}
		if !strings.Contains(err.Error(), "actor") {
			t.Fatalf("expected error to name the field, got %v", err)
		}
	})

	t.Run("tag disagrees with body", func(t *testing.T) {
		_, err := Parse([]byte(`{"Graph":{"path":{"id":"p","head":"s"},"steps":[]}}`))
		if !errors.Is(err, ErrSchema) {
			t.Fatalf("expected ErrSchema, got %v", err)
		}
	})

	t.Run("unrecognised shape", func(t *testing.T) {
		_, err := Parse([]byte(`{"hello":"world"}`))
		if !errors.Is(err, ErrSchema) {
			t.Fatalf("expected ErrSchema, got %v", err)
		}
	})

	t.Run("wrong field type", func(t *testing.T) {
		_, err := Parse([]byte(`{"Path":{"path":{"id":7,"head":"s"},"steps":[]}}`))
		if !errors.Is(err, ErrSchema) {
			t.Fatalf("expected ErrSchema, got %v", err)
		}
	})
}

func TestSerializeRoundTrip(t *testing.T) {
	p := samplePath()
	p.WithTitle("Sample").AddRef(Ref{Rel: "issue", Href: "https://example.com/1"})

	for _, doc := range []Document{
		PathDocument(p),
		StepDocument(&p.Steps[0]),
		GraphDocument(NewGraph("g1").AddPath(p).AddPathRef("$ref:elsewhere.json")),
	} {
		for _, pretty := range []bool{false, true} {
			data, err := Serialize(doc, pretty)
			if err != nil {
				t.Fatalf("serialize: %v", err)
			}
			back, err := Parse(data)
			if err != nil {
				t.Fatalf("reparse: %v\n%s", err, data)
			}
			if !reflect.DeepEqual(back, doc) {
				t.Fatalf("round trip mismatch for %s:\n%s", doc.Kind(), data)
			}
		}
	}
}

func TestSerializeDoesNotEscapeHTML(t *testing.T) {
	s := NewStep("s1", "human:alex", t0).WithRawChange("a.go", "-if a < b && c > d")
	data, err := Serialize(StepDocument(s), false)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if !bytes.Contains(data, []byte("a < b && c > d")) {
		t.Fatalf("expected literal diff text, got %s", data)
	}
}

func TestExtraFieldsPreserved(t *testing.T) {
	input := `{"Step":{"step":{"id":"s1","actor":"human:alex","timestamp":"2026-01-29T10:00:00Z"},"change":{"a.txt":{"raw":"x","structural":{"type":"edit","line":4},"ast":{"kind":"fn"}}},"meta":{"intent":"i","zeta":1,"alpha":[true,null]}}}`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := doc.Step()
	if got, ok := s.Meta.Extra.Get("zeta"); !ok || string(got) != "1" {
		t.Fatalf("expected zeta extra, got %q", got)
	}
	if keys := []string{s.Meta.Extra[0].Key, s.Meta.Extra[1].Key}; !reflect.DeepEqual(keys, []string{"zeta", "alpha"}) {
		t.Fatalf("expected document order, got %v", keys)
	}
	if _, ok := s.Change["a.txt"].Extra.Get("ast"); !ok {
		t.Fatalf("expected ast perspective preserved")
	}
	if _, ok := s.Change["a.txt"].Structural.Extra.Get("line"); !ok {
		t.Fatalf("expected structural extra preserved")
	}

	out, err := Serialize(doc, false)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if string(out) != input {
		t.Fatalf("round trip changed document:\nwant %s\ngot  %s", input, out)
	}
}

func TestExplicitEmptyStringsSurvive(t *testing.T) {
	input := `{"Step":{"step":{"id":"s1","actor":"human:alex","timestamp":"2026-01-29T10:00:00Z"},"change":{"f":{"raw":""}},"meta":{"intent":""}}}`
	doc, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := doc.Step()
	if s.Change["f"].Raw == nil || s.Meta.Intent == nil {
		t.Fatalf("expected explicit empty raw and intent, got %#v %#v", s.Change["f"], s.Meta)
	}

	out, err := Serialize(doc, false)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if string(out) != input {
		t.Fatalf("round trip changed document:\nwant %s\ngot  %s", input, out)
	}
	back, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(back, doc) {
		t.Fatalf("round trip mismatch:\n%s", out)
	}

	t.Run("absent stays absent", func(t *testing.T) {
		doc, err := Parse([]byte(`{"step":{"id":"s1","actor":"human:alex","timestamp":"2026-01-29T10:00:00Z"},"change":{"f":{"structural":{"type":"edit"}}},"meta":{}}`))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		out, err := Serialize(doc, false)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if bytes.Contains(out, []byte(`"raw"`)) || bytes.Contains(out, []byte(`"intent"`)) {
			t.Fatalf("expected no raw or intent keys, got %s", out)
		}
	})

	t.Run("path and graph intent", func(t *testing.T) {
		p := samplePath()
		p.ensureMeta().Intent = String("")
		g := NewGraph("g1").AddPath(p)
		g.ensureMeta().Intent = String("")
		doc := GraphDocument(g)
		out, err := Serialize(doc, false)
		if err != nil {
			t.Fatalf("serialize: %v", err)
		}
		if n := bytes.Count(out, []byte(`"intent":""`)); n != 2 {
			t.Fatalf("expected two empty intents, got %d in %s", n, out)
		}
		back, err := Parse(out)
		if err != nil {
			t.Fatalf("reparse: %v", err)
		}
		if !reflect.DeepEqual(back, doc) {
			t.Fatalf("round trip mismatch:\n%s", out)
		}
	})
}

func TestPathEntryRef(t *testing.T) {
	doc, err := Parse([]byte(`{"graph":{"id":"g"},"paths":[{"$ref":"other.json"}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g := doc.Graph()
	if len(g.Paths) != 1 || g.Paths[0].Ref != "other.json" || g.Paths[0].Path != nil {
		t.Fatalf("unexpected entries: %#v", g.Paths)
	}
	if len(g.InlinePaths()) != 0 {
		t.Fatalf("expected no inline paths")
	}
}

func TestClone(t *testing.T) {
	p := samplePath()
	p.WithActor("human:alex", ActorDefinition{Name: "Alex", Keys: []Key{{Type: "ed25519", Fingerprint: "fp"}}})
	c := p.Clone()
	if !reflect.DeepEqual(c, p) {
		t.Fatalf("clone differs from original")
	}
	c.Steps[0].Identity.Parents = append(c.Steps[0].Identity.Parents, "x")
	c.Steps[0].Change["other"] = ArtifactChange{Raw: String("y")}
	c.Meta.Actors["human:alex"].Keys[0].Fingerprint = "changed"
	c.Identity.Base.Ref = "changed"
	if len(p.Steps[0].Identity.Parents) != 0 || len(p.Steps[0].Change) != 1 {
		t.Fatalf("clone shares step state with original")
	}
	if p.Meta.Actors["human:alex"].Keys[0].Fingerprint != "fp" || p.Identity.Base.Ref != "abc123" {
		t.Fatalf("clone shares meta state with original")
	}
}

func TestJSONL(t *testing.T) {
	p := samplePath()
	var buf bytes.Buffer
	if err := p.WriteJSONL(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}

	loaded := NewPath("p1", p.Identity.Base, "s2")
	if err := loaded.ReadJSONL(strings.NewReader(buf.String() + "\n\n")); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(loaded.Steps, p.Steps) {
		t.Fatalf("steps differ after JSONL round trip")
	}

	err := NewPath("p", nil, "s").ReadJSONL(strings.NewReader("{not json}\n"))
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestBase(t *testing.T) {
	cases := []struct {
		base  *Base
		kind  BaseKind
		valid bool
	}{
		{VCSBase("github:org/repo", "main"), BaseVCS, true},
		{FileBase("/tmp/doc.md"), BaseFile, true},
		{ToolpathBase("p1", "s3"), BaseToolpath, true},
		{&Base{URI: "toolpath:p1"}, BaseToolpath, false},
		{&Base{URI: "toolpath:p1/s1", Ref: "main"}, BaseToolpath, false},
		{&Base{URI: "file:///x", Ref: "main"}, BaseFile, false},
	}
	for _, tc := range cases {
		if tc.base.Kind() != tc.kind {
			t.Fatalf("%s: expected kind %d, got %d", tc.base.URI, tc.kind, tc.base.Kind())
		}
		if err := tc.base.Check(); (err == nil) != tc.valid {
			t.Fatalf("%s: unexpected check result %v", tc.base.URI, err)
		}
	}
	pathID, stepID, ok := ToolpathBase("p1", "s3").ToolpathTarget()
	if !ok || pathID != "p1" || stepID != "s3" {
		t.Fatalf("unexpected target %q %q %v", pathID, stepID, ok)
	}
}

func TestActors(t *testing.T) {
	if !ValidActor("agent:claude-code/session-1") || ValidActor("nocolon") || ValidActor("1x:y") {
		t.Fatalf("actor pattern mismatch")
	}
	if ActorType("agent:claude") != "agent" {
		t.Fatalf("unexpected actor type")
	}

	p := samplePath()
	p.WithActor("human:alex", ActorDefinition{Name: "Path Alex"})
	s := &p.Steps[0]
	s.WithActor("human:alex", ActorDefinition{Name: "Step Alex"})
	def, ok := p.ResolveActor(s, "human:alex")
	if !ok || def.Name != "Step Alex" {
		t.Fatalf("expected step directory to win, got %#v", def)
	}
	def, ok = p.ResolveActor(&p.Steps[1], "human:alex")
	if !ok || def.Name != "Path Alex" {
		t.Fatalf("expected path directory fallback, got %#v", def)
	}

	if got := p.AllActors(); !reflect.DeepEqual(got, []string{"human:alex", "agent:claude-code"}) {
		t.Fatalf("unexpected actors %v", got)
	}
	if got := p.AllArtifacts(); !reflect.DeepEqual(got, []string{"src/main.rs"}) {
		t.Fatalf("unexpected artifacts %v", got)
	}
}

func TestRefsHaveSetSemantics(t *testing.T) {
	s := NewStep("s1", "human:alex", t0)
	if !s.AddRef(Ref{Rel: "r", Href: "h"}) {
		t.Fatalf("expected first add to succeed")
	}
	if s.AddRef(Ref{Rel: "r", Href: "h"}) {
		t.Fatalf("expected duplicate add to be ignored")
	}
	if len(s.Meta.Refs) != 1 {
		t.Fatalf("expected one ref, got %d", len(s.Meta.Refs))
	}
}

func TestStepTime(t *testing.T) {
	s := NewStep("s1", "human:alex", t0.Add(1500*time.Millisecond))
	if s.Identity.Timestamp != "2026-01-29T10:00:01.5Z" {
		t.Fatalf("unexpected timestamp %q", s.Identity.Timestamp)
	}
	got, err := s.Time()
	if err != nil || !got.Equal(t0.Add(1500*time.Millisecond)) {
		t.Fatalf("unexpected time %v %v", got, err)
	}
}
