package document

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// Path is a DAG of steps anchored to a base context.
type Path struct {
	Identity PathIdentity `json:"path"`
	Steps    []Step       `json:"steps"`
	Meta     *PathMeta    `json:"meta,omitempty"`
}

type PathIdentity struct {
	ID   string `json:"id"`
	Base *Base  `json:"base,omitempty"`
	Head string `json:"head"`
}

// PathMeta is optional path metadata. Its actors directory applies to every
// step in the path.
type PathMeta struct {
	Title      string                     `json:"title,omitempty"`
	Source     string                     `json:"source,omitempty"`
	Intent     *string                    `json:"intent,omitempty"`
	Refs       []Ref                      `json:"refs,omitempty"`
	Actors     map[string]ActorDefinition `json:"actors,omitempty"`
	Signatures []Signature                `json:"signatures,omitempty"`
	Extra      Extra                      `json:"-"`
}

func (p *Path) UnmarshalJSON(data []byte) error {
	type plain Path
	var pl plain
	if _, err := decodeObject(data, "path", &pl, []string{"path", "steps"}); err != nil {
		return err
	}
	*p = Path(pl)
	return nil
}

func (p Path) MarshalJSON() ([]byte, error) {
	type plain Path
	pl := plain(p)
	if pl.Steps == nil {
		pl.Steps = []Step{}
	}
	return marshalNoEscape(pl)
}

func (id *PathIdentity) UnmarshalJSON(data []byte) error {
	type plain PathIdentity
	var p plain
	if _, err := decodeObject(data, "path identity", &p, []string{"id", "head"}); err != nil {
		return err
	}
	*id = PathIdentity(p)
	return nil
}

func (m *PathMeta) UnmarshalJSON(data []byte) error {
	type plain PathMeta
	var p plain
	extra, err := decodeObject(data, "path meta", &p, nil,
		"title", "source", "intent", "refs", "actors", "signatures")
	if err != nil {
		return err
	}
	p.Extra = extra
	*m = PathMeta(p)
	return nil
}

func (m PathMeta) MarshalJSON() ([]byte, error) {
	type plain PathMeta
	return encodeObject(plain(m), m.Extra)
}

// NewPath starts an empty path.
func NewPath(id string, base *Base, head string) *Path {
	return &Path{
		Identity: PathIdentity{ID: id, Base: base, Head: head},
		Steps:    []Step{},
	}
}

func (p *Path) ID() string { return p.Identity.ID }

// AddStep appends a copy of s.
func (p *Path) AddStep(s *Step) *Path {
	p.Steps = append(p.Steps, *s)
	return p
}

// Step returns the first step with the given id.
func (p *Path) Step(id string) (*Step, bool) {
	for i := range p.Steps {
		if p.Steps[i].Identity.ID == id {
			return &p.Steps[i], true
		}
	}
	return nil, false
}

func (p *Path) StepIDs() []string {
	ids := make([]string, len(p.Steps))
	for i := range p.Steps {
		ids[i] = p.Steps[i].Identity.ID
	}
	return ids
}

func (p *Path) ensureMeta() *PathMeta {
	if p.Meta == nil {
		p.Meta = &PathMeta{}
	}
	return p.Meta
}

func (p *Path) WithTitle(title string) *Path {
	p.ensureMeta().Title = title
	return p
}

func (p *Path) WithActor(actor string, def ActorDefinition) *Path {
	m := p.ensureMeta()
	if m.Actors == nil {
		m.Actors = map[string]ActorDefinition{}
	}
	m.Actors[actor] = def
	return p
}

// AddRef adds r to the path refs, returning false when it was present.
func (p *Path) AddRef(r Ref) bool {
	m := p.ensureMeta()
	var added bool
	m.Refs, added = AppendRef(m.Refs, r)
	return added
}

func (p *Path) AddSignature(sig Signature) {
	m := p.ensureMeta()
	m.Signatures = append(m.Signatures, sig)
}

func (p *Path) Actors() map[string]ActorDefinition {
	if p.Meta == nil {
		return nil
	}
	return p.Meta.Actors
}

func (p *Path) Signatures() []Signature {
	if p.Meta == nil {
		return nil
	}
	return p.Meta.Signatures
}

// ResolveActor finds the definition of actor, checking the step directory
// before the path directory.
func (p *Path) ResolveActor(s *Step, actor string) (ActorDefinition, bool) {
	return LookupActor(actor, s.Actors(), p.Actors())
}

// AllActors returns every distinct step actor in document order.
func (p *Path) AllActors() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range p.Steps {
		a := p.Steps[i].Identity.Actor
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

// AllArtifacts returns every distinct changed artifact, sorted within each
// step and in step order across steps.
func (p *Path) AllArtifacts() []string {
	seen := make(map[string]bool)
	var out []string
	for i := range p.Steps {
		for _, a := range slices.Sorted(maps.Keys(p.Steps[i].Change)) {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

// Clone returns a deep copy of the path.
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	out := *p
	if p.Identity.Base != nil {
		b := *p.Identity.Base
		out.Identity.Base = &b
	}
	if p.Steps != nil {
		out.Steps = make([]Step, len(p.Steps))
		for i := range p.Steps {
			out.Steps[i] = *p.Steps[i].Clone()
		}
	}
	if p.Meta != nil {
		m := *p.Meta
		if m.Refs != nil {
			m.Refs = append([]Ref(nil), m.Refs...)
		}
		m.Intent = cloneString(m.Intent)
		m.Actors = cloneActors(m.Actors)
		if m.Signatures != nil {
			m.Signatures = append([]Signature(nil), m.Signatures...)
		}
		m.Extra = m.Extra.clone()
		out.Meta = &m
	}
	return &out
}

const maxJSONLLine = 64 << 20

// ReadJSONL appends one bare step per non-blank line of r.
func (p *Path) ReadJSONL(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxJSONLLine)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return &Error{Kind: ErrParse, Msg: fmt.Sprintf("line %d: invalid JSON", line)}
		}
		var s Step
		if err := json.Unmarshal(text, &s); err != nil {
			return fmt.Errorf("line %d: %w", line, asSchemaError(err))
		}
		p.Steps = append(p.Steps, s)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading steps: %w", err)
	}
	return nil
}

// WriteJSONL writes each step as a bare body on its own line.
func (p *Path) WriteJSONL(w io.Writer) error {
	for i := range p.Steps {
		data, err := marshalNoEscape(p.Steps[i])
		if err != nil {
			return fmt.Errorf("encoding step %s: %w", p.Steps[i].Identity.ID, err)
		}
		data = append(data, '\n')
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// BaseKind classifies a base URI.
type BaseKind int

const (
	BaseVCS BaseKind = iota
	BaseFile
	BaseToolpath
)

const (
	fileScheme     = "file://"
	toolpathScheme = "toolpath:"
)

// Base is the context a path starts from: a repository state, a local file,
// or a step in another path.
type Base struct {
	URI string `json:"uri"`
	Ref string `json:"ref,omitempty"`
}

func (b *Base) UnmarshalJSON(data []byte) error {
	type plain Base
	var p plain
	if _, err := decodeObject(data, "base", &p, []string{"uri"}); err != nil {
		return err
	}
	*b = Base(p)
	return nil
}

// VCSBase anchors a path at ref in the repository at uri.
func VCSBase(uri, ref string) *Base { return &Base{URI: uri, Ref: ref} }

// FileBase anchors a path at a local file.
func FileBase(path string) *Base { return &Base{URI: fileScheme + path} }

// ToolpathBase anchors a path at a step of another path.
func ToolpathBase(pathID, stepID string) *Base {
	return &Base{URI: toolpathScheme + pathID + "/" + stepID}
}

func (b Base) Kind() BaseKind {
	switch {
	case strings.HasPrefix(b.URI, toolpathScheme):
		return BaseToolpath
	case strings.HasPrefix(b.URI, fileScheme):
		return BaseFile
	default:
		return BaseVCS
	}
}

// ToolpathTarget splits a toolpath: base into its path and step ids.
func (b Base) ToolpathTarget() (pathID, stepID string, ok bool) {
	if b.Kind() != BaseToolpath {
		return "", "", false
	}
	pathID, stepID, ok = strings.Cut(strings.TrimPrefix(b.URI, toolpathScheme), "/")
	if !ok || pathID == "" || stepID == "" || strings.Contains(stepID, "/") {
		return "", "", false
	}
	return pathID, stepID, true
}

// Check reports structural problems with the base.
func (b Base) Check() error {
	if b.URI == "" {
		return fmt.Errorf("base uri is empty")
	}
	switch b.Kind() {
	case BaseToolpath:
		if _, _, ok := b.ToolpathTarget(); !ok {
			return fmt.Errorf("toolpath base %q must be toolpath:<path>/<step>", b.URI)
		}
		if b.Ref != "" {
			return fmt.Errorf("toolpath base %q must not carry a ref", b.URI)
		}
	case BaseFile:
		if b.Ref != "" {
			return fmt.Errorf("file base %q must not carry a ref", b.URI)
		}
	}
	return nil
}
