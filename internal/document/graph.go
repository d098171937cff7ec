package document

import (
	"encoding/json"
)

// Graph is a collection of related paths.
type Graph struct {
	Identity GraphIdentity `json:"graph"`
	Paths    []PathEntry   `json:"paths"`
	Meta     *GraphMeta    `json:"meta,omitempty"`
}

type GraphIdentity struct {
	ID string `json:"id"`
}

// PathEntry is either an inline path or a reference to one stored elsewhere.
// Exactly one of Path and Ref is set.
type PathEntry struct {
	Path *Path
	Ref  string
}

type GraphMeta struct {
	Title      string                     `json:"title,omitempty"`
	Intent     *string                    `json:"intent,omitempty"`
	Refs       []Ref                      `json:"refs,omitempty"`
	Actors     map[string]ActorDefinition `json:"actors,omitempty"`
	Signatures []Signature                `json:"signatures,omitempty"`
	Extra      Extra                      `json:"-"`
}

const refKey = "$ref"

func (g *Graph) UnmarshalJSON(data []byte) error {
	type plain Graph
	var p plain
	if _, err := decodeObject(data, "graph", &p, []string{"graph", "paths"}); err != nil {
		return err
	}
	*g = Graph(p)
	return nil
}

func (g Graph) MarshalJSON() ([]byte, error) {
	type plain Graph
	p := plain(g)
	if p.Paths == nil {
		p.Paths = []PathEntry{}
	}
	return marshalNoEscape(p)
}

func (id *GraphIdentity) UnmarshalJSON(data []byte) error {
	type plain GraphIdentity
	var p plain
	if _, err := decodeObject(data, "graph identity", &p, []string{"id"}); err != nil {
		return err
	}
	*id = GraphIdentity(p)
	return nil
}

func (e *PathEntry) UnmarshalJSON(data []byte) error {
	members, err := scanObject(data)
	if err != nil {
		return schemaf("path entry: %v", err)
	}
	if hasMember(members, refKey) {
		var ref struct {
			Ref string `json:"$ref"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			return asSchemaError(err)
		}
		*e = PathEntry{Ref: ref.Ref}
		return nil
	}
	var p Path
	if err := json.Unmarshal(data, &p); err != nil {
		return asSchemaError(err)
	}
	*e = PathEntry{Path: &p}
	return nil
}

func (e PathEntry) MarshalJSON() ([]byte, error) {
	if e.Path != nil {
		return marshalNoEscape(*e.Path)
	}
	return marshalNoEscape(map[string]string{refKey: e.Ref})
}

func (m *GraphMeta) UnmarshalJSON(data []byte) error {
	type plain GraphMeta
	var p plain
	extra, err := decodeObject(data, "graph meta", &p, nil,
		"title", "intent", "refs", "actors", "signatures")
	if err != nil {
		return err
	}
	p.Extra = extra
	*m = GraphMeta(p)
	return nil
}

func (m GraphMeta) MarshalJSON() ([]byte, error) {
	type plain GraphMeta
	return encodeObject(plain(m), m.Extra)
}

// NewGraph starts an empty graph.
func NewGraph(id string) *Graph {
	return &Graph{Identity: GraphIdentity{ID: id}, Paths: []PathEntry{}}
}

func (g *Graph) ID() string { return g.Identity.ID }

// AddPath appends p as an inline entry.
func (g *Graph) AddPath(p *Path) *Graph {
	g.Paths = append(g.Paths, PathEntry{Path: p})
	return g
}

// AddPathRef appends an external path reference.
func (g *Graph) AddPathRef(ref string) *Graph {
	g.Paths = append(g.Paths, PathEntry{Ref: ref})
	return g
}

func (g *Graph) ensureMeta() *GraphMeta {
	if g.Meta == nil {
		g.Meta = &GraphMeta{}
	}
	return g.Meta
}

func (g *Graph) WithTitle(title string) *Graph {
	g.ensureMeta().Title = title
	return g
}

// AddRef adds r to the graph refs, returning false when it was present.
func (g *Graph) AddRef(r Ref) bool {
	m := g.ensureMeta()
	var added bool
	m.Refs, added = AppendRef(m.Refs, r)
	return added
}

func (g *Graph) Actors() map[string]ActorDefinition {
	if g.Meta == nil {
		return nil
	}
	return g.Meta.Actors
}

// InlinePaths returns the inline paths in entry order.
func (g *Graph) InlinePaths() []*Path {
	var out []*Path
	for _, e := range g.Paths {
		if e.Path != nil {
			out = append(out, e.Path)
		}
	}
	return out
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := *g
	if g.Paths != nil {
		out.Paths = make([]PathEntry, len(g.Paths))
		for i, e := range g.Paths {
			out.Paths[i] = PathEntry{Path: e.Path.Clone(), Ref: e.Ref}
		}
	}
	if g.Meta != nil {
		m := *g.Meta
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
