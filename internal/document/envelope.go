package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Kind names a document variant. The value doubles as the envelope tag.
type Kind string

const (
	KindStep  Kind = "Step"
	KindPath  Kind = "Path"
	KindGraph Kind = "Graph"
)

func (k Kind) String() string { return string(k) }

// Document is exactly one of a Step, a Path or a Graph.
type Document struct {
	kind  Kind
	step  *Step
	path  *Path
	graph *Graph
}

func StepDocument(s *Step) Document   { return Document{kind: KindStep, step: s} }
func PathDocument(p *Path) Document   { return Document{kind: KindPath, path: p} }
func GraphDocument(g *Graph) Document { return Document{kind: KindGraph, graph: g} }

func (d Document) Kind() Kind { return d.kind }

// Step returns the step variant, or nil for other kinds.
func (d Document) Step() *Step { return d.step }

// Path returns the path variant, or nil for other kinds.
func (d Document) Path() *Path { return d.path }

// Graph returns the graph variant, or nil for other kinds.
func (d Document) Graph() *Graph { return d.graph }

// ID returns the id of whichever variant the document holds.
func (d Document) ID() string {
	switch d.kind {
	case KindStep:
		return d.step.Identity.ID
	case KindPath:
		return d.path.Identity.ID
	case KindGraph:
		return d.graph.Identity.ID
	}
	return ""
}

// Body returns the variant value without the envelope.
func (d Document) Body() any {
	switch d.kind {
	case KindStep:
		return d.step
	case KindPath:
		return d.path
	case KindGraph:
		return d.graph
	}
	return nil
}

// MarshalJSON writes the externally tagged envelope.
func (d Document) MarshalJSON() ([]byte, error) {
	body := d.Body()
	if body == nil {
		return nil, fmt.Errorf("document: empty document")
	}
	data, err := marshalNoEscape(body)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"`)
	buf.WriteString(string(d.kind))
	buf.WriteString(`":`)
	buf.Write(data)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := Parse(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

// Parse reads a document in envelope form or as a bare variant body. A bare
// body is classified by shape: paths means Graph, steps means Path, change
// means Step.
func Parse(data []byte) (Document, error) {
	if !json.Valid(data) {
		var v any
		return Document{}, parseErr(json.Unmarshal(data, &v))
	}
	members, err := scanObject(data)
	if err != nil {
		return Document{}, schemaf("document: %v", err)
	}

	var tag Kind
	body := data
	if len(members) == 1 {
		switch k := Kind(members[0].Key); k {
		case KindStep, KindPath, KindGraph:
			tag = k
			body = members[0].Value
			if members, err = scanObject(body); err != nil {
				return Document{}, schemaf("%s: %v", k, err)
			}
		}
	}

	var kind Kind
	switch {
	case hasMember(members, "paths"):
		kind = KindGraph
	case hasMember(members, "steps"):
		kind = KindPath
	case hasMember(members, "change"):
		kind = KindStep
	default:
		return Document{}, schemaf("document matches no known shape")
	}
	if tag != "" && tag != kind {
		return Document{}, schemaf("envelope tag %s does not match %s body", tag, kind)
	}

	switch kind {
	case KindGraph:
		var g Graph
		if err := json.Unmarshal(body, &g); err != nil {
			return Document{}, asSchemaError(err)
		}
		return GraphDocument(&g), nil
	case KindPath:
		var p Path
		if err := json.Unmarshal(body, &p); err != nil {
			return Document{}, asSchemaError(err)
		}
		return PathDocument(&p), nil
	default:
		var s Step
		if err := json.Unmarshal(body, &s); err != nil {
			return Document{}, asSchemaError(err)
		}
		return StepDocument(&s), nil
	}
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Serialize writes the document envelope, compact or indented with two
// spaces.
func Serialize(d Document, pretty bool) ([]byte, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if !pretty {
		return data, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
