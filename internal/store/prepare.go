package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"toolpath/internal/canonical"
	"toolpath/internal/document"
	"toolpath/internal/validate"
)

// Prepared holds everything a backend writes for one document.
type Prepared struct {
	Record DocumentRecord
	Steps  []StepRecord
	Edges  []StepEdge
	Body   []byte
}

// StepEdge is a parent link between two steps of the same path.
type StepEdge struct {
	PathID string
	Child  string
	Parent string
}

// Prepare checks doc against the structural invariants and derives its rows.
// The digest is the SHA-256 of the canonical form, so re-archiving an
// unchanged document yields the same digest.
func Prepare(doc document.Document) (*Prepared, error) {
	if doc.ID() == "" {
		return nil, fmt.Errorf("document has no id")
	}
	if err := validate.Enforce(doc); err != nil {
		return nil, err
	}

	body, err := document.Serialize(doc, false)
	if err != nil {
		return nil, fmt.Errorf("serializing document: %w", err)
	}
	canon, err := canonical.Canonicalize(body)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing document: %w", err)
	}
	sum := sha256.Sum256(canon)

	p := &Prepared{
		Record: DocumentRecord{
			ID:     doc.ID(),
			Kind:   doc.Kind().String(),
			Digest: hex.EncodeToString(sum[:]),
			Title:  titleOf(doc),
		},
		Body: body,
	}

	switch doc.Kind() {
	case document.KindStep:
		p.Steps = append(p.Steps, stepRecord(doc.ID(), "", doc.Step()))
	case document.KindPath:
		p.Steps = pathRecords(doc.ID(), doc.Path())
		p.Edges = pathEdges(doc.Path())
	case document.KindGraph:
		for _, path := range doc.Graph().InlinePaths() {
			p.Steps = append(p.Steps, pathRecords(doc.ID(), path)...)
			p.Edges = append(p.Edges, pathEdges(path)...)
		}
	}
	p.Record.StepCount = len(p.Steps)
	return p, nil
}

// Decode parses an archived body back into a document.
func Decode(body []byte) (document.Document, error) {
	return document.Parse(body)
}

func pathRecords(docID string, p *document.Path) []StepRecord {
	out := make([]StepRecord, 0, len(p.Steps))
	for i := range p.Steps {
		out = append(out, stepRecord(docID, p.ID(), &p.Steps[i]))
	}
	return out
}

func pathEdges(p *document.Path) []StepEdge {
	var out []StepEdge
	for i := range p.Steps {
		for _, parent := range p.Steps[i].Identity.Parents {
			out = append(out, StepEdge{PathID: p.ID(), Child: p.Steps[i].ID(), Parent: parent})
		}
	}
	return out
}

func stepRecord(docID, pathID string, s *document.Step) StepRecord {
	r := StepRecord{
		DocumentID: docID,
		PathID:     pathID,
		StepID:     s.ID(),
		Actor:      s.Identity.Actor,
		Timestamp:  s.Identity.Timestamp,
		Revision:   s.Revision(),
		Intent:     s.Intent(),
	}
	return r
}

func titleOf(doc document.Document) string {
	switch doc.Kind() {
	case document.KindPath:
		if m := doc.Path().Meta; m != nil {
			return m.Title
		}
	case document.KindGraph:
		if m := doc.Graph().Meta; m != nil {
			return m.Title
		}
	case document.KindStep:
		return doc.Step().Intent()
	}
	return ""
}
