// Package merge combines independent toolpath documents into one Graph.
package merge

import (
	"errors"
	"fmt"

	"toolpath/internal/document"
	"toolpath/internal/query"
)

var (
	// ErrStepInput rejects a bare step: merge combines paths, and a step
	// carries no path identity to merge under.
	ErrStepInput = errors.New("step documents cannot be merged")
	// ErrDuplicatePathID reports two inline paths with the same id. It wraps
	// document.ErrInvariantViolation.
	ErrDuplicatePathID = fmt.Errorf("duplicate path id: %w", document.ErrInvariantViolation)
	ErrNoInput         = errors.New("nothing to merge")
)

// Merge wraps each Path input as an inline graph entry and flattens Graph
// inputs one level, keeping their $ref entries. The result owns copies of
// the inputs. An empty title leaves the graph without meta.
func Merge(docs []document.Document, title string) (*document.Graph, error) {
	if len(docs) == 0 {
		return nil, ErrNoInput
	}

	var entries []document.PathEntry
	for i, doc := range docs {
		switch doc.Kind() {
		case document.KindPath:
			entries = append(entries, document.PathEntry{Path: doc.Path().Clone()})
		case document.KindGraph:
			entries = append(entries, doc.Graph().Clone().Paths...)
		case document.KindStep:
			return nil, fmt.Errorf("input %d (%s): %w", i+1, doc.ID(), ErrStepInput)
		default:
			return nil, fmt.Errorf("input %d: empty document", i+1)
		}
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Path == nil {
			continue
		}
		id := e.Path.Identity.ID
		if seen[id] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePathID, id)
		}
		seen[id] = true
		if _, err := query.StrictStepIndex(e.Path.Steps); err != nil {
			return nil, fmt.Errorf("path %q: %w", id, err)
		}
	}

	g := document.NewGraph(fmt.Sprintf("graph-merged-%d", len(entries)))
	g.Paths = entries
	if title != "" {
		g.WithTitle(title)
	}
	return g, nil
}
