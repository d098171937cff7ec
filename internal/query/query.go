// Package query answers ancestry and filter questions over a step collection.
// Every function is pure: results point into the caller's slice and nothing
// is modified.
package query

import (
	"maps"
	"slices"
	"strings"
	"time"

	"toolpath/internal/document"
)

// StepSet is a set of steps keyed by id.
type StepSet map[string]*document.Step

func (s StepSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the member ids in sorted order.
func (s StepSet) IDs() []string {
	return slices.Sorted(maps.Keys(s))
}

// StepIndex maps ids to steps. Duplicate ids are tolerated and the last one
// wins; use StrictStepIndex where duplicates must fail.
func StepIndex(steps []document.Step) map[string]*document.Step {
	index := make(map[string]*document.Step, len(steps))
	for i := range steps {
		index[steps[i].Identity.ID] = &steps[i]
	}
	return index
}

// StrictStepIndex is StepIndex but reports duplicate ids as an invariant
// violation.
func StrictStepIndex(steps []document.Step) (map[string]*document.Step, error) {
	index := make(map[string]*document.Step, len(steps))
	for i := range steps {
		id := steps[i].Identity.ID
		if _, dup := index[id]; dup {
			return nil, document.Invariantf("duplicate step id %q", id)
		}
		index[id] = &steps[i]
	}
	return index, nil
}

// Ancestors returns fromID and every step reachable from it through parent
// edges. Parents that name no step are skipped. An unknown fromID yields an
// empty set.
func Ancestors(steps []document.Step, fromID string) StepSet {
	index := StepIndex(steps)
	out := StepSet{}
	if _, ok := index[fromID]; !ok {
		return out
	}

	stack := []string{fromID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out.Has(id) {
			continue
		}
		step, ok := index[id]
		if !ok {
			continue
		}
		out[id] = step
		for _, parent := range step.Identity.Parents {
			if !out.Has(parent) {
				stack = append(stack, parent)
			}
		}
	}
	return out
}

// DeadEnds returns the steps that are not ancestors of headID, in their
// original order.
func DeadEnds(steps []document.Step, headID string) []*document.Step {
	live := Ancestors(steps, headID)
	var out []*document.Step
	for i := range steps {
		if !live.Has(steps[i].Identity.ID) {
			out = append(out, &steps[i])
		}
	}
	return out
}

// IsDeadEnd reports whether the step with the given id is off the head's
// ancestry.
func IsDeadEnd(steps []document.Step, headID, id string) bool {
	return !Ancestors(steps, headID).Has(id)
}

// FilterByActor returns the steps whose actor starts with prefix.
func FilterByActor(steps []document.Step, prefix string) []*document.Step {
	return filter(steps, func(s *document.Step) bool {
		return strings.HasPrefix(s.Identity.Actor, prefix)
	})
}

// FilterByArtifact returns the steps that change artifact.
func FilterByArtifact(steps []document.Step, artifact string) []*document.Step {
	return filter(steps, func(s *document.Step) bool {
		_, ok := s.Change[artifact]
		return ok
	})
}

// FilterByTimeRange returns the steps whose timestamp lies within [from, to].
// A zero bound leaves that side open. Steps with unparseable timestamps never
// match.
func FilterByTimeRange(steps []document.Step, from, to time.Time) []*document.Step {
	return filter(steps, func(s *document.Step) bool {
		at, err := s.Time()
		if err != nil {
			return false
		}
		if !from.IsZero() && at.Before(from) {
			return false
		}
		if !to.IsZero() && at.After(to) {
			return false
		}
		return true
	})
}

func filter(steps []document.Step, keep func(*document.Step) bool) []*document.Step {
	var out []*document.Step
	for i := range steps {
		if keep(&steps[i]) {
			out = append(out, &steps[i])
		}
	}
	return out
}

// AllActors returns the distinct actors of steps, sorted.
func AllActors(steps []document.Step) []string {
	seen := make(map[string]struct{})
	for i := range steps {
		seen[steps[i].Identity.Actor] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// AllArtifacts returns the distinct artifacts changed by steps, sorted.
func AllArtifacts(steps []document.Step) []string {
	seen := make(map[string]struct{})
	for i := range steps {
		for artifact := range steps[i].Change {
			seen[artifact] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// StepsOf returns the steps a document holds and the head they hang from. A
// graph yields the steps of all inline paths and no head.
func StepsOf(doc document.Document) ([]document.Step, string) {
	switch doc.Kind() {
	case document.KindStep:
		return []document.Step{*doc.Step()}, doc.Step().Identity.ID
	case document.KindPath:
		return doc.Path().Steps, doc.Path().Identity.Head
	case document.KindGraph:
		var steps []document.Step
		for _, p := range doc.Graph().InlinePaths() {
			steps = append(steps, p.Steps...)
		}
		return steps, ""
	}
	return nil, ""
}
