package validate

import (
	"fmt"

	"toolpath/internal/document"
)

// graphContext is what path validation needs to know about sibling paths.
type graphContext struct {
	actors map[string]document.ActorDefinition
	// steps maps each inline path id to its step ids.
	steps map[string]map[string]bool
}

func newGraphContext(g *document.Graph) *graphContext {
	ctx := &graphContext{actors: g.Actors(), steps: make(map[string]map[string]bool)}
	for _, p := range g.InlinePaths() {
		ids := ctx.steps[p.Identity.ID]
		if ids == nil {
			ids = make(map[string]bool)
			ctx.steps[p.Identity.ID] = ids
		}
		for i := range p.Steps {
			ids[p.Steps[i].Identity.ID] = true
		}
	}
	return ctx
}

// ownerOf returns a path other than self that contains stepID.
func (c *graphContext) ownerOf(stepID, self string) string {
	for pathID, ids := range c.steps {
		if pathID != self && ids[stepID] {
			return pathID
		}
	}
	return ""
}

// checkBase reports a toolpath base pointing at a missing step of a path in
// the same graph. Bases into paths stored elsewhere cannot be checked here.
func (c *graphContext) checkBase(pathID string, base *document.Base) []Issue {
	target, step, ok := base.ToolpathTarget()
	if !ok {
		return nil
	}
	ids, known := c.steps[target]
	if !known || ids[step] {
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Code:     codeDanglingBase,
		Message:  fmt.Sprintf("base step %s is not in path %s", step, target),
		Path:     pathID,
	}}
}

func validateGraph(g *document.Graph) []Issue {
	var issues []Issue
	ctx := newGraphContext(g)

	seen := make(map[string]struct{})
	for _, p := range g.InlinePaths() {
		if _, dup := seen[p.Identity.ID]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeDuplicatePathID,
				Message:  "duplicate path id in graph",
				Path:     p.Identity.ID,
			})
			continue
		}
		seen[p.Identity.ID] = struct{}{}
		issues = append(issues, validatePath(p, ctx)...)
	}

	return issues
}
