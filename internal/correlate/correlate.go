// Package correlate cross-links the paths of a graph that record the same
// VCS revision. It is an additive pass: it only adds refs to meta, works on a
// clone, and adds nothing when run a second time.
package correlate

import (
	"cmp"
	"maps"
	"slices"

	"toolpath/internal/document"
)

// Ref relations written by Correlate.
const (
	RelSameChange  = "same-change"
	RelProduces    = "produces"
	RelProducedBy  = "produced-by"
	RelComplements = "complements"
	RelCorrelates  = "correlates"
)

const selfHref = "self"

// Location names a step inside a path.
type Location struct {
	PathID string
	StepID string
}

// Href is the toolpath: URI of the step.
func (l Location) Href() string { return "toolpath:" + l.PathID + "/" + l.StepID }

// Index maps a VCS revision to every step that records it, in document
// order.
type Index map[string][]Location

// IndexPaths builds a revision index over paths.
func IndexPaths(paths ...*document.Path) Index {
	index := Index{}
	for _, p := range paths {
		for i := range p.Steps {
			rev := p.Steps[i].Revision()
			if rev == "" {
				continue
			}
			index[rev] = append(index[rev], Location{PathID: p.Identity.ID, StepID: p.Steps[i].Identity.ID})
		}
	}
	return index
}

// BuildIndex indexes the inline paths of g.
func BuildIndex(g *document.Graph) Index {
	return IndexPaths(g.InlinePaths()...)
}

// Shared returns the revisions recorded by more than one distinct path,
// sorted.
func (idx Index) Shared() []string {
	var out []string
	for rev, locs := range idx {
		if distinctPaths(locs) > 1 {
			out = append(out, rev)
		}
	}
	slices.Sort(out)
	return out
}

func distinctPaths(locs []Location) int {
	seen := make(map[string]struct{})
	for _, l := range locs {
		seen[l.PathID] = struct{}{}
	}
	return len(seen)
}

// PathRelation is the inferred link between two correlated paths. For a
// directed relation From produces To.
type PathRelation struct {
	From, To string
	Rel      string
}

// Result summarises what Correlate found and added.
type Result struct {
	SharedRevisions []string
	Relations       []PathRelation
	AddedRefs       int
	// DuplicatePaths lists inline path ids seen more than once. Only the
	// first path with a given id takes part in correlation.
	DuplicatePaths []string
}

// Correlate returns a correlated copy of g. Steps sharing a revision across
// paths get symmetric same-change refs to each other, correlated path pairs
// get a produces/produced-by or complements relation, and the graph gets the
// correlates sentinel. g itself is not modified. Inline paths repeating an
// earlier path id are skipped and reported in Result.DuplicatePaths.
func Correlate(g *document.Graph) (*document.Graph, Result) {
	out := g.Clone()
	var result Result
	var paths []*document.Path
	byID := make(map[string]*document.Path)
	for _, p := range out.InlinePaths() {
		if _, dup := byID[p.Identity.ID]; dup {
			result.DuplicatePaths = append(result.DuplicatePaths, p.Identity.ID)
			continue
		}
		byID[p.Identity.ID] = p
		paths = append(paths, p)
	}

	index := IndexPaths(paths...)
	result.SharedRevisions = index.Shared()
	pairs := make(map[[2]string]struct{})

	for _, rev := range result.SharedRevisions {
		locs := index[rev]
		for _, from := range locs {
			for _, to := range locs {
				if from == to {
					continue
				}
				if from.PathID != to.PathID {
					pairs[pairKey(from.PathID, to.PathID)] = struct{}{}
				}
				step := findStep(byID[from.PathID], from.StepID)
				if step != nil && step.AddRef(document.Ref{Rel: RelSameChange, Href: to.Href()}) {
					result.AddedRefs++
				}
			}
		}
	}

	keys := slices.SortedFunc(maps.Keys(pairs), func(a, b [2]string) int {
		if a[0] != b[0] {
			return cmp.Compare(a[0], b[0])
		}
		return cmp.Compare(a[1], b[1])
	})
	for _, key := range keys {
		a, b := byID[key[0]], byID[key[1]]
		rel := relate(a, b)
		result.Relations = append(result.Relations, rel)
		switch rel.Rel {
		case RelProduces:
			result.AddedRefs += addPathRef(byID[rel.From], RelProduces, rel.To)
			result.AddedRefs += addPathRef(byID[rel.To], RelProducedBy, rel.From)
		default:
			result.AddedRefs += addPathRef(a, RelComplements, b.Identity.ID)
			result.AddedRefs += addPathRef(b, RelComplements, a.Identity.ID)
		}
	}

	if out.AddRef(document.Ref{Rel: RelCorrelates, Href: selfHref}) {
		result.AddedRefs++
	}
	return out, result
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func findStep(p *document.Path, id string) *document.Step {
	if p == nil {
		return nil
	}
	s, _ := p.Step(id)
	return s
}

func addPathRef(p *document.Path, rel, pathID string) int {
	if p.AddRef(document.Ref{Rel: rel, Href: "toolpath:" + pathID}) {
		return 1
	}
	return 0
}

// relate infers the relation between two correlated paths. It is directed
// only when exactly one orientation is supported by the evidence.
func relate(a, b *document.Path) PathRelation {
	aProduces := agentSide(a) && vcsSide(b)
	bProduces := agentSide(b) && vcsSide(a)
	switch {
	case aProduces && !bProduces:
		return PathRelation{From: a.Identity.ID, To: b.Identity.ID, Rel: RelProduces}
	case bProduces && !aProduces:
		return PathRelation{From: b.Identity.ID, To: a.Identity.ID, Rel: RelProduces}
	}
	return PathRelation{From: a.Identity.ID, To: b.Identity.ID, Rel: RelComplements}
}

// agentSide: every step authored by an agent.
func agentSide(p *document.Path) bool { return allSteps(p, isAgent) }

// vcsSide: every step stamped with a VCS source.
func vcsSide(p *document.Path) bool { return allSteps(p, hasVCSSource) }

func isAgent(s *document.Step) bool { return document.ActorType(s.Identity.Actor) == "agent" }

// vcsTypes are the source types that denote a version-control system rather
// than the tool that happened to observe a revision.
var vcsTypes = map[string]bool{
	"git": true, "jj": true, "hg": true, "svn": true, "fossil": true, "bzr": true, "darcs": true,
}

func hasVCSSource(s *document.Step) bool {
	return s.Meta != nil && s.Meta.Source != nil && vcsTypes[s.Meta.Source.Type]
}

func allSteps(p *document.Path, pred func(*document.Step) bool) bool {
	if len(p.Steps) == 0 {
		return false
	}
	for i := range p.Steps {
		if !pred(&p.Steps[i]) {
			return false
		}
	}
	return true
}
