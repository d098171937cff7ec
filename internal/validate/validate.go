package validate

import (
	"fmt"

	"toolpath/internal/document"
	"toolpath/internal/signing"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeDuplicateStepID  = "duplicate_step_id"
	codeDuplicatePathID  = "duplicate_path_id"
	codeCrossPathParent  = "cross_path_parent"
	codeDanglingParent   = "dangling_parent"
	codeSelfParent       = "self_parent"
	codeCycleDetected    = "cycle_detected"
	codeMissingHead      = "missing_head"
	codeInvalidActor     = "invalid_actor"
	codeInvalidTimestamp = "invalid_timestamp"
	codeInvalidBase      = "invalid_base"
	codeDanglingBase     = "dangling_base"
	codeEmptyChange      = "empty_change"
	codeUnknownSigner    = "unknown_signer"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Path     string
	Step     string
}

type Report struct {
	Issues []Issue
}

// Errors returns the error-severity issues.
func (r *Report) Errors() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

func (r *Report) Valid() bool { return len(r.Errors()) == 0 }

// Run checks the structural invariants of doc: scoped id uniqueness, parent
// resolution within the path, acyclicity, head and base well-formedness and
// the actor and timestamp formats.
func Run(doc document.Document) *Report {
	issues := make([]Issue, 0)

	switch doc.Kind() {
	case document.KindStep:
		issues = append(issues, validateStep(doc.Step(), "", nil)...)
		for _, parent := range doc.Step().Identity.Parents {
			if parent == doc.Step().Identity.ID {
				issues = append(issues, stepIssue("", doc.Step().Identity.ID, SeverityError, codeSelfParent, "step lists itself as a parent"))
			}
		}
	case document.KindPath:
		issues = append(issues, validatePath(doc.Path(), nil)...)
	case document.KindGraph:
		issues = append(issues, validateGraph(doc.Graph())...)
	}

	return &Report{Issues: issues}
}

// Enforce returns an invariant violation for the first error Run reports.
func Enforce(doc document.Document) error {
	errs := Run(doc).Errors()
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return document.Invariantf("%s: %s", first.Code, describe(first))
}

func describe(issue Issue) string {
	switch {
	case issue.Path != "" && issue.Step != "":
		return fmt.Sprintf("%s (path %s, step %s)", issue.Message, issue.Path, issue.Step)
	case issue.Step != "":
		return fmt.Sprintf("%s (step %s)", issue.Message, issue.Step)
	case issue.Path != "":
		return fmt.Sprintf("%s (path %s)", issue.Message, issue.Path)
	}
	return issue.Message
}

func validateStep(s *document.Step, pathID string, dirs []map[string]document.ActorDefinition) []Issue {
	var issues []Issue
	id := s.Identity.ID

	if !document.ValidActor(s.Identity.Actor) {
		issues = append(issues, stepIssue(pathID, id, SeverityError, codeInvalidActor,
			fmt.Sprintf("invalid actor: %q", s.Identity.Actor)))
	}
	if _, err := s.Time(); err != nil {
		issues = append(issues, stepIssue(pathID, id, SeverityError, codeInvalidTimestamp,
			fmt.Sprintf("invalid timestamp: %q", s.Identity.Timestamp)))
	}
	if len(s.Change) == 0 {
		issues = append(issues, stepIssue(pathID, id, SeverityWarn, codeEmptyChange, "step changes no artifacts"))
	}

	stepDirs := append([]map[string]document.ActorDefinition{s.Actors()}, dirs...)
	for _, sig := range s.Signatures() {
		if _, err := signing.ResolveVerifier(sig, stepDirs...); err != nil {
			issues = append(issues, stepIssue(pathID, id, SeverityWarn, codeUnknownSigner,
				fmt.Sprintf("signature by %s cannot be checked: %v", sig.Signer, err)))
		}
	}

	return issues
}

// validatePath checks one path. g describes the enclosing graph, if any, so
// parents pointing into sibling paths are reported as cross-path references
// rather than dangling ones.
func validatePath(p *document.Path, g *graphContext) []Issue {
	var issues []Issue
	pathID := p.Identity.ID

	var dirs []map[string]document.ActorDefinition
	dirs = append(dirs, p.Actors())
	if g != nil {
		dirs = append(dirs, g.actors)
	}

	ids := make(map[string]*document.Step, len(p.Steps))
	for i := range p.Steps {
		s := &p.Steps[i]
		if _, dup := ids[s.Identity.ID]; dup {
			issues = append(issues, stepIssue(pathID, s.Identity.ID, SeverityError, codeDuplicateStepID, "duplicate step id in path"))
			continue
		}
		ids[s.Identity.ID] = s
	}

	for i := range p.Steps {
		s := &p.Steps[i]
		issues = append(issues, validateStep(s, pathID, dirs)...)
		for _, parent := range s.Identity.Parents {
			switch {
			case parent == s.Identity.ID:
				issues = append(issues, stepIssue(pathID, s.Identity.ID, SeverityError, codeSelfParent, "step lists itself as a parent"))
			case ids[parent] != nil:
			case g != nil && g.ownerOf(parent, pathID) != "":
				issues = append(issues, stepIssue(pathID, s.Identity.ID, SeverityError, codeCrossPathParent,
					fmt.Sprintf("parent %s belongs to path %s", parent, g.ownerOf(parent, pathID))))
			default:
				issues = append(issues, stepIssue(pathID, s.Identity.ID, SeverityError, codeDanglingParent,
					fmt.Sprintf("parent %s does not exist", parent)))
			}
		}
	}

	if _, ok := ids[p.Identity.Head]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeMissingHead,
			Message:  fmt.Sprintf("head %q is not a step of the path", p.Identity.Head),
			Path:     pathID,
		})
	}

	if cycle := findCycle(p.Steps, ids); cycle != "" {
		issues = append(issues, stepIssue(pathID, cycle, SeverityError, codeCycleDetected, "parent edges form a cycle"))
	}

	if base := p.Identity.Base; base != nil {
		if err := base.Check(); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Code: codeInvalidBase, Message: err.Error(), Path: pathID})
		} else if g != nil {
			issues = append(issues, g.checkBase(pathID, base)...)
		}
	}

	for _, sig := range p.Signatures() {
		if _, err := signing.ResolveVerifier(sig, dirs...); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeUnknownSigner,
				Message:  fmt.Sprintf("signature by %s cannot be checked: %v", sig.Signer, err),
				Path:     pathID,
			})
		}
	}

	return issues
}

// findCycle returns the id of a step on a parent cycle, or "".
func findCycle(steps []document.Step, ids map[string]*document.Step) string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(ids))

	var visit func(id string) string
	visit = func(id string) string {
		switch state[id] {
		case visiting:
			return id
		case done:
			return ""
		}
		state[id] = visiting
		for _, parent := range ids[id].Identity.Parents {
			if parent == id || ids[parent] == nil {
				continue
			}
			if found := visit(parent); found != "" {
				return found
			}
		}
		state[id] = done
		return ""
	}

	for i := range steps {
		if found := visit(steps[i].Identity.ID); found != "" {
			return found
		}
	}
	return ""
}

func stepIssue(pathID, stepID string, severity Severity, code, message string) Issue {
	return Issue{
		Severity: severity,
		Code:     code,
		Message:  message,
		Path:     pathID,
		Step:     stepID,
	}
}
