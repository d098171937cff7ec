package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"toolpath/internal/document"
	"toolpath/internal/query"
	"toolpath/internal/signing"
	"toolpath/internal/store"
)

type ListDocumentsInput struct {
	Kind string `json:"kind,omitempty" jsonschema:"Step, Path, or Graph"`
}

type GetDocumentInput struct {
	ID string `json:"id" jsonschema:"archived document id"`
}

type AncestorsInput struct {
	ID   string `json:"id" jsonschema:"archived document id"`
	Path string `json:"path,omitempty" jsonschema:"path id, required for graph documents"`
	Step string `json:"step" jsonschema:"step id to walk back from"`
}

type DeadEndsInput struct {
	ID   string `json:"id" jsonschema:"archived document id"`
	Path string `json:"path,omitempty" jsonschema:"path id, required for graph documents"`
}

type FilterStepsInput struct {
	ID       string `json:"id" jsonschema:"archived document id"`
	Path     string `json:"path,omitempty" jsonschema:"path id within a graph; empty means all inline paths"`
	Actor    string `json:"actor,omitempty" jsonschema:"actor prefix such as human: or agent:claude"`
	Artifact string `json:"artifact,omitempty" jsonschema:"artifact the step must change"`
	From     string `json:"from,omitempty" jsonschema:"RFC 3339 lower bound, inclusive"`
	To       string `json:"to,omitempty" jsonschema:"RFC 3339 upper bound, inclusive"`
}

type VerifyPathInput struct {
	ID      string   `json:"id" jsonschema:"archived document id"`
	Path    string   `json:"path,omitempty" jsonschema:"path id, required for graph documents"`
	Require []string `json:"require,omitempty" jsonschema:"step/author, path/author, path/reviewer"`
}

type FindRevisionInput struct {
	Revision string `json:"revision" jsonschema:"VCS revision recorded on a step"`
}

type SearchStepsInput struct {
	Query string `json:"query" jsonschema:"search terms over step intents"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

type DocumentSummaryOutput struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Digest    string `json:"digest"`
	Title     string `json:"title,omitempty"`
	StepCount int    `json:"step_count"`
}

type ListDocumentsOutput struct {
	Documents []DocumentSummaryOutput `json:"documents"`
}

type GetDocumentOutput struct {
	Kind     string `json:"kind"`
	Document any    `json:"document"`
}

type StepOutput struct {
	ID        string   `json:"id"`
	Actor     string   `json:"actor"`
	Timestamp string   `json:"timestamp"`
	Parents   []string `json:"parents,omitempty"`
	Intent    string   `json:"intent,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
}

type StepsOutput struct {
	Steps []StepOutput `json:"steps"`
}

type AncestorsOutput struct {
	StepIDs []string `json:"step_ids"`
}

type FailureOutput struct {
	Requirement string `json:"requirement"`
	Step        string `json:"step,omitempty"`
	Reason      string `json:"reason"`
}

type VerifyPathOutput struct {
	Path     string          `json:"path"`
	OK       bool            `json:"ok"`
	Verified int             `json:"verified"`
	Failures []FailureOutput `json:"failures"`
}

type StepRecordOutput struct {
	Document  string  `json:"document"`
	Path      string  `json:"path,omitempty"`
	Step      string  `json:"step"`
	Actor     string  `json:"actor"`
	Timestamp string  `json:"timestamp"`
	Intent    string  `json:"intent,omitempty"`
	Revision  string  `json:"revision,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
}

type StepRecordsOutput struct {
	Steps []StepRecordOutput `json:"steps"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_documents",
		Description: "List archived toolpath documents, optionally by kind",
	}, s.handleListDocuments)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_document",
		Description: "Retrieve an archived document as JSON",
	}, s.handleGetDocument)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "ancestors",
		Description: "Walk parent links back from a step",
	}, s.handleAncestors)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "dead_ends",
		Description: "List steps not on the ancestry of the path head",
	}, s.handleDeadEnds)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "filter_steps",
		Description: "Filter steps by actor prefix, artifact, and time range",
	}, s.handleFilterSteps)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "verify_path",
		Description: "Check a path's signatures against a requirement set",
	}, s.handleVerifyPath)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "find_revision",
		Description: "Find steps that recorded a VCS revision",
	}, s.handleFindRevision)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_steps",
		Description: "Full-text search over step intents",
	}, s.handleSearchSteps)
}

func (s *Server) handleListDocuments(ctx context.Context, req *sdk.CallToolRequest, input ListDocumentsInput) (*sdk.CallToolResult, ListDocumentsOutput, error) {
	kind := document.Kind(input.Kind)
	switch kind {
	case "", document.KindStep, document.KindPath, document.KindGraph:
	default:
		return nil, ListDocumentsOutput{}, fmt.Errorf("unknown kind %q", input.Kind)
	}
	records, err := s.archive.ListDocuments(ctx, kind)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := make([]DocumentSummaryOutput, 0, len(records))
	for _, r := range records {
		output = append(output, DocumentSummaryOutput{
			ID:        r.ID,
			Kind:      r.Kind,
			Digest:    r.Digest,
			Title:     r.Title,
			StepCount: r.StepCount,
		})
	}
	return nil, ListDocumentsOutput{Documents: output}, nil
}

func (s *Server) handleGetDocument(ctx context.Context, req *sdk.CallToolRequest, input GetDocumentInput) (*sdk.CallToolResult, GetDocumentOutput, error) {
	if input.ID == "" {
		return nil, GetDocumentOutput{}, fmt.Errorf("id is required")
	}
	doc, err := s.archive.GetDocument(ctx, input.ID)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}
	data, err := document.Serialize(doc, false)
	if err != nil {
		return nil, GetDocumentOutput{}, err
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, GetDocumentOutput{}, err
	}
	return nil, GetDocumentOutput{Kind: doc.Kind().String(), Document: body}, nil
}

func (s *Server) handleAncestors(ctx context.Context, req *sdk.CallToolRequest, input AncestorsInput) (*sdk.CallToolResult, AncestorsOutput, error) {
	if input.Step == "" {
		return nil, AncestorsOutput{}, fmt.Errorf("step is required")
	}
	steps, _, err := s.loadSteps(ctx, input.ID, input.Path, true)
	if err != nil {
		return nil, AncestorsOutput{}, err
	}
	if _, ok := query.StepIndex(steps)[input.Step]; !ok {
		return nil, AncestorsOutput{}, fmt.Errorf("step %q not found", input.Step)
	}
	return nil, AncestorsOutput{StepIDs: query.Ancestors(steps, input.Step).IDs()}, nil
}

func (s *Server) handleDeadEnds(ctx context.Context, req *sdk.CallToolRequest, input DeadEndsInput) (*sdk.CallToolResult, StepsOutput, error) {
	steps, head, err := s.loadSteps(ctx, input.ID, input.Path, true)
	if err != nil {
		return nil, StepsOutput{}, err
	}
	return nil, StepsOutput{Steps: stepOutputs(query.DeadEnds(steps, head))}, nil
}

func (s *Server) handleFilterSteps(ctx context.Context, req *sdk.CallToolRequest, input FilterStepsInput) (*sdk.CallToolResult, StepsOutput, error) {
	from, err := parseBound(input.From)
	if err != nil {
		return nil, StepsOutput{}, err
	}
	to, err := parseBound(input.To)
	if err != nil {
		return nil, StepsOutput{}, err
	}
	steps, _, err := s.loadSteps(ctx, input.ID, input.Path, false)
	if err != nil {
		return nil, StepsOutput{}, err
	}

	matched := query.FilterByActor(steps, input.Actor)
	if input.Artifact != "" {
		matched = intersect(matched, query.FilterByArtifact(steps, input.Artifact))
	}
	if !from.IsZero() || !to.IsZero() {
		matched = intersect(matched, query.FilterByTimeRange(steps, from, to))
	}
	return nil, StepsOutput{Steps: stepOutputs(matched)}, nil
}

func (s *Server) handleVerifyPath(ctx context.Context, req *sdk.CallToolRequest, input VerifyPathInput) (*sdk.CallToolResult, VerifyPathOutput, error) {
	reqs := s.require
	if len(input.Require) > 0 {
		parsed, err := signing.ParseRequirements(input.Require)
		if err != nil {
			return nil, VerifyPathOutput{}, err
		}
		reqs = parsed
	}
	p, graphActors, err := s.loadPath(ctx, input.ID, input.Path)
	if err != nil {
		return nil, VerifyPathOutput{}, err
	}

	report := signing.VerifyAll(p, reqs, graphActors, s.actors)
	output := VerifyPathOutput{
		Path:     report.Path,
		OK:       report.OK(),
		Verified: report.Verified,
		Failures: make([]FailureOutput, 0, len(report.Failures)),
	}
	for _, f := range report.Failures {
		output.Failures = append(output.Failures, FailureOutput{
			Requirement: string(f.Requirement),
			Step:        f.Step,
			Reason:      f.Reason,
		})
	}
	return nil, output, nil
}

func (s *Server) handleFindRevision(ctx context.Context, req *sdk.CallToolRequest, input FindRevisionInput) (*sdk.CallToolResult, StepRecordsOutput, error) {
	if input.Revision == "" {
		return nil, StepRecordsOutput{}, fmt.Errorf("revision is required")
	}
	records, err := s.archive.FindRevision(ctx, input.Revision)
	if err != nil {
		return nil, StepRecordsOutput{}, err
	}
	output := make([]StepRecordOutput, 0, len(records))
	for _, r := range records {
		output = append(output, stepRecordOutput(r))
	}
	return nil, StepRecordsOutput{Steps: output}, nil
}

func (s *Server) handleSearchSteps(ctx context.Context, req *sdk.CallToolRequest, input SearchStepsInput) (*sdk.CallToolResult, StepRecordsOutput, error) {
	if input.Query == "" {
		return nil, StepRecordsOutput{}, fmt.Errorf("query is required")
	}
	results, err := s.archive.SearchSteps(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, StepRecordsOutput{}, err
	}
	output := make([]StepRecordOutput, 0, len(results))
	for _, r := range results {
		out := stepRecordOutput(r.StepRecord)
		out.Score = r.Score
		out.Snippet = r.Snippet
		output = append(output, out)
	}
	return nil, StepRecordsOutput{Steps: output}, nil
}

// loadSteps fetches a document and picks the steps a query runs over. With
// needPath set, graph documents must name one of their inline paths.
func (s *Server) loadSteps(ctx context.Context, id, pathID string, needPath bool) ([]document.Step, string, error) {
	if id == "" {
		return nil, "", fmt.Errorf("id is required")
	}
	doc, err := s.archive.GetDocument(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if doc.Kind() == document.KindGraph && (pathID != "" || needPath) {
		p, err := graphPath(doc.Graph(), pathID)
		if err != nil {
			return nil, "", err
		}
		return p.Steps, p.Identity.Head, nil
	}
	steps, head := query.StepsOf(doc)
	return steps, head, nil
}

// loadPath returns the path named by id and pathID, along with the actor
// directory of the enclosing graph when there is one.
func (s *Server) loadPath(ctx context.Context, id, pathID string) (*document.Path, map[string]document.ActorDefinition, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("id is required")
	}
	doc, err := s.archive.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	switch doc.Kind() {
	case document.KindPath:
		return doc.Path(), nil, nil
	case document.KindGraph:
		p, err := graphPath(doc.Graph(), pathID)
		if err != nil {
			return nil, nil, err
		}
		return p, doc.Graph().Actors(), nil
	}
	return nil, nil, fmt.Errorf("document %q is a %s, not a path", id, doc.Kind())
}

func graphPath(g *document.Graph, pathID string) (*document.Path, error) {
	if pathID == "" {
		return nil, fmt.Errorf("path is required for graph documents")
	}
	for _, p := range g.InlinePaths() {
		if p.ID() == pathID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("path %q not found in graph %q", pathID, g.ID())
}

func parseBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time bound %q: %w", s, err)
	}
	return t, nil
}

func intersect(a, b []*document.Step) []*document.Step {
	keep := make(map[*document.Step]bool, len(b))
	for _, s := range b {
		keep[s] = true
	}
	out := a[:0:0]
	for _, s := range a {
		if keep[s] {
			out = append(out, s)
		}
	}
	return out
}

func stepOutputs(steps []*document.Step) []StepOutput {
	out := make([]StepOutput, 0, len(steps))
	for _, st := range steps {
		o := StepOutput{
			ID:        st.ID(),
			Actor:     st.Identity.Actor,
			Timestamp: st.Identity.Timestamp,
			Parents:   append([]string{}, st.Identity.Parents...),
			Artifacts: query.AllArtifacts([]document.Step{*st}),
			Intent:    st.Intent(),
		}
		out = append(out, o)
	}
	return out
}

func stepRecordOutput(r store.StepRecord) StepRecordOutput {
	return StepRecordOutput{
		Document:  r.DocumentID,
		Path:      r.PathID,
		Step:      r.StepID,
		Actor:     r.Actor,
		Timestamp: r.Timestamp,
		Intent:    r.Intent,
		Revision:  r.Revision,
	}
}
