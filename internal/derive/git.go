package derive

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"toolpath/internal/document"
)

const vcsType = "git"

var defaultBranchNames = []string{"main", "master", "trunk", "develop"}

var ErrBranchNotFound = errors.New("branch not found")

type Config struct {
	// Remote names the remote whose URL becomes the path base.
	Remote string
	// Title overrides the graph title when several branches are derived.
	Title string
	// Base, when set, is the commit every path starts after.
	Base string
}

// BranchSpec is a branch name with an optional start revision, written
// "name" or "name:start". A start beginning with HEAD is resolved against the
// branch, so "feature:HEAD~3" covers the last three commits of feature.
type BranchSpec struct {
	Name  string
	Start string
}

func ParseBranchSpec(s string) BranchSpec {
	name, start, _ := strings.Cut(s, ":")
	return BranchSpec{Name: name, Start: start}
}

// Derive produces a Path for one branch or a Graph for several.
func Derive(repo *git.Repository, branches []string, cfg Config) (document.Document, error) {
	if len(branches) == 0 {
		return document.Document{}, fmt.Errorf("no branches given")
	}
	specs := make([]BranchSpec, 0, len(branches))
	for _, b := range branches {
		specs = append(specs, ParseBranchSpec(b))
	}
	if len(specs) == 1 {
		p, err := DerivePath(repo, specs[0], cfg)
		if err != nil {
			return document.Document{}, err
		}
		return document.PathDocument(p), nil
	}
	g, err := DeriveGraph(repo, specs, cfg)
	if err != nil {
		return document.Document{}, err
	}
	return document.GraphDocument(g), nil
}

func DerivePath(repo *git.Repository, spec BranchSpec, cfg Config) (*document.Path, error) {
	uri, err := RepoURI(repo, cfg.Remote)
	if err != nil {
		return nil, err
	}
	tip, err := branchCommit(repo, spec.Name)
	if err != nil {
		return nil, err
	}

	var base *object.Commit
	switch {
	case cfg.Base != "":
		base, err = resolveCommit(repo, cfg.Base)
	case spec.Start != "":
		start := spec.Start
		if rest, ok := strings.CutPrefix(start, "HEAD"); ok {
			start = spec.Name + rest
		}
		base, err = resolveCommit(repo, start)
	default:
		base, err = findBase(repo, tip)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving base for %s: %w", spec.Name, err)
	}

	commits, err := collectCommits(base, tip)
	if err != nil {
		return nil, err
	}

	head := stepID(tip.Hash.String())
	if len(commits) > 0 {
		head = stepID(commits[len(commits)-1].Hash.String())
	}

	p := document.NewPath("path-"+strings.ReplaceAll(spec.Name, "/", "-"), document.VCSBase(uri, base.Hash.String()), head).
		WithTitle("Branch: " + spec.Name)

	inRange := make(map[plumbing.Hash]bool, len(commits))
	for _, c := range commits {
		inRange[c.Hash] = true
	}
	for _, c := range commits {
		s, actor, def, err := commitStep(c, inRange)
		if err != nil {
			return nil, err
		}
		if _, ok := p.Actors()[actor]; !ok {
			p.WithActor(actor, def)
		}
		p.AddStep(s)
	}
	return p, nil
}

func DeriveGraph(repo *git.Repository, specs []BranchSpec, cfg Config) (*document.Graph, error) {
	defaultBranch := findDefaultBranch(repo)
	defaultStart, err := defaultBranchStart(repo, specs, defaultBranch)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	id := "graph-" + strings.ReplaceAll(strings.Join(names, "-"), "/", "-")
	if len(names) > 3 {
		id = fmt.Sprintf("graph-%d-branches", len(names))
	}
	title := cfg.Title
	if title == "" {
		title = "Branches: " + strings.Join(names, ", ")
	}

	g := document.NewGraph(id).WithTitle(title)
	for _, spec := range specs {
		if defaultStart != "" && spec.Start == "" && spec.Name == defaultBranch {
			spec.Start = defaultStart
		}
		p, err := DerivePath(repo, spec, cfg)
		if err != nil {
			return nil, err
		}
		g.AddPath(p)
	}
	return g, nil
}

// RepoURI names the repository by its remote URL, falling back to a file://
// URI of the worktree.
func RepoURI(repo *git.Repository, remote string) (string, error) {
	if remote != "" {
		if r, err := repo.Remote(remote); err == nil && len(r.Config().URLs) > 0 {
			return NormalizeGitURL(r.Config().URLs[0]), nil
		}
	}
	wt, err := repo.Worktree()
	if err != nil {
		if errors.Is(err, git.ErrIsBareRepository) {
			return "file://unknown", nil
		}
		return "", fmt.Errorf("opening worktree: %w", err)
	}
	return "file://" + wt.Filesystem.Root(), nil
}

// BranchInfo summarizes a local branch tip.
type BranchInfo struct {
	Name      string
	Head      string
	HeadShort string
	Subject   string
	Author    string
	Timestamp string
}

// ListBranches returns the local branches sorted by name.
func ListBranches(repo *git.Repository) ([]BranchInfo, error) {
	refs, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	var out []BranchInfo
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		c, err := repo.CommitObject(ref.Hash())
		if err != nil {
			return fmt.Errorf("reading tip of %s: %w", ref.Name().Short(), err)
		}
		out = append(out, BranchInfo{
			Name:      ref.Name().Short(),
			Head:      c.Hash.String(),
			HeadShort: shortHash(c.Hash.String()),
			Subject:   subject(c.Message),
			Author:    c.Author.Name,
			Timestamp: commitTime(c),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b BranchInfo) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func branchCommit(repo *git.Repository, name string) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrBranchNotFound)
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading tip of %s: %w", name, err)
	}
	return c, nil
}

func resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	h, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", rev, err)
	}
	return repo.CommitObject(*h)
}

func findDefaultBranch(repo *git.Repository) string {
	for _, name := range defaultBranchNames {
		if _, err := repo.Reference(plumbing.NewBranchReferenceName(name), true); err == nil {
			return name
		}
	}
	return ""
}

// findBase picks the merge base with the default branch, or the root commit
// when the branch is the default branch or shares no history with it.
func findBase(repo *git.Repository, tip *object.Commit) (*object.Commit, error) {
	if name := findDefaultBranch(repo); name != "" {
		def, err := branchCommit(repo, name)
		if err == nil && def.Hash != tip.Hash {
			if bases, err := def.MergeBase(tip); err == nil && len(bases) > 0 && bases[0].Hash != tip.Hash {
				return bases[0], nil
			}
		}
	}

	var root *object.Commit
	err := object.NewCommitPreorderIter(tip, nil, nil).ForEach(func(c *object.Commit) error {
		if c.NumParents() == 0 {
			root = c
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	if root == nil {
		return tip, nil
	}
	return root, nil
}

// defaultBranchStart finds where the default branch should start in a graph
// so that every other branch's fork point is covered. It returns the
// grandparent of the earliest merge base, or "" when no adjustment applies.
func defaultBranchStart(repo *git.Repository, specs []BranchSpec, defaultBranch string) (string, error) {
	if defaultBranch == "" || !slices.ContainsFunc(specs, func(s BranchSpec) bool {
		return s.Name == defaultBranch && s.Start == ""
	}) {
		return "", nil
	}
	def, err := branchCommit(repo, defaultBranch)
	if err != nil {
		return "", err
	}

	var earliest *object.Commit
	for _, spec := range specs {
		if spec.Name == defaultBranch {
			continue
		}
		tip, err := branchCommit(repo, spec.Name)
		if err != nil {
			continue
		}
		bases, err := def.MergeBase(tip)
		if err != nil || len(bases) == 0 {
			continue
		}
		mb := bases[0]
		if earliest == nil {
			earliest = mb
			continue
		}
		if mb.Hash != earliest.Hash {
			if older, err := mb.IsAncestor(earliest); err == nil && older {
				earliest = mb
			}
		}
	}
	if earliest == nil {
		return "", nil
	}

	start := earliest
	for range 2 {
		if start.NumParents() == 0 {
			break
		}
		parent, err := start.Parent(0)
		if err != nil {
			return "", fmt.Errorf("reading parent of %s: %w", start.Hash, err)
		}
		start = parent
	}
	return start.Hash.String(), nil
}

// collectCommits returns the commits reachable from tip but not from base,
// parents before children.
func collectCommits(base, tip *object.Commit) ([]*object.Commit, error) {
	hidden := map[plumbing.Hash]bool{}
	err := object.NewCommitPreorderIter(base, nil, nil).ForEach(func(c *object.Commit) error {
		hidden[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking base history: %w", err)
	}

	byHash := map[plumbing.Hash]*object.Commit{}
	err = object.NewCommitPreorderIter(tip, hidden, nil).ForEach(func(c *object.Commit) error {
		byHash[c.Hash] = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking branch history: %w", err)
	}

	candidates := make([]*object.Commit, 0, len(byHash))
	for _, c := range byHash {
		candidates = append(candidates, c)
	}
	slices.SortFunc(candidates, func(a, b *object.Commit) int {
		if c := a.Committer.When.Compare(b.Committer.When); c != 0 {
			return c
		}
		return strings.Compare(a.Hash.String(), b.Hash.String())
	})

	ordered := make([]*object.Commit, 0, len(candidates))
	done := map[plumbing.Hash]bool{}
	var visit func(c *object.Commit)
	visit = func(c *object.Commit) {
		if done[c.Hash] {
			return
		}
		done[c.Hash] = true
		for _, ph := range c.ParentHashes {
			if parent, ok := byHash[ph]; ok {
				visit(parent)
			}
		}
		ordered = append(ordered, c)
	}
	for _, c := range candidates {
		visit(c)
	}
	return ordered, nil
}

// commitStep converts a commit into a step. Parent links are kept only when
// the parent is itself part of the derived range.
func commitStep(c *object.Commit, inRange map[plumbing.Hash]bool) (*document.Step, string, document.ActorDefinition, error) {
	actor := "human:" + SlugifyAuthor(c.Author.Name, c.Author.Email)
	def := document.ActorDefinition{Name: c.Author.Name}
	if c.Author.Email != "" {
		def.Identities = []document.Identity{{System: "email", ID: c.Author.Email}}
	}

	s := document.NewStep(stepID(c.Hash.String()), actor, c.Author.When.UTC().Truncate(time.Second)).
		WithVCSSource(vcsType, c.Hash.String())
	for _, ph := range c.ParentHashes {
		if inRange[ph] {
			s.WithParent(stepID(ph.String()))
		}
	}
	if intent := subject(c.Message); intent != "" {
		s.WithIntent(intent)
	}

	diffs, err := commitDiffs(c)
	if err != nil {
		return nil, "", def, fmt.Errorf("diffing %s: %w", shortHash(c.Hash.String()), err)
	}
	for artifact, diff := range diffs {
		s.WithRawChange(artifact, diff)
	}
	return s, actor, def, nil
}

// commitDiffs renders a unified diff per file against the first parent,
// starting at the first hunk header. Files without hunks, such as binaries,
// are skipped.
func commitDiffs(c *object.Commit) (map[string]string, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(changes))
	for _, ch := range changes {
		patch, err := ch.Patch()
		if err != nil {
			return nil, err
		}
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name
		}
		text := patch.String()
		idx := strings.Index(text, "\n@@")
		if idx < 0 {
			continue
		}
		out[name] = text[idx+1:]
	}
	return out, nil
}

func subject(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(line)
}

func commitTime(c *object.Commit) string {
	return document.FormatTimestamp(c.Author.When.UTC().Truncate(time.Second))
}
