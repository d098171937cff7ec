package document

import (
	"time"
)

// Step is a single atomic change by one actor at one time.
type Step struct {
	Identity StepIdentity              `json:"step"`
	Change   map[string]ArtifactChange `json:"change"`
	Meta     *StepMeta                 `json:"meta,omitempty"`
}

type StepIdentity struct {
	ID        string   `json:"id"`
	Parents   []string `json:"parents,omitempty"`
	Actor     string   `json:"actor"`
	Timestamp string   `json:"timestamp"`
}

// ArtifactChange holds the perspectives on how one artifact changed. Raw is
// a unified diff; Structural is a typed operation. Raw is a pointer so an
// explicit empty diff survives a round trip.
type ArtifactChange struct {
	Raw        *string           `json:"raw,omitempty"`
	Structural *StructuralChange `json:"structural,omitempty"`
	Extra      Extra             `json:"-"`
}

type StructuralChange struct {
	Type  string `json:"type"`
	Extra Extra  `json:"-"`
}

// StepMeta is optional step metadata.
type StepMeta struct {
	Intent     *string                    `json:"intent,omitempty"`
	Source     *VCSSource                 `json:"source,omitempty"`
	Refs       []Ref                      `json:"refs,omitempty"`
	Actors     map[string]ActorDefinition `json:"actors,omitempty"`
	Signatures []Signature                `json:"signatures,omitempty"`
	Extra      Extra                      `json:"-"`
}

// VCSSource ties a step to a version-control revision.
type VCSSource struct {
	Type     string `json:"type"`
	Revision string `json:"revision"`
	ChangeID string `json:"change_id,omitempty"`
	Extra    Extra  `json:"-"`
}

func (s *Step) UnmarshalJSON(data []byte) error {
	type plain Step
	var p plain
	if _, err := decodeObject(data, "step", &p, []string{"step", "change"}); err != nil {
		return err
	}
	*s = Step(p)
	return nil
}

func (s Step) MarshalJSON() ([]byte, error) {
	type plain Step
	p := plain(s)
	if p.Change == nil {
		p.Change = map[string]ArtifactChange{}
	}
	return marshalNoEscape(p)
}

func (id *StepIdentity) UnmarshalJSON(data []byte) error {
	type plain StepIdentity
	var p plain
	if _, err := decodeObject(data, "step identity", &p, []string{"id", "actor", "timestamp"}); err != nil {
		return err
	}
	*id = StepIdentity(p)
	return nil
}

func (c *ArtifactChange) UnmarshalJSON(data []byte) error {
	type plain ArtifactChange
	var p plain
	extra, err := decodeObject(data, "artifact change", &p, nil, "raw", "structural")
	if err != nil {
		return err
	}
	p.Extra = extra
	*c = ArtifactChange(p)
	return nil
}

func (c ArtifactChange) MarshalJSON() ([]byte, error) {
	type plain ArtifactChange
	return encodeObject(plain(c), c.Extra)
}

func (c *StructuralChange) UnmarshalJSON(data []byte) error {
	type plain StructuralChange
	var p plain
	extra, err := decodeObject(data, "structural change", &p, []string{"type"}, "type")
	if err != nil {
		return err
	}
	p.Extra = extra
	*c = StructuralChange(p)
	return nil
}

func (c StructuralChange) MarshalJSON() ([]byte, error) {
	type plain StructuralChange
	return encodeObject(plain(c), c.Extra)
}

func (m *StepMeta) UnmarshalJSON(data []byte) error {
	type plain StepMeta
	var p plain
	extra, err := decodeObject(data, "step meta", &p, nil, "intent", "source", "refs", "actors", "signatures")
	if err != nil {
		return err
	}
	p.Extra = extra
	*m = StepMeta(p)
	return nil
}

func (m StepMeta) MarshalJSON() ([]byte, error) {
	type plain StepMeta
	return encodeObject(plain(m), m.Extra)
}

func (v *VCSSource) UnmarshalJSON(data []byte) error {
	type plain VCSSource
	var p plain
	extra, err := decodeObject(data, "source", &p, []string{"type", "revision"}, "type", "revision", "change_id")
	if err != nil {
		return err
	}
	p.Extra = extra
	*v = VCSSource(p)
	return nil
}

func (v VCSSource) MarshalJSON() ([]byte, error) {
	type plain VCSSource
	return encodeObject(plain(v), v.Extra)
}

// FormatTimestamp renders t the way NewStep stores it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewStep starts a step with an empty change map.
func NewStep(id, actor string, at time.Time) *Step {
	return &Step{
		Identity: StepIdentity{ID: id, Actor: actor, Timestamp: FormatTimestamp(at)},
		Change:   map[string]ArtifactChange{},
	}
}

// Time parses the step timestamp as RFC 3339.
func (s *Step) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s.Identity.Timestamp)
}

func (s *Step) ID() string { return s.Identity.ID }

func (s *Step) ensureMeta() *StepMeta {
	if s.Meta == nil {
		s.Meta = &StepMeta{}
	}
	return s.Meta
}

func (s *Step) WithParent(id string) *Step {
	s.Identity.Parents = append(s.Identity.Parents, id)
	return s
}

// WithRawChange sets the raw perspective for artifact, keeping any other
// perspective already recorded for it.
func (s *Step) WithRawChange(artifact, diff string) *Step {
	if s.Change == nil {
		s.Change = map[string]ArtifactChange{}
	}
	c := s.Change[artifact]
	c.Raw = &diff
	s.Change[artifact] = c
	return s
}

func (s *Step) WithStructuralChange(artifact string, change StructuralChange) *Step {
	if s.Change == nil {
		s.Change = map[string]ArtifactChange{}
	}
	c := s.Change[artifact]
	c.Structural = &change
	s.Change[artifact] = c
	return s
}

func (s *Step) WithIntent(intent string) *Step {
	s.ensureMeta().Intent = &intent
	return s
}

// Intent returns meta.intent, or "" when absent.
func (s *Step) Intent() string {
	if s.Meta == nil {
		return ""
	}
	return Deref(s.Meta.Intent)
}

func (s *Step) WithVCSSource(vcsType, revision string) *Step {
	s.ensureMeta().Source = &VCSSource{Type: vcsType, Revision: revision}
	return s
}

func (s *Step) WithRef(rel, href string) *Step {
	m := s.ensureMeta()
	m.Refs, _ = AppendRef(m.Refs, Ref{Rel: rel, Href: href})
	return s
}

func (s *Step) WithActor(actor string, def ActorDefinition) *Step {
	m := s.ensureMeta()
	if m.Actors == nil {
		m.Actors = map[string]ActorDefinition{}
	}
	m.Actors[actor] = def
	return s
}

func (s *Step) AddSignature(sig Signature) {
	m := s.ensureMeta()
	m.Signatures = append(m.Signatures, sig)
}

// AddRef adds r to the step refs, returning false when it was present.
func (s *Step) AddRef(r Ref) bool {
	m := s.ensureMeta()
	var added bool
	m.Refs, added = AppendRef(m.Refs, r)
	return added
}

// Revision returns the VCS revision recorded in meta.source, if any.
func (s *Step) Revision() string {
	if s.Meta == nil || s.Meta.Source == nil {
		return ""
	}
	return s.Meta.Source.Revision
}

// Actors returns the step-level actor directory, which may be nil.
func (s *Step) Actors() map[string]ActorDefinition {
	if s.Meta == nil {
		return nil
	}
	return s.Meta.Actors
}

// Signatures returns the step-level signatures.
func (s *Step) Signatures() []Signature {
	if s.Meta == nil {
		return nil
	}
	return s.Meta.Signatures
}

// IsRoot reports whether the step has no parents.
func (s *Step) IsRoot() bool { return len(s.Identity.Parents) == 0 }

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	out := *s
	if s.Identity.Parents != nil {
		out.Identity.Parents = append([]string(nil), s.Identity.Parents...)
	}
	if s.Change != nil {
		out.Change = make(map[string]ArtifactChange, len(s.Change))
		for k, c := range s.Change {
			out.Change[k] = c.clone()
		}
	}
	if s.Meta != nil {
		m := s.Meta.clone()
		out.Meta = &m
	}
	return &out
}

// RawDiff returns the raw perspective, or "" when absent.
func (c ArtifactChange) RawDiff() string { return Deref(c.Raw) }

func (c ArtifactChange) clone() ArtifactChange {
	out := c
	out.Raw = cloneString(c.Raw)
	if c.Structural != nil {
		sc := *c.Structural
		sc.Extra = c.Structural.Extra.clone()
		out.Structural = &sc
	}
	out.Extra = c.Extra.clone()
	return out
}

func (m StepMeta) clone() StepMeta {
	out := m
	out.Intent = cloneString(m.Intent)
	if m.Source != nil {
		src := *m.Source
		src.Extra = m.Source.Extra.clone()
		out.Source = &src
	}
	if m.Refs != nil {
		out.Refs = append([]Ref(nil), m.Refs...)
	}
	out.Actors = cloneActors(m.Actors)
	if m.Signatures != nil {
		out.Signatures = append([]Signature(nil), m.Signatures...)
	}
	out.Extra = m.Extra.clone()
	return out
}

// String returns a pointer to v, for optional string fields.
func String(v string) *string { return &v }

// Deref returns *v, or "" for nil.
func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	return String(*v)
}
