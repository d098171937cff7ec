package document

import (
	"regexp"
	"strings"
)

// Ref is a typed link to another document or external resource.
type Ref struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	type plain Ref
	var p plain
	if _, err := decodeObject(data, "ref", &p, []string{"rel", "href"}); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

// AppendRef adds r to refs unless an equal ref is already present. Refs have
// set semantics on (rel, href).
func AppendRef(refs []Ref, r Ref) ([]Ref, bool) {
	if HasRef(refs, r.Rel, r.Href) {
		return refs, false
	}
	return append(refs, r), true
}

func HasRef(refs []Ref, rel, href string) bool {
	for _, r := range refs {
		if r.Rel == rel && r.Href == href {
			return true
		}
	}
	return false
}

// ActorDefinition describes an actor listed in a meta actors directory.
type ActorDefinition struct {
	Name       string     `json:"name,omitempty"`
	Provider   string     `json:"provider,omitempty"`
	Model      string     `json:"model,omitempty"`
	Identities []Identity `json:"identities,omitempty"`
	Keys       []Key      `json:"keys,omitempty"`
}

// Key looks up a key entry by fingerprint.
func (a ActorDefinition) Key(fingerprint string) (Key, bool) {
	for _, k := range a.Keys {
		if k.Fingerprint == fingerprint {
			return k, true
		}
	}
	return Key{}, false
}

func (a ActorDefinition) clone() ActorDefinition {
	out := a
	if a.Identities != nil {
		out.Identities = append([]Identity(nil), a.Identities...)
	}
	if a.Keys != nil {
		out.Keys = append([]Key(nil), a.Keys...)
	}
	return out
}

type Identity struct {
	System string `json:"system"`
	ID     string `json:"id"`
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	type plain Identity
	var p plain
	if _, err := decodeObject(data, "identity", &p, []string{"system", "id"}); err != nil {
		return err
	}
	*i = Identity(p)
	return nil
}

// Key is public key material attached to an actor. Fingerprint is the stable
// handle that signatures reference.
type Key struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint"`
	Href        string `json:"href,omitempty"`
	Public      string `json:"public,omitempty"`
}

func (k *Key) UnmarshalJSON(data []byte) error {
	type plain Key
	var p plain
	if _, err := decodeObject(data, "key", &p, []string{"type", "fingerprint"}); err != nil {
		return err
	}
	*k = Key(p)
	return nil
}

// Signature attests to the canonical form of a document.
type Signature struct {
	Signer    string `json:"signer"`
	Key       string `json:"key"`
	Scope     string `json:"scope"`
	Sig       string `json:"sig"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	type plain Signature
	var p plain
	if _, err := decodeObject(data, "signature", &p, []string{"signer", "key", "scope", "sig"}); err != nil {
		return err
	}
	*s = Signature(p)
	return nil
}

var actorPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*:.+$`)

// ValidActor reports whether actor has the "type:name" form.
func ValidActor(actor string) bool {
	return actorPattern.MatchString(actor)
}

// ActorType returns the part of actor before the first colon.
func ActorType(actor string) string {
	t, _, _ := strings.Cut(actor, ":")
	return t
}

// LookupActor searches the directories in order and returns the first
// definition of actor.
func LookupActor(actor string, dirs ...map[string]ActorDefinition) (ActorDefinition, bool) {
	for _, dir := range dirs {
		if def, ok := dir[actor]; ok {
			return def, true
		}
	}
	return ActorDefinition{}, false
}

func cloneActors(in map[string]ActorDefinition) map[string]ActorDefinition {
	if in == nil {
		return nil
	}
	out := make(map[string]ActorDefinition, len(in))
	for k, v := range in {
		out[k] = v.clone()
	}
	return out
}

