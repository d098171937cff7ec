// Package signing signs and verifies toolpath documents. Each scope covers a
// different canonical sub-object; see StepPayload, PathAuthorPayload and
// PathReviewerPayload.
package signing

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"toolpath/internal/document"
)

// Signature scopes.
const (
	ScopeAuthor   = "author"
	ScopeReviewer = "reviewer"
)

// Requirement names a signature VerifyAll must find.
type Requirement string

const (
	RequireStepAuthor   Requirement = "step/author"
	RequirePathAuthor   Requirement = "path/author"
	RequirePathReviewer Requirement = "path/reviewer"
)

var (
	ErrUnknownRequirement = errors.New("unknown signature requirement")
	ErrUnknownScope       = errors.New("unknown signature scope")
	ErrUnknownSigner      = errors.New("signer not found in actor directory")
	ErrUnknownKey         = errors.New("signer has no key with this fingerprint")
	ErrMissingTimestamp   = errors.New("reviewer signature has no timestamp")
)

func ParseRequirement(s string) (Requirement, error) {
	switch r := Requirement(s); r {
	case RequireStepAuthor, RequirePathAuthor, RequirePathReviewer:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRequirement, s)
}

func ParseRequirements(values []string) ([]Requirement, error) {
	out := make([]Requirement, 0, len(values))
	for _, v := range values {
		r, err := ParseRequirement(v)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func sign(payload []byte, signer Signer, actor, scope string, at time.Time) (document.Signature, error) {
	raw, err := signer.Sign(Digest(payload))
	if err != nil {
		return document.Signature{}, err
	}
	return document.Signature{
		Signer:    actor,
		Key:       signer.Key().Fingerprint,
		Scope:     scope,
		Sig:       base64.StdEncoding.EncodeToString(raw),
		Timestamp: document.FormatTimestamp(at),
	}, nil
}

// SignStep produces an author signature for s on behalf of the step actor.
// The caller attaches it with Step.AddSignature.
func SignStep(s *document.Step, signer Signer, at time.Time) (document.Signature, error) {
	payload, err := StepPayload(s)
	if err != nil {
		return document.Signature{}, err
	}
	return sign(payload, signer, s.Identity.Actor, ScopeAuthor, at)
}

// SignPath produces an author or reviewer signature for p by actor.
func SignPath(p *document.Path, scope, actor string, signer Signer, at time.Time) (document.Signature, error) {
	var (
		payload []byte
		err     error
	)
	switch scope {
	case ScopeAuthor:
		payload, err = PathAuthorPayload(p)
	case ScopeReviewer:
		payload, err = PathReviewerPayload(p, document.FormatTimestamp(at))
	default:
		return document.Signature{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
	if err != nil {
		return document.Signature{}, err
	}
	return sign(payload, signer, actor, scope, at)
}

func checkSignature(payload []byte, sig document.Signature, v Verifier) error {
	raw, err := base64.StdEncoding.DecodeString(sig.Sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return v.Verify(Digest(payload), raw)
}

// CheckStep verifies an author signature over s.
func CheckStep(s *document.Step, sig document.Signature, v Verifier) error {
	if sig.Scope != ScopeAuthor {
		return fmt.Errorf("%w: %q on a step", ErrUnknownScope, sig.Scope)
	}
	payload, err := StepPayload(s)
	if err != nil {
		return err
	}
	return checkSignature(payload, sig, v)
}

// CheckPath verifies an author or reviewer signature over p.
func CheckPath(p *document.Path, sig document.Signature, v Verifier) error {
	var (
		payload []byte
		err     error
	)
	switch sig.Scope {
	case ScopeAuthor:
		payload, err = PathAuthorPayload(p)
	case ScopeReviewer:
		if sig.Timestamp == "" {
			return ErrMissingTimestamp
		}
		payload, err = PathReviewerPayload(p, sig.Timestamp)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScope, sig.Scope)
	}
	if err != nil {
		return err
	}
	return checkSignature(payload, sig, v)
}

// VerifyStep reports whether sig is a valid author signature over s.
func VerifyStep(s *document.Step, sig document.Signature, v Verifier) bool {
	return CheckStep(s, sig, v) == nil
}

// VerifyPath reports whether sig is a valid signature over p.
func VerifyPath(p *document.Path, sig document.Signature, v Verifier) bool {
	return CheckPath(p, sig, v) == nil
}

// ResolveVerifier finds the key a signature names by looking the signer up
// in the directories in order.
func ResolveVerifier(sig document.Signature, dirs ...map[string]document.ActorDefinition) (Verifier, error) {
	def, ok := document.LookupActor(sig.Signer, dirs...)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSigner, sig.Signer)
	}
	key, ok := def.Key(sig.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownKey, sig.Signer, sig.Key)
	}
	return VerifierFor(key)
}

// Failure explains why one requirement was not met.
type Failure struct {
	Requirement Requirement
	Step        string
	Reason      string
}

// Report is the outcome of VerifyAll. Verified counts the signatures that
// satisfied a requirement.
type Report struct {
	Path     string
	Verified int
	Failures []Failure
}

func (r *Report) OK() bool { return len(r.Failures) == 0 }

// VerifyAll checks that p carries a valid signature for every requirement.
// Keys are resolved through the step actor directory, then the path
// directory, then any extra directories (such as the enclosing graph's).
// It fails closed: a requirement with no signature, an unresolvable key or a
// bad signature is reported as a failure.
func VerifyAll(p *document.Path, reqs []Requirement, extra ...map[string]document.ActorDefinition) *Report {
	report := &Report{Path: p.Identity.ID}
	pathDirs := append([]map[string]document.ActorDefinition{p.Actors()}, extra...)

	for _, req := range reqs {
		switch req {
		case RequireStepAuthor:
			if len(p.Steps) == 0 {
				report.record(req, "", "no steps to verify")
			}
			for i := range p.Steps {
				s := &p.Steps[i]
				dirs := append([]map[string]document.ActorDefinition{s.Actors()}, pathDirs...)
				reason := satisfy(s.Signatures(), func(sig document.Signature) error {
					if sig.Scope != ScopeAuthor || sig.Signer != s.Identity.Actor {
						return errSkip
					}
					v, err := ResolveVerifier(sig, dirs...)
					if err != nil {
						return err
					}
					return CheckStep(s, sig, v)
				})
				report.record(req, s.Identity.ID, reason)
			}
		case RequirePathAuthor, RequirePathReviewer:
			scope := ScopeAuthor
			if req == RequirePathReviewer {
				scope = ScopeReviewer
			}
			reason := satisfy(p.Signatures(), func(sig document.Signature) error {
				if sig.Scope != scope {
					return errSkip
				}
				v, err := ResolveVerifier(sig, pathDirs...)
				if err != nil {
					return err
				}
				return CheckPath(p, sig, v)
			})
			report.record(req, "", reason)
		default:
			report.Failures = append(report.Failures, Failure{
				Requirement: req,
				Reason:      fmt.Sprintf("%v: %q", ErrUnknownRequirement, req),
			})
		}
	}
	return report
}

var errSkip = errors.New("signature does not apply")

// satisfy returns "" when some signature passes check, otherwise the reason
// the last applicable signature failed.
func satisfy(sigs []document.Signature, check func(document.Signature) error) string {
	reason := "no matching signature"
	for _, sig := range sigs {
		err := check(sig)
		if err == nil {
			return ""
		}
		if errors.Is(err, errSkip) {
			continue
		}
		reason = err.Error()
	}
	return reason
}

func (r *Report) record(req Requirement, step, reason string) {
	if reason == "" {
		r.Verified++
		return
	}
	r.Failures = append(r.Failures, Failure{Requirement: req, Step: step, Reason: reason})
}
