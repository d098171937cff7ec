package signing

import (
	"crypto/sha256"
	"fmt"

	"toolpath/internal/canonical"
	"toolpath/internal/document"
)

// StepPayload is the canonical form covered by a step author signature: the
// change map and the step identity, never meta.
func StepPayload(s *document.Step) ([]byte, error) {
	change := s.Change
	if change == nil {
		change = map[string]document.ArtifactChange{}
	}
	payload := struct {
		Change map[string]document.ArtifactChange `json:"change"`
		Step   document.StepIdentity              `json:"step"`
	}{change, s.Identity}
	data, err := canonical.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing step %s: %w", s.Identity.ID, err)
	}
	return data, nil
}

// PathAuthorPayload covers the path identity and the ordered step ids.
func PathAuthorPayload(p *document.Path) ([]byte, error) {
	payload := struct {
		Path    document.PathIdentity `json:"path"`
		StepIDs []string              `json:"step_ids"`
	}{p.Identity, p.StepIDs()}
	data, err := canonical.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing path %s: %w", p.Identity.ID, err)
	}
	return data, nil
}

// PathReviewerPayload covers only the reviewed head, so a reviewer can
// re-approve without the step contents.
func PathReviewerPayload(p *document.Path, reviewedAt string) ([]byte, error) {
	payload := struct {
		Head       string `json:"head"`
		PathID     string `json:"path_id"`
		ReviewedAt string `json:"reviewed_at"`
	}{p.Identity.Head, p.Identity.ID, reviewedAt}
	data, err := canonical.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing review of %s: %w", p.Identity.ID, err)
	}
	return data, nil
}

// Digest is the SHA-256 of a canonical payload. Keys sign the digest.
func Digest(payload []byte) []byte {
	sum := sha256.Sum256(payload)
	return sum[:]
}
