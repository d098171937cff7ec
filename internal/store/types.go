package store

// DefaultSearchLimit caps SearchSteps when the caller passes a non-positive limit.
const DefaultSearchLimit = 50

type DocumentRecord struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Digest    string `json:"digest"`
	Title     string `json:"title,omitempty"`
	StepCount int    `json:"step_count"`
	StoredAt  string `json:"stored_at,omitempty"`
}

// StepRecord is the indexed projection of one step inside an archived document.
// PathID is empty for a bare Step document.
type StepRecord struct {
	DocumentID string `json:"document_id"`
	PathID     string `json:"path_id,omitempty"`
	StepID     string `json:"step_id"`
	Actor      string `json:"actor"`
	Timestamp  string `json:"timestamp"`
	Intent     string `json:"intent,omitempty"`
	Revision   string `json:"revision,omitempty"`
}

type SearchResult struct {
	StepRecord
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}
