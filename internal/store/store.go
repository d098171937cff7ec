package store

import (
	"context"
	"errors"

	"toolpath/internal/document"
)

// ErrNotFound is returned when no archived document has the requested id.
var ErrNotFound = errors.New("document not found")

// Store archives toolpath documents and indexes the steps they contain.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	PutDocument(ctx context.Context, doc document.Document) (*DocumentRecord, error)
	GetDocument(ctx context.Context, id string) (document.Document, error)
	DeleteDocument(ctx context.Context, id string) (bool, error)
	ListDocuments(ctx context.Context, kind document.Kind) ([]DocumentRecord, error)

	FindRevision(ctx context.Context, revision string) ([]StepRecord, error)
	SearchSteps(ctx context.Context, query string, limit int) ([]SearchResult, error)

	RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}
