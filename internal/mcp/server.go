package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"toolpath/internal/document"
	"toolpath/internal/signing"
	"toolpath/internal/store"
)

// Archive is the read side of a store the tools query.
type Archive interface {
	GetDocument(ctx context.Context, id string) (document.Document, error)
	ListDocuments(ctx context.Context, kind document.Kind) ([]store.DocumentRecord, error)
	FindRevision(ctx context.Context, revision string) ([]store.StepRecord, error)
	SearchSteps(ctx context.Context, query string, limit int) ([]store.SearchResult, error)
}

type Server struct {
	archive Archive
	actors  map[string]document.ActorDefinition
	require []signing.Requirement
	mcp     *sdk.Server
}

// NewServer wires the toolpath tools to archive. actors is an extra key
// directory consulted by verify_path after the document's own; require is the
// default requirement set when a call names none.
func NewServer(archive Archive, actors map[string]document.ActorDefinition, require []signing.Requirement, version string) *Server {
	s := &Server{
		archive: archive,
		actors:  actors,
		require: require,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "toolpath",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
