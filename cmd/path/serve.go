package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"toolpath/internal/config"
	"toolpath/internal/mcp"
	"toolpath/internal/store"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				actors, err := actorDirectory(cfg)
				if err != nil {
					return err
				}
				slog.Info("serving MCP over stdio", "store", redactDSN(cfg.Store.DSN))
				server := mcp.NewServer(db, actors, cfg.Requirements(), version)
				return server.Run(ctx, &sdk.StdioTransport{})
			})
		},
	}
}
