package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"toolpath/internal/correlate"
	"toolpath/internal/document"
)

func correlateCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Link graph paths that share VCS revisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, input)
			if err != nil {
				return err
			}
			if doc.Kind() != document.KindGraph {
				return fmt.Errorf("correlate needs a Graph document, got %s", doc.Kind())
			}
			g, result := correlate.Correlate(doc.Graph())
			if len(result.DuplicatePaths) > 0 {
				slog.Warn("skipped duplicate path ids", "paths", result.DuplicatePaths)
			}
			slog.Info("correlated graph",
				"graph", g.ID(),
				"shared_revisions", len(result.SharedRevisions),
				"relations", len(result.Relations),
				"refs_added", result.AddedRefs)
			return writeDocument(cmd, document.GraphDocument(g), usePretty(cfg))
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input graph, - for stdin")
	return cmd
}
