package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"toolpath/internal/document"
	"toolpath/internal/merge"
)

func mergeCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "merge <file>...",
		Short: "Combine paths and graphs into one graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			docs := make([]document.Document, 0, len(args))
			for _, name := range args {
				doc, err := readDocument(cmd, name)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}
			g, err := merge.Merge(docs, title)
			if err != nil {
				return err
			}
			slog.Debug("merged documents", "inputs", len(docs), "paths", len(g.Paths), "graph", g.ID())
			return writeDocument(cmd, document.GraphDocument(g), usePretty(cfg))
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Graph title")
	return cmd
}
