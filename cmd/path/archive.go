package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"toolpath/internal/config"
	"toolpath/internal/document"
	"toolpath/internal/ingest"
	"toolpath/internal/store"
)

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Store and look up documents in the archive",
	}
	cmd.AddCommand(archivePutCmd())
	cmd.AddCommand(archiveGetCmd())
	cmd.AddCommand(archiveListCmd())
	cmd.AddCommand(archiveDeleteCmd())
	cmd.AddCommand(archiveRevisionCmd())
	cmd.AddCommand(archiveSearchCmd())
	cmd.AddCommand(archiveSQLCmd())
	cmd.AddCommand(archiveSyncCmd())
	return cmd
}

// withStore loads the config, opens the archive, and runs fn against it.
func withStore(fn func(ctx context.Context, cfg *config.Config, db store.Store) error) error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)
	return fn(ctx, cfg, db)
}

func archivePutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <file>...",
		Short: "Validate and store documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				for _, name := range args {
					doc, err := readDocument(cmd, name)
					if err != nil {
						return err
					}
					rec, err := db.PutDocument(ctx, doc)
					if err != nil {
						return fmt.Errorf("storing %s: %w", name, err)
					}
					slog.Debug("stored document", "file", name, "id", rec.ID, "digest", rec.Digest)
					fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%s, %d steps, sha256:%s)\n", rec.ID, rec.Kind, rec.StepCount, rec.Digest[:12])
				}
				return nil
			})
		},
	}
}

func archiveGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print an archived document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				doc, err := db.GetDocument(ctx, args[0])
				if err != nil {
					return err
				}
				return writeDocument(cmd, doc, usePretty(cfg))
			})
		},
	}
}

func archiveListCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				records, err := db.ListDocuments(ctx, document.Kind(kind))
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No documents found.")
					return nil
				}
				for _, r := range records {
					line := fmt.Sprintf("%s (%s) steps=%d stored=%s", r.ID, r.Kind, r.StepCount, r.StoredAt)
					if r.Title != "" {
						line += " " + r.Title
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only Step, Path, or Graph documents")
	return cmd
}

func archiveDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a document from the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				ok, err := db.DeleteDocument(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s: %w", args[0], store.ErrNotFound)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func archiveRevisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revision <rev>",
		Short: "Find steps that recorded a VCS revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				steps, err := db.FindRevision(ctx, args[0])
				if err != nil {
					return err
				}
				if len(steps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matches found.")
					return nil
				}
				for _, s := range steps {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s by %s at %s\n", stepLocation(s), s.Revision, s.Actor, s.Timestamp)
				}
				return nil
			})
		},
	}
}

func archiveSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search step intents using the full-text index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				results, err := db.SearchSteps(ctx, strings.Join(args, " "), limit)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matches found.")
					return nil
				}
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] score=%.2f %s\n", stepLocation(r.StepRecord), r.Actor, r.Score, r.Snippet)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultSearchLimit, "Maximum number of results")
	return cmd
}

func archiveSQLCmd() *cobra.Command {
	var paramPairs []string
	cmd := &cobra.Command{
		Use:   "sql <query>",
		Short: "Run a read-only query against the archive (Cypher for neo4j archives)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParamPairs(paramPairs)
			if err != nil {
				return err
			}
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				rows, err := db.RunSQL(ctx, strings.Join(args, " "), params)
				if err != nil {
					return err
				}
				return writeJSON(cmd, rows, true)
			})
		},
	}
	cmd.Flags().StringArrayVar(&paramPairs, "param", nil, "Parameter as key=value; SQL archives bind keys 1..n positionally (repeatable)")
	return cmd
}

func archiveSyncCmd() *cobra.Command {
	var options ingest.Options
	cmd := &cobra.Command{
		Use:   "sync <dir>...",
		Short: "Archive every JSON document under the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, db store.Store) error {
				result, err := ingest.Run(ctx, db, args, options)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Stored: %d\n", len(result.Stored))
				fmt.Fprintf(out, "Unchanged: %d\n", result.Skipped)
				if options.Prune {
					fmt.Fprintf(out, "Removed: %d\n", len(result.Removed))
				}
				if len(result.Errors) > 0 {
					fmt.Fprintf(out, "Errors (%d):\n", len(result.Errors))
					for _, err := range result.Errors {
						fmt.Fprintf(out, "  - %v\n", err)
					}
					return fmt.Errorf("sync finished with %d errors", len(result.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&options.Full, "full", false, "Store documents even when unchanged")
	cmd.Flags().BoolVar(&options.Prune, "prune", false, "Delete archived documents no file holds")
	cmd.Flags().StringArrayVar(&options.Exclude, "exclude", nil, "Directory or file to skip (repeatable)")
	return cmd
}

func parseParamPairs(pairs []string) (map[string]any, error) {
	params := make(map[string]any)
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid param %q: empty key", pair)
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}

func stepLocation(s store.StepRecord) string {
	if s.PathID == "" || s.PathID == s.DocumentID {
		return s.DocumentID + "/" + s.StepID
	}
	return s.DocumentID + ":" + s.PathID + "/" + s.StepID
}
