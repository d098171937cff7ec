package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"toolpath/internal/derive"
)

func deriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Build documents from existing history",
	}
	cmd.AddCommand(deriveGitCmd())
	return cmd
}

func deriveGitCmd() *cobra.Command {
	var repoDir, base, remote, title string
	var branches []string
	var archive bool
	cmd := &cobra.Command{
		Use:   "git",
		Short: "Derive a path per branch from git history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := git.PlainOpenWithOptions(repoDir, &git.PlainOpenOptions{DetectDotGit: true})
			if err != nil {
				return fmt.Errorf("opening repository at %s: %w", repoDir, err)
			}
			doc, err := derive.Derive(repo, branches, derive.Config{Remote: remote, Title: title, Base: base})
			if err != nil {
				return err
			}
			slog.Debug("derived document", "kind", doc.Kind(), "id", doc.ID())

			if archive {
				ctx := context.Background()
				db, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer db.Close(ctx)
				rec, err := db.PutDocument(ctx, doc)
				if err != nil {
					return err
				}
				slog.Info("archived derived document", "id", rec.ID, "steps", rec.StepCount)
			}
			return writeDocument(cmd, doc, usePretty(cfg))
		},
	}
	cmd.Flags().StringVarP(&repoDir, "repo", "r", ".", "Repository directory")
	cmd.Flags().StringArrayVarP(&branches, "branch", "b", nil, "Branch as name or name:start (repeatable)")
	cmd.Flags().StringVar(&base, "base", "", "Commit every path starts after (overrides per-branch starts)")
	cmd.Flags().StringVar(&remote, "remote", "origin", "Remote whose URL names the repository")
	cmd.Flags().StringVar(&title, "title", "", "Graph title when several branches are given")
	cmd.Flags().BoolVar(&archive, "archive", false, "Also store the result in the archive")
	cmd.MarkFlagRequired("branch")
	return cmd
}
