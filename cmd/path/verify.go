package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"toolpath/internal/document"
	"toolpath/internal/signing"
)

func verifyCmd() *cobra.Command {
	var input, pathID string
	var require []string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check signatures against a requirement set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reqs := cfg.Requirements()
			if len(require) > 0 {
				if reqs, err = signing.ParseRequirements(require); err != nil {
					return err
				}
			}
			extra, err := actorDirectory(cfg)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, input)
			if err != nil {
				return err
			}

			var paths []*document.Path
			switch {
			case doc.Kind() == document.KindStep:
				return fmt.Errorf("verify needs a Path or Graph document")
			case doc.Kind() == document.KindGraph && pathID == "":
				paths = doc.Graph().InlinePaths()
			default:
				p, err := selectPath(doc, pathID)
				if err != nil {
					return err
				}
				paths = []*document.Path{p}
			}

			var graphActors map[string]document.ActorDefinition
			if doc.Kind() == document.KindGraph {
				graphActors = doc.Graph().Actors()
			}

			failed := 0
			for _, p := range paths {
				report := signing.VerifyAll(p, reqs, graphActors, extra)
				printReport(cmd.OutOrStdout(), report)
				if !report.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths failed verification", failed, len(paths))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file, - for stdin")
	cmd.Flags().StringVar(&pathID, "path", "", "Only verify this path of a graph")
	cmd.Flags().StringArrayVar(&require, "require", nil, "Requirement: step/author, path/author, or path/reviewer (repeatable)")
	return cmd
}

func printReport(out io.Writer, report *signing.Report) {
	if report.OK() {
		fmt.Fprintf(out, "OK: %s (%d signatures verified)\n", report.Path, report.Verified)
		return
	}
	fmt.Fprintf(out, "FAILED: %s (%d verified, %d failures)\n", report.Path, report.Verified, len(report.Failures))
	for _, f := range report.Failures {
		location := string(f.Requirement)
		if f.Step != "" {
			location = fmt.Sprintf("%s [%s]", f.Requirement, f.Step)
		}
		fmt.Fprintf(out, "  - %s: %s\n", location, f.Reason)
	}
}
