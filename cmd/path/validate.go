package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"toolpath/internal/document"
	"toolpath/internal/validate"
)

func validateCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a document against the structural invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, input)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file, - for stdin")
	return cmd
}

func runValidate(cmd *cobra.Command, input string) error {
	doc, err := readDocument(cmd, input)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	report := validate.Run(doc)

	var errorIssues []validate.Issue
	var warnIssues []validate.Issue
	for _, issue := range report.Issues {
		switch issue.Severity {
		case validate.SeverityError:
			errorIssues = append(errorIssues, issue)
		case validate.SeverityWarn:
			warnIssues = append(warnIssues, issue)
		}
	}

	if len(errorIssues) > 0 {
		fmt.Fprintf(out, "Errors (%d):\n", len(errorIssues))
		printIssues(out, errorIssues)
	}
	if len(warnIssues) > 0 {
		if len(errorIssues) > 0 {
			fmt.Fprintln(out, "")
		}
		fmt.Fprintf(out, "Warnings (%d):\n", len(warnIssues))
		printIssues(out, warnIssues)
	}

	if len(errorIssues) > 0 {
		return fmt.Errorf("validation found errors")
	}
	if len(warnIssues) > 0 {
		fmt.Fprintln(out, "")
	}
	fmt.Fprintln(out, summary(doc))
	return nil
}

func summary(doc document.Document) string {
	switch doc.Kind() {
	case document.KindPath:
		return fmt.Sprintf("Valid: Path (id: %s, %d steps)", doc.ID(), len(doc.Path().Steps))
	case document.KindGraph:
		return fmt.Sprintf("Valid: Graph (id: %s, %d paths)", doc.ID(), len(doc.Graph().Paths))
	}
	return fmt.Sprintf("Valid: Step (id: %s)", doc.ID())
}

func printIssues(out io.Writer, issues []validate.Issue) {
	for _, issue := range issues {
		location := issue.Path
		if issue.Step != "" {
			if location != "" {
				location += "/"
			}
			location += issue.Step
		}
		if location == "" {
			location = "document"
		}
		fmt.Fprintf(out, "  - %s: %s (%s)\n", location, issue.Message, issue.Code)
	}
}
