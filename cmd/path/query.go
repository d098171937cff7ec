package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"toolpath/internal/document"
	"toolpath/internal/query"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the steps of a document",
	}
	cmd.AddCommand(queryAncestorsCmd())
	cmd.AddCommand(queryDeadEndsCmd())
	cmd.AddCommand(queryFilterCmd())
	return cmd
}

type queryFlags struct {
	input string
	path  string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input file, - for stdin")
	cmd.Flags().StringVar(&f.path, "path", "", "Path id within a graph (default: first inline path)")
}

func (f *queryFlags) load(cmd *cobra.Command) ([]document.Step, string, error) {
	doc, err := readDocument(cmd, f.input)
	if err != nil {
		return nil, "", err
	}
	if doc.Kind() == document.KindStep {
		steps, head := query.StepsOf(doc)
		return steps, head, nil
	}
	p, err := selectPath(doc, f.path)
	if err != nil {
		return nil, "", err
	}
	return p.Steps, p.Identity.Head, nil
}

func queryAncestorsCmd() *cobra.Command {
	var flags queryFlags
	var stepID string
	cmd := &cobra.Command{
		Use:   "ancestors",
		Short: "Walk the parent chain from a step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if _, ok := query.StepIndex(steps)[stepID]; !ok {
				return fmt.Errorf("step %q not found", stepID)
			}
			set := query.Ancestors(steps, stepID)
			var out []*document.Step
			for i := range steps {
				if set.Has(steps[i].ID()) {
					out = append(out, &steps[i])
				}
			}
			return printSteps(cmd, out)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&stepID, "step-id", "", "Step id to trace from")
	cmd.MarkFlagRequired("step-id")
	return cmd
}

func queryDeadEndsCmd() *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:   "dead-ends",
		Short: "List steps not on the path to head",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, head, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if head == "" {
				return fmt.Errorf("document has no head step")
			}
			return printSteps(cmd, query.DeadEnds(steps, head))
		},
	}
	flags.register(cmd)
	return cmd
}

func queryFilterCmd() *cobra.Command {
	var flags queryFlags
	var actor, artifact, after, before string
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter steps by actor prefix, artifact, and time range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseTimeFlag("after", after)
			if err != nil {
				return err
			}
			to, err := parseTimeFlag("before", before)
			if err != nil {
				return err
			}
			steps, _, err := flags.load(cmd)
			if err != nil {
				return err
			}

			keep := map[*document.Step]int{}
			filters := 0
			count := func(matched []*document.Step) {
				filters++
				for _, s := range matched {
					keep[s]++
				}
			}
			count(query.FilterByActor(steps, actor))
			if artifact != "" {
				count(query.FilterByArtifact(steps, artifact))
			}
			if !from.IsZero() || !to.IsZero() {
				count(query.FilterByTimeRange(steps, from, to))
			}

			var out []*document.Step
			for i := range steps {
				if keep[&steps[i]] == filters {
					out = append(out, &steps[i])
				}
			}
			return printSteps(cmd, out)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&actor, "actor", "", "Actor prefix, e.g. human: or agent:claude")
	cmd.Flags().StringVar(&artifact, "artifact", "", "Artifact the step must change")
	cmd.Flags().StringVar(&after, "after", "", "Earliest timestamp, RFC 3339")
	cmd.Flags().StringVar(&before, "before", "", "Latest timestamp, RFC 3339")
	return cmd
}

func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func printSteps(cmd *cobra.Command, steps []*document.Step) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if steps == nil {
		steps = []*document.Step{}
	}
	return writeJSON(cmd, steps, usePretty(cfg))
}
