package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"toolpath/internal/config"
)

var (
	configPath string
	prettyFlag bool
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "path",
		Short: "Derive, query, sign, and archive toolpath provenance documents",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(cmd.ErrOrStderr(), verbose)
		},
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Project config file")
	root.PersistentFlags().BoolVar(&prettyFlag, "pretty", false, "Indent JSON output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(validateCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(mergeCmd())
	root.AddCommand(correlateCmd())
	root.AddCommand(signCmd())
	root.AddCommand(verifyCmd())
	root.AddCommand(keygenCmd())
	root.AddCommand(deriveCmd())
	root.AddCommand(archiveCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(initCmd())
	root.AddCommand(versionCmd())
	return root
}

func setupLogger(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(configPath)
}

func usePretty(cfg *config.Config) bool {
	return prettyFlag || (cfg != nil && cfg.Output.Pretty)
}
