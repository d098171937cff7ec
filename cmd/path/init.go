package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"toolpath/internal/config"
	"toolpath/internal/signing"
)

func initCmd() *cobra.Command {
	var dsn, signer, keyFile string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter toolpath.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, dsn, signer, keyFile)
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", config.DefaultStoreDSN, "Archive DSN (sqlite://, postgres://, or neo4j://)")
	cmd.Flags().StringVar(&signer, "signer", "", "Default signing actor")
	cmd.Flags().StringVar(&keyFile, "key", "", "Default private key file")
	return cmd
}

func runInit(cmd *cobra.Command, dsn, signer, keyFile string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if _, err := config.StoreDriver(dsn); err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Store.DSN = dsn
	cfg.Signing.Signer = signer
	cfg.Signing.KeyFile = keyFile
	cfg.Verify.Require = []string{string(signing.RequireStepAuthor)}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

// redactDSN hides the password of a URL-style DSN for logging.
func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "invalid dsn"
	}
	return u.Redacted()
}
