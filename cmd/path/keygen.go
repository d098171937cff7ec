package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"toolpath/internal/config"
	"toolpath/internal/document"
	"toolpath/internal/signing"
)

func keygenCmd() *cobra.Command {
	var out, actor, keyType string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key and print its actor directory entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !document.ValidActor(actor) {
				return fmt.Errorf("invalid actor %q", actor)
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			}

			signer, private, err := signing.Generate(keyType, actor)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, private, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}

			key := signer.Key()
			entry := config.Directory{
				Version: 1,
				Actors: []config.ActorRecord{{
					Actor: actor,
					Keys: []config.KeyRecord{{
						Type:        key.Type,
						Fingerprint: key.Fingerprint,
						Public:      key.Public,
					}},
				}},
			}
			data, err := yaml.Marshal(&entry)
			if err != nil {
				return fmt.Errorf("encoding actor entry: %w", err)
			}
			if err := os.WriteFile(out+".pub.yaml", data, 0o644); err != nil {
				return fmt.Errorf("writing %s.pub.yaml: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s %s)\n", out, key.Type, key.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Private key output file; the actor entry goes to <out>.pub.yaml")
	cmd.Flags().StringVar(&actor, "actor", "", "Actor the key belongs to, e.g. human:alex")
	cmd.Flags().StringVar(&keyType, "type", signing.KeyTypeEd25519, "Key type: ed25519, ssh, or pgp")
	cmd.MarkFlagRequired("actor")
	return cmd
}
