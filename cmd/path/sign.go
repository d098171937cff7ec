package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"toolpath/internal/config"
	"toolpath/internal/document"
	"toolpath/internal/signing"
)

type signOptions struct {
	input    string
	scope    string
	stepID   string
	allSteps bool
	path     string
	keyFile  string
	keyType  string
	signer   string
	embedKey bool
}

func signCmd() *cobra.Command {
	var opts signOptions
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Add a signature to a step or path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input file, - for stdin")
	cmd.Flags().StringVar(&opts.scope, "scope", signing.ScopeAuthor, "Path signature scope: author or reviewer")
	cmd.Flags().StringVar(&opts.stepID, "step", "", "Sign this step instead of the path")
	cmd.Flags().BoolVar(&opts.allSteps, "all-steps", false, "Sign every step whose actor is the signer")
	cmd.Flags().StringVar(&opts.path, "path", "", "Path id within a graph (default: first inline path)")
	cmd.Flags().StringVar(&opts.keyFile, "key", "", "Private key file (default: signing.key_file)")
	cmd.Flags().StringVar(&opts.keyType, "key-type", "", "Key type: ed25519, ssh, or pgp (default: signing.key_type)")
	cmd.Flags().StringVar(&opts.signer, "signer", "", "Signing actor (default: signing.signer)")
	cmd.Flags().BoolVar(&opts.embedKey, "embed-key", false, "Record the public key in the document's actor directory")
	return cmd
}

func runSign(cmd *cobra.Command, opts signOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts.applyDefaults(cfg)
	if opts.keyFile == "" {
		return fmt.Errorf("no key file: pass --key or set signing.key_file")
	}
	signer, err := signing.LoadSignerFile(opts.keyType, opts.keyFile)
	if err != nil {
		return err
	}

	doc, err := readDocument(cmd, opts.input)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if doc.Kind() == document.KindStep {
		s := doc.Step()
		if err := signStep(s, opts.signer, signer, now); err != nil {
			return err
		}
		if opts.embedKey {
			s.WithActor(s.Identity.Actor, withKey(s.Actors()[s.Identity.Actor], signer.Key()))
		}
		return writeDocument(cmd, doc, usePretty(cfg))
	}

	p, err := selectPath(doc, opts.path)
	if err != nil {
		return err
	}

	switch {
	case opts.stepID != "":
		s, ok := p.Step(opts.stepID)
		if !ok {
			return fmt.Errorf("step %q not found in path %q", opts.stepID, p.ID())
		}
		if err := signStep(s, opts.signer, signer, now); err != nil {
			return err
		}
	case opts.allSteps:
		if opts.signer == "" {
			return fmt.Errorf("--all-steps needs --signer or signing.signer")
		}
		signed := 0
		for i := range p.Steps {
			if p.Steps[i].Identity.Actor != opts.signer {
				continue
			}
			if err := signStep(&p.Steps[i], opts.signer, signer, now); err != nil {
				return err
			}
			signed++
		}
		slog.Info("signed steps", "path", p.ID(), "actor", opts.signer, "count", signed)
	default:
		if opts.signer == "" {
			return fmt.Errorf("path signatures need --signer or signing.signer")
		}
		sig, err := signing.SignPath(p, opts.scope, opts.signer, signer, now)
		if err != nil {
			return err
		}
		p.AddSignature(sig)
	}

	if opts.embedKey && opts.signer != "" {
		p.WithActor(opts.signer, withKey(p.Actors()[opts.signer], signer.Key()))
	}
	return writeDocument(cmd, doc, usePretty(cfg))
}

func (o *signOptions) applyDefaults(cfg *config.Config) {
	if o.keyFile == "" {
		o.keyFile = cfg.Signing.KeyFile
	}
	if o.keyType == "" {
		o.keyType = cfg.Signing.KeyType
	}
	if o.signer == "" {
		o.signer = cfg.Signing.Signer
	}
}

// signStep signs s on behalf of its actor. A configured signer that is not
// the step actor is refused.
func signStep(s *document.Step, actor string, signer signing.Signer, at time.Time) error {
	if actor != "" && actor != s.Identity.Actor {
		return fmt.Errorf("signer %s is not the actor of step %s (%s)", actor, s.ID(), s.Identity.Actor)
	}
	sig, err := signing.SignStep(s, signer, at)
	if err != nil {
		return err
	}
	s.AddSignature(sig)
	return nil
}

func withKey(def document.ActorDefinition, key document.Key) document.ActorDefinition {
	if _, ok := def.Key(key.Fingerprint); !ok {
		def.Keys = append(def.Keys, key)
	}
	return def
}
