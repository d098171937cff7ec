package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"toolpath/internal/document"
	"toolpath/internal/signing"
)

// Directory is a trusted actor directory kept outside any document, such as
// a team's published signing keys.
type Directory struct {
	Version int           `yaml:"version"`
	Actors  []ActorRecord `yaml:"actors"`

	index map[string]*ActorRecord
}

type ActorRecord struct {
	Actor      string           `yaml:"actor"`
	Name       string           `yaml:"name,omitempty"`
	Provider   string           `yaml:"provider,omitempty"`
	Model      string           `yaml:"model,omitempty"`
	Identities []IdentityRecord `yaml:"identities,omitempty"`
	Keys       []KeyRecord      `yaml:"keys"`
}

type IdentityRecord struct {
	System string `yaml:"system"`
	ID     string `yaml:"id"`
}

type KeyRecord struct {
	Type        string `yaml:"type"`
	Fingerprint string `yaml:"fingerprint"`
	Href        string `yaml:"href,omitempty"`
	Public      string `yaml:"public,omitempty"`
}

func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading actor directory: %w", err)
	}

	var dir Directory
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("loading actor directory: %w", err)
	}

	if err := validateDirectory(&dir); err != nil {
		return nil, fmt.Errorf("loading actor directory: %w", err)
	}

	dir.index = make(map[string]*ActorRecord)
	for i := range dir.Actors {
		rec := &dir.Actors[i]
		dir.index[rec.Actor] = rec
	}

	return &dir, nil
}

func validateDirectory(d *Directory) error {
	if d.Version != 1 {
		return fmt.Errorf("unsupported version: %d", d.Version)
	}

	seen := make(map[string]struct{})
	for i, rec := range d.Actors {
		if strings.TrimSpace(rec.Actor) == "" {
			return fmt.Errorf("actor %d is missing its actor string", i)
		}
		if !document.ValidActor(rec.Actor) {
			return fmt.Errorf("actor %d has invalid actor string: %s", i, rec.Actor)
		}
		if _, exists := seen[rec.Actor]; exists {
			return fmt.Errorf("duplicate actor: %s", rec.Actor)
		}
		seen[rec.Actor] = struct{}{}

		fingerprints := make(map[string]struct{})
		for _, key := range rec.Keys {
			if !signing.SupportedKeyType(key.Type) {
				return fmt.Errorf("actor %s has key with unsupported type: %s", rec.Actor, key.Type)
			}
			if strings.TrimSpace(key.Fingerprint) == "" {
				return fmt.Errorf("actor %s has key with empty fingerprint", rec.Actor)
			}
			if _, exists := fingerprints[key.Fingerprint]; exists {
				return fmt.Errorf("actor %s has duplicate key: %s", rec.Actor, key.Fingerprint)
			}
			fingerprints[key.Fingerprint] = struct{}{}
		}
	}

	return nil
}

func (d *Directory) Lookup(actor string) (*ActorRecord, bool) {
	if d == nil {
		return nil, false
	}
	rec, ok := d.index[actor]
	return rec, ok
}

// Definitions converts the directory into the form signature verification
// consults.
func (d *Directory) Definitions() map[string]document.ActorDefinition {
	if d == nil {
		return nil
	}
	out := make(map[string]document.ActorDefinition, len(d.Actors))
	for _, rec := range d.Actors {
		def := document.ActorDefinition{Name: rec.Name, Provider: rec.Provider, Model: rec.Model}
		for _, id := range rec.Identities {
			def.Identities = append(def.Identities, document.Identity{System: id.System, ID: id.ID})
		}
		for _, k := range rec.Keys {
			def.Keys = append(def.Keys, document.Key{Type: k.Type, Fingerprint: k.Fingerprint, Href: k.Href, Public: k.Public})
		}
		out[rec.Actor] = def
	}
	return out
}
