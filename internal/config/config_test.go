package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"toolpath/internal/signing"
)

func TestLoad(t *testing.T) {
	t.Run("valid config loads", func(t *testing.T) {
		path := writeTempFile(t, "toolpath.yaml", `version: 1
store:
  dsn: sqlite://./toolpath.db
verify:
  require: [step/author, path/reviewer]
signing:
  signer: human:alex
  key_type: ssh
  key_file: ./keys/alex
output:
  pretty: true
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Store.DSN != "sqlite://./toolpath.db" || !cfg.Output.Pretty {
			t.Fatalf("unexpected config %#v", cfg)
		}
		want := []signing.Requirement{signing.RequireStepAuthor, signing.RequirePathReviewer}
		if !reflect.DeepEqual(cfg.Requirements(), want) {
			t.Fatalf("expected %v, got %v", want, cfg.Requirements())
		}
		if cfg.Store.CacheSize != 256 {
			t.Fatalf("expected default cache size, got %d", cfg.Store.CacheSize)
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		path := writeTempFile(t, "toolpath.yaml", "version: 2\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unknown requirement", func(t *testing.T) {
		path := writeTempFile(t, "toolpath.yaml", "version: 1\nverify:\n  require: [graph/owner]\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unsupported key type", func(t *testing.T) {
		path := writeTempFile(t, "toolpath.yaml", "version: 1\nsigning:\n  key_type: rot13\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unsupported dsn", func(t *testing.T) {
		path := writeTempFile(t, "toolpath.yaml", "version: 1\nstore:\n  dsn: mysql://localhost/x\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("env overrides dsn", func(t *testing.T) {
		t.Setenv(EnvStoreDSN, "postgres://localhost/toolpath")
		path := writeTempFile(t, "toolpath.yaml", "version: 1\nstore:\n  dsn: sqlite://./a.db\n")
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Store.DSN != "postgres://localhost/toolpath" {
			t.Fatalf("expected env dsn, got %q", cfg.Store.DSN)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeTempFile(t, "toolpath.yaml", "version: [\n")
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected defaults, got %v", err)
	}
	if cfg.Version != 1 || cfg.Signing.KeyType != signing.KeyTypeEd25519 {
		t.Fatalf("unexpected defaults %#v", cfg)
	}

	path := writeTempFile(t, "toolpath.yaml", "version: 3\n")
	if _, err := LoadOrDefault(path); err == nil {
		t.Fatalf("expected validation error for existing file")
	}
}

func TestStoreDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite://./x.db":           "sqlite",
		"file:x.db?mode=memory":     "sqlite",
		"postgres://localhost/db":   "postgres",
		"postgresql://localhost/db": "postgres",
		"neo4j://localhost:7687":    "neo4j",
		"bolt+s://db.example:7687":  "neo4j",
	}
	for dsn, want := range cases {
		got, err := StoreDriver(dsn)
		if err != nil || got != want {
			t.Fatalf("%s: expected %s, got %s (%v)", dsn, want, got, err)
		}
	}
	if _, err := StoreDriver("redis://x"); err == nil {
		t.Fatalf("expected error")
	}
}

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
