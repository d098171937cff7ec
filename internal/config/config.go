package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"toolpath/internal/signing"
)

// DefaultPath is where commands look for the project config.
const DefaultPath = "toolpath.yaml"

// EnvStoreDSN overrides store.dsn when set.
const EnvStoreDSN = "TOOLPATH_STORE_DSN"

// DefaultStoreDSN is the archive used when none is configured.
const DefaultStoreDSN = "sqlite://./toolpath.db"

type Config struct {
	Version int           `yaml:"version"`
	Store   StoreConfig   `yaml:"store"`
	Verify  VerifyConfig  `yaml:"verify"`
	Signing SigningConfig `yaml:"signing"`
	Output  OutputConfig  `yaml:"output"`
	// Actors names a trusted actor directory file consulted after the
	// directories inside a document.
	Actors string `yaml:"actors"`
}

type StoreConfig struct {
	DSN       string `yaml:"dsn"`
	CacheSize int    `yaml:"cache_size"`
}

type VerifyConfig struct {
	Require []string `yaml:"require"`
}

type SigningConfig struct {
	Signer  string `yaml:"signer"`
	KeyType string `yaml:"key_type"`
	KeyFile string `yaml:"key_file"`
}

type OutputConfig struct {
	Pretty bool `yaml:"pretty"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version: 1,
		Store:   StoreConfig{DSN: DefaultStoreDSN, CacheSize: 256},
		Verify:  VerifyConfig{Require: []string{string(signing.RequireStepAuthor)}},
		Signing: SigningConfig{KeyType: signing.KeyTypeEd25519},
	}
}

// Load reads and validates the config at path. Environment overrides from
// the process and a .env file in the working directory are applied on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyEnv(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		applyEnv(cfg)
		return cfg, validateConfig(cfg)
	}
	return cfg, err
}

func applyEnv(cfg *Config) {
	_ = godotenv.Load()
	if dsn := strings.TrimSpace(os.Getenv(EnvStoreDSN)); dsn != "" {
		cfg.Store.DSN = dsn
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if dsn := strings.TrimSpace(cfg.Store.DSN); dsn != "" {
		if _, err := StoreDriver(dsn); err != nil {
			return err
		}
	}
	if cfg.Store.CacheSize < 0 {
		return fmt.Errorf("store cache_size must not be negative")
	}
	if _, err := signing.ParseRequirements(cfg.Verify.Require); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if kt := cfg.Signing.KeyType; kt != "" && !signing.SupportedKeyType(kt) {
		return fmt.Errorf("signing: unsupported key type: %s", kt)
	}
	return nil
}

// StoreDriver returns the archive backend named by the DSN scheme.
func StoreDriver(dsn string) (string, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "file:"):
		return "sqlite", nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", nil
	case strings.HasPrefix(dsn, "neo4j://"), strings.HasPrefix(dsn, "neo4j+"),
		strings.HasPrefix(dsn, "bolt://"), strings.HasPrefix(dsn, "bolt+"):
		return "neo4j", nil
	}
	return "", fmt.Errorf("unsupported store dsn: %s", dsn)
}

// Requirements returns the parsed verify.require list.
func (c *Config) Requirements() []signing.Requirement {
	reqs, _ := signing.ParseRequirements(c.Verify.Require)
	return reqs
}
