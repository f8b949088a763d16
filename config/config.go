// Package config loads keytool settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ruteri/keymaster/interfaces"
	"github.com/ruteri/keymaster/primitives"
)

// Config is the on-disk configuration.
type Config struct {
	// ApplicationIdentity prefixes persona item ids, e.g. "com.example.app".
	ApplicationIdentity string `yaml:"application_identity"`
	// KDF names the derivation suite, see primitives.Names.
	KDF string `yaml:"kdf"`
	// Stores are secret store URIs, consulted in order.
	Stores []string  `yaml:"stores"`
	Log    LogConfig `yaml:"log"`
}

// LogConfig mirrors the logging flags.
type LogConfig struct {
	JSON    bool   `yaml:"json"`
	Debug   bool   `yaml:"debug"`
	Service string `yaml:"service"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		KDF:    primitives.BLAKE2bName,
		Stores: []string{"keyring://"},
		Log: LogConfig{
			Service: "keytool",
		},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".keymaster", "config.yaml")
}

// Load reads the configuration from path, layering it over Default. A
// missing file at the default path yields the defaults; a missing file that
// was asked for explicitly is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration with owner-only permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks that the configuration can build a key store.
func (c *Config) Validate() error {
	if err := interfaces.ValidateApplicationIdentity(c.ApplicationIdentity); err != nil {
		return err
	}
	if _, err := primitives.Lookup(c.KDF); err != nil {
		return err
	}
	if len(c.Stores) == 0 {
		return errors.New("at least one store is required")
	}
	for _, uri := range c.Stores {
		if _, err := interfaces.NewStoreLocation(uri); err != nil {
			return err
		}
	}
	return nil
}

// Suite resolves the configured derivation suite.
func (c *Config) Suite() (primitives.Suite, error) {
	return primitives.Lookup(c.KDF)
}
