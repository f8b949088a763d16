package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/keymaster/interfaces"
	"github.com/ruteri/keymaster/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
application_identity: com.example.app
kdf: blake3
stores:
  - keyring://com.example.
  - file:///var/lib/keymaster?age-identity=/etc/keymaster/identity.txt
log:
  json: true
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "com.example.app", cfg.ApplicationIdentity)
	assert.Len(t, cfg.Stores, 2)
	assert.True(t, cfg.Log.JSON)
	// Omitted keys keep their defaults.
	assert.Equal(t, "keytool", cfg.Log.Service)

	suite, err := cfg.Suite()
	require.NoError(t, err)
	assert.Equal(t, primitives.BLAKE3Name, suite.Name())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stores: {not: [a list"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.ApplicationIdentity = "com.example.app"

	require.NoError(t, Save(path, cfg))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.ApplicationIdentity = "com.example.app"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		is     error
	}{
		{name: "missing identity", mutate: func(c *Config) { c.ApplicationIdentity = "" }},
		{name: "identity with slash", mutate: func(c *Config) { c.ApplicationIdentity = "a/b" }},
		{name: "unknown kdf", mutate: func(c *Config) { c.KDF = "md5" }},
		{name: "no stores", mutate: func(c *Config) { c.Stores = nil }},
		{name: "bad store", mutate: func(c *Config) { c.Stores = []string{"ftp://host"} }, is: interfaces.ErrInvalidLocationURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}
