package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[store]
backend = "memgraph"

[chains]
character_label = "Char"
token_pattern = '\s'
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memgraph", cfg.Store.Backend)
	assert.Equal(t, "Char", cfg.Chains.CharacterLabel)
	assert.Equal(t, `\s`, cfg.Chains.TokenPattern)
	assert.Equal(t, "Token", cfg.Chains.TokenLabel)
	assert.Equal(t, "HAS_ANNOTATION", cfg.Annotations.Relationship)
	assert.Equal(t, "/TEI/text/body//node()", cfg.Annotations.XPath)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ATAG_STORE", "memgraph")
	t.Setenv("MEMGRAPH_URI", "bolt://graph:7687")
	t.Setenv("LOG_LEVEL", "")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memgraph", cfg.Store.Backend)
	assert.Equal(t, "bolt://graph:7687", cfg.Memgraph.URI)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Store.Backend = "sqlite"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Chains.IdentityKey = ""
	assert.Error(t, cfg.Validate())
}
