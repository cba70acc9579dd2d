package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphersql/cyphersql/config"
)

func TestFindConfigWalksUpToParentDirectory(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(child, 0o755))

	cfgPath := filepath.Join(root, ".cyphersql.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_hops: 5\n"), 0o644))

	found, err := config.FindConfig(child)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, found)
}

func TestFindConfigReturnsErrConfigNotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := config.FindConfig(dir)
	assert.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".cyphersql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_hops: 3\noutput_format: json\n"), 0o644))

	cfg, err := config.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxHops)
	assert.Equal(t, "json", cfg.OutputFormat)
}

func TestLoadFallsBackToDefaultsWithoutAConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default().MaxHops, cfg.MaxHops)
	assert.Equal(t, config.Default().OutputFormat, cfg.OutputFormat)
}

func TestLoadEnvironmentOverridesFileValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".cyphersql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_hops: 3\n"), 0o644))

	t.Setenv("CYPHERSQL_MAX_HOPS", "7")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxHops)
}
