package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reelforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_UnmarshalsFileAndFillsDefaults(t *testing.T) {
	viper.Reset()
	path := writeConfigFile(t, `
server:
  port: 9191
  request_timeout: 30s
providers:
  image_gen:
    base_url: http://gen.local
    api_key: k-1
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "http://gen.local", cfg.Providers.ImageGen.BaseURL)
	assert.Equal(t, "k-1", cfg.Providers.ImageGen.APIKey)
	// Unset fields fall back to defaults.
	assert.Equal(t, 3, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, "local", cfg.Storage.Mode)
}

func TestLoadConfig_MalformedFileFails(t *testing.T) {
	viper.Reset()
	path := writeConfigFile(t, "server:\n  port: [not a port\n")

	cfg, err := loadConfig(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	viper.Reset()

	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, filepath.Join("data", "reelforge.db"), cfg.Storage.Local.DatabasePath)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	viper.Reset()
	t.Setenv("REELFORGE_PORT", "7070")
	t.Setenv("REELFORGE_DATABASE_PATH", "/tmp/override.db")
	path := writeConfigFile(t, "server:\n  port: 9191\n")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/override.db", cfg.Storage.Local.DatabasePath)
}
