package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://api.meallensai.com/api/v1", cfg.APIURL)
	assert.Equal(t, "https://ai.meallensai.com", cfg.AIURL)
	assert.Equal(t, Duration(10*time.Second), cfg.Timeout)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"api_url: https://staging.meallensai.com\ntimeout: 30s\ndebug: true\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.meallensai.com", cfg.APIURL)
	assert.Equal(t, Duration(30*time.Second), cfg.Timeout)
	assert.True(t, cfg.Debug)

	// Unset fields keep their defaults.
	assert.Equal(t, "https://ai.meallensai.com", cfg.AIURL)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().APIURL, cfg.APIURL)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [not a duration"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEALLENS_API_URL", "https://env.meallensai.com")
	t.Setenv("MEALLENS_TIMEOUT", "45s")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.meallensai.com", cfg.APIURL)
	assert.Equal(t, Duration(45*time.Second), cfg.Timeout)
}

func TestLoad_InvalidEnvTimeoutIgnored(t *testing.T) {
	t.Setenv("MEALLENS_TIMEOUT", "soon")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Duration(10*time.Second), cfg.Timeout)
}
