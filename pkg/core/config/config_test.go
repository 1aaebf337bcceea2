package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1.0, cfg.Validation.Tolerance)
	assert.Equal(t, 0.1, cfg.Validation.ComponentTolerance)
	assert.Equal(t, 3, cfg.Extraction.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Extraction.Timeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noi.yaml")
	yamlBody := `
server:
  addr: ":9090"
extraction:
  url: "https://extract.example.com"
  max_retries: 5
logging:
  level: debug
validation:
  tolerance: 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://extract.example.com", cfg.Extraction.URL)
	assert.Equal(t, 5, cfg.Extraction.MaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2.5, cfg.Validation.Tolerance)
	assert.Equal(t, 0.1, cfg.Validation.ComponentTolerance, "unset keys keep defaults")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"EXTRACTION_API_URL": "https://svc.example.com",
		"EXTRACTION_API_KEY": "secret",
		"API_TIMEOUT":        "30",
		"API_MAX_RETRIES":    "1",
		"DATABASE_URL":       "postgres://localhost/noi",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "https://svc.example.com", cfg.Extraction.URL)
	assert.Equal(t, "secret", cfg.Extraction.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 1, cfg.Extraction.MaxRetries)
	assert.Equal(t, "postgres://localhost/noi", cfg.Storage.DatabaseURL)

	env["API_TIMEOUT"] = "soon"
	assert.Error(t, Default().applyEnv(lookup))
}
