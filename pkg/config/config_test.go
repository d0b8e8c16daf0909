package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultGeminiModel, cfg.Gemini.Model)
	assert.Equal(t, DefaultGeminiBaseURL, cfg.Gemini.BaseURL)
	require.NotNil(t, cfg.Gemini.Temperature)
	assert.Equal(t, DefaultTemperature, *cfg.Gemini.Temperature)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("TOOLCHAT_SERVER_PORT", "9191")
	t.Setenv("MY_KEY", "custom-key")

	path := writeFile(t, "toolchat.yaml", `
server:
  port: 7000
database:
  driver: postgres
  dsn: postgres://localhost/toolchat
gemini:
  model: gemini-2.0-flash
  api_key_env: MY_KEY
  temperature: 0
  timeout: 5s
tools:
  execution_timeout: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "env overrides file")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, "custom-key", cfg.Gemini.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Tools.ExecutionTimeout)
	require.NotNil(t, cfg.Gemini.Temperature)
	assert.Equal(t, 0.0, *cfg.Gemini.Temperature, "explicit zero temperature is kept")
	assert.Equal(t, DefaultGeminiBaseURL, cfg.Gemini.BaseURL, "unset fields take defaults")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	temperature := 3.5
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Database.Driver = "mysql"
	cfg.Gemini.Model = ""
	cfg.Gemini.Temperature = &temperature

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "database.driver")
	assert.Contains(t, err.Error(), "gemini.model")
	assert.Contains(t, err.Error(), "gemini.temperature")
}

func TestValidate_WriteTimeoutCoversRequestBudget(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.Server.WriteTimeout, cfg.RequestBudget())
	require.NoError(t, cfg.Validate())

	cfg.Server.WriteTimeout = 3 * time.Minute
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.write_timeout")
}

func TestValidate_MissingAPIKeyIsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gemini.APIKey = ""
	assert.NoError(t, cfg.Validate())
}

func TestSaveConfig_OmitsAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gemini.APIKey = "secret"
	path := filepath.Join(t.TempDir(), "out.yaml")

	require.NoError(t, SaveConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.Gemini.APIKey, "caller's config is not mutated")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Port, loaded.Server.Port)
	assert.Equal(t, cfg.Gemini.Timeout, loaded.Gemini.Timeout)
}
