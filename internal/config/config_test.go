package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes a variable for the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, "CONFIG_PATH")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/unboxed")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, int32(25), cfg.Database.MaxConnections)
	assert.Equal(t, "text-embedding-ada-002", cfg.LLM.EmbeddingModel)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLM.ChatModel)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 1000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 5, cfg.Pipeline.ContextLimit)
	assert.Equal(t, "rule", cfg.Anonymizer.Classifier)
}

func TestLoadEnvOverrides(t *testing.T) {
	unsetEnv(t, "CONFIG_PATH")
	t.Setenv("DATABASE_URL", "postgres://db:5432/app")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9100")
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("CLASSIFIER", "llm")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 512, cfg.Pipeline.ChunkSize)
	assert.Equal(t, "llm", cfg.Anonymizer.Classifier)
	assert.Equal(t, "postgres://db:5432/app", cfg.Database.URL)
}

func TestLoadMissingRequired(t *testing.T) {
	unsetEnv(t, "CONFIG_PATH")
	unsetEnv(t, "DATABASE_URL")
	unsetEnv(t, "OPENAI_API_KEY")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
log_level: debug
server:
  port: 8500
database:
  url: postgres://file:5432/app
llm:
  api_key: sk-file
pipeline:
  context_limit: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CONFIG_PATH", path)
	unsetEnv(t, "DATABASE_URL")
	unsetEnv(t, "OPENAI_API_KEY")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8500, cfg.Server.Port)
	assert.Equal(t, "postgres://file:5432/app", cfg.Database.URL)
	assert.Equal(t, 3, cfg.Pipeline.ContextLimit)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
