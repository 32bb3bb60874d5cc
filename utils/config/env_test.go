package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvConfigAppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.env")

	content := `providers:
  openai:
    api_key: sk-test
    models:
      - name: gpt-4o-mini
        type: external
store:
  driver: sqlite
  dsn: sessions.db
gateway:
  timeout: 15s
`
	require.NoError(t, os.WriteFile(testFile, []byte(content), 0600))

	cfg, err := LoadEnvConfig(testFile)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "sessions.db", cfg.Store.DSN)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, DefaultBatchItems, cfg.Batch.MaxItems)
	assert.Equal(t, DefaultMaxIterations, cfg.Workflow.MaxIterations)
	assert.Equal(t, DefaultGenerationModel, cfg.Workflow.InferenceModel)
	assert.Equal(t, []string{"gpt-4o-mini"}, cfg.ConfiguredModels())
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.env")

	cfg := NewEnvConfig()
	cfg.AddProvider("anthropic", Provider{APIKey: "key"})
	require.NoError(t, cfg.AddModelToProvider("anthropic", Model{Name: "claude-3-5-haiku-latest", Type: "external"}))
	cfg.Workflow.MaxIterations = 5

	require.NoError(t, SaveEnvConfig(testFile, cfg))

	loaded, err := LoadEnvConfig(testFile)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Workflow.MaxIterations)
	assert.Equal(t, DefaultGatewayTimeout, loaded.Gateway.Timeout)

	p, err := loaded.GetProviderConfig("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "key", p.APIKey)
	assert.Len(t, p.Models, 1)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultStoreDriver, cfg.Store.Driver)
	assert.Equal(t, DefaultStoreDir, cfg.Store.Dir)
}

func TestModelManagement(t *testing.T) {
	cfg := NewEnvConfig()

	err := cfg.AddModelToProvider("missing", Model{Name: "x"})
	assert.Error(t, err)

	cfg.AddProvider("openai", Provider{})
	require.NoError(t, cfg.AddModelToProvider("openai", Model{Name: "gpt-4o"}))
	assert.Error(t, cfg.AddModelToProvider("openai", Model{Name: "gpt-4o"}), "duplicate model")

	require.NoError(t, cfg.RemoveModelFromProvider("openai", "gpt-4o"))
	assert.Error(t, cfg.RemoveModelFromProvider("openai", "gpt-4o"))

	require.NoError(t, cfg.UpdateAPIKey("openai", "new-key"))
	assert.Equal(t, "new-key", cfg.Providers["openai"].APIKey)
}

func TestAPIKeyPrefersEnvironment(t *testing.T) {
	cfg := NewEnvConfig()
	cfg.AddProvider("openai", Provider{APIKey: "from-file"})

	t.Setenv("OPENAI_API_KEY", "")
	assert.Equal(t, "from-file", cfg.APIKey("openai"))

	t.Setenv("OPENAI_API_KEY", "from-env")
	assert.Equal(t, "from-env", cfg.APIKey("openai"))

	assert.Equal(t, "", cfg.APIKey("unknown"))
}

func TestGetEnvPath(t *testing.T) {
	t.Setenv("SUMMAPROMPT_ENV", "")
	assert.Equal(t, ".env", GetEnvPath())

	t.Setenv("SUMMAPROMPT_ENV", "/tmp/custom.env")
	assert.Equal(t, "/tmp/custom.env", GetEnvPath())
}

func TestMockMode(t *testing.T) {
	t.Setenv("SUMMAPROMPT_MODE", "mock")
	assert.True(t, MockMode())
	t.Setenv("SUMMAPROMPT_MODE", "")
	assert.False(t, MockMode())
}

func TestGenerateBearerToken(t *testing.T) {
	a, err := GenerateBearerToken()
	require.NoError(t, err)
	b, err := GenerateBearerToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
