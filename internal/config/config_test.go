package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test in an empty directory so no stray config.yaml or
// .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.Agent.Provider)
	assert.Equal(t, time.Second, cfg.OpenAI.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.MaxWait)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("AGENT_PROVIDER", "ollama")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434")
	t.Setenv("ASSISTANT_POLL_INTERVAL", "250ms")
	t.Setenv("ASSISTANT_MAX_WAIT", "30s")
	t.Setenv("WORKER_COUNT", "4")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.Agent.Provider)
	assert.Equal(t, "http://ollama:11434", cfg.Ollama.Host)
	assert.Equal(t, 250*time.Millisecond, cfg.OpenAI.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.MaxWait)
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openai:
  api_key: from-file
  model: gpt-file
database:
  path: /data/file.db
`), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("OPENAI_MODEL", "gpt-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-env", cfg.OpenAI.Model)
	assert.Equal(t, "/data/file.db", cfg.Database.Path)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0o600))
	// godotenv never overrides variables that are already set; make sure it
	// is unset for this test and restored afterwards.
	t.Setenv("OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("OPENAI_API_KEY"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.OpenAI.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.OpenAI.APIKey = "" }, wantErr: "OPENAI_API_KEY"},
		{name: "unknown provider", mutate: func(c *Config) { c.Agent.Provider = "bard" }, wantErr: "unknown agent provider"},
		{name: "max wait below poll", mutate: func(c *Config) { c.OpenAI.MaxWait = 10 * time.Millisecond }, wantErr: "max wait"},
		{name: "write timeout too short", mutate: func(c *Config) { c.Server.WriteTimeout = 30 * time.Second }, wantErr: "write timeout"},
		{name: "retries out of range", mutate: func(c *Config) { c.OpenAI.MaxRetries = 0 }, wantErr: "max retries"},
		{name: "no workers", mutate: func(c *Config) { c.Worker.Count = 0 }, wantErr: "worker count"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.OpenAI.APIKey = "sk-test"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
