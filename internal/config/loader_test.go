package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "restroommap.yaml")

	configContent := `
api:
  baseURL: https://restrooms.example.com/api
  defaultRadius: 2.5
retry:
  read:
    maxRetries: 4
    initialDelay: 500ms
    maxDelay: 10s
    jitter: false
dedup:
  ttl: 15s
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	cfg, err := NewLoader().Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://restrooms.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 2.5, cfg.API.DefaultRadius)
	assert.Equal(t, 4, cfg.Retry.Read.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.Read.InitialDelay.Duration())
	assert.False(t, cfg.Retry.Read.Jitter)
	assert.Equal(t, 15*time.Second, cfg.Dedup.TTL.Duration())

	// untouched sections keep their defaults
	assert.Equal(t, 2, cfg.Retry.Mutation.MaxRetries)
	assert.Equal(t, 100, cfg.API.ListLimit)
	assert.Equal(t, "_t", cfg.Dedup.BucketParam)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoader_LoadFromReader_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("api: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoader_LoadFromReader_InvalidDuration(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("dedup:\n  ttl: soon\n"))
	assert.Error(t, err)
}

func TestLoader_LoadFromReader_ValidationFailure(t *testing.T) {
	t.Parallel()

	content := `
retry:
  mutation:
    initialDelay: 5s
    maxDelay: 1s
`
	_, err := LoadConfigFromReader(strings.NewReader(content))
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "retry.mutation.maxDelay", verrs[0].Path)
}

func TestLoader_SubstituteEnvVars(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"API_URL": "https://api.example.com",
		"EMPTY":   "",
	}
	loader := &Loader{lookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set variable", input: "url: ${API_URL}", want: "url: https://api.example.com"},
		{name: "missing with default", input: "level: ${LOG_LEVEL:-debug}", want: "level: debug"},
		{name: "missing without default", input: "x: ${MISSING}", want: "x: "},
		{name: "set but empty ignores default", input: "x: ${EMPTY:-fallback}", want: "x: "},
		{name: "escaped dollar", input: "price: $$5", want: "price: $5"},
		{name: "no variables", input: "plain: text", want: "plain: text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, loader.substituteEnvVars(tt.input))
		})
	}
}

func TestLoader_EnvVarsInConfig(t *testing.T) {
	t.Parallel()

	loader := &Loader{lookupEnv: func(k string) (string, bool) {
		if k == "RESTROOMMAP_API_URL" {
			return "http://backend:9000/api", true
		}
		return "", false
	}}

	cfg, err := loader.LoadFromReader(strings.NewReader(
		"api:\n  baseURL: ${RESTROOMMAP_API_URL:-http://localhost:8000/api}\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000/api", cfg.API.BaseURL)
}

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("{}"), 0o600))

	got, err := ResolveConfigPath(configPath)
	require.NoError(t, err)
	assert.Equal(t, configPath, got)

	_, err = ResolveConfigPath(filepath.Join(tmpDir, "missing.yaml"))
	assert.Error(t, err)
}
