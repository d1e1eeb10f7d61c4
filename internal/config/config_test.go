package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:4000/anthropic", cfg.LLM.BaseURL)
	assert.Equal(t, "claude-sonnet-4.5", cfg.LLM.Model)
	assert.Equal(t, "dummy", cfg.LLM.APIKey.Value())
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, RoutingSingle, cfg.Routing.Mode)
	assert.Equal(t, CheckpointMemory, cfg.Checkpoint.Backend)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
llm:
  provider: openai
  base_url: http://localhost:4000/v1
  model: gpt-4o
  timeout: 30s
  rate_limit: 2
projects:
  dir: /srv/projects
checkpoint:
  backend: sqlite
  path: /tmp/agentgraph.db
routing:
  mode: loop
  max_steps: 4
server:
  http_port: 8088
logging:
  level: debug
  fields:
    env: test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout.Duration())
	assert.InDelta(t, 2.0, cfg.LLM.RateLimit, 1e-9)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens, "unset keys keep defaults")
	assert.Equal(t, "/srv/projects", cfg.Projects.Dir)
	assert.Equal(t, CheckpointSQLite, cfg.Checkpoint.Backend)
	assert.Equal(t, RoutingLoop, cfg.Routing.Mode)
	assert.Equal(t, 4, cfg.Routing.MaxSteps)
	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"env": "test"}, cfg.Logging.Fields)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "llm:\n  model: from-file\n")

	t.Setenv("LLM_MODEL", "from-env")
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("ROUTING_MAX_STEPS", "3")
	t.Setenv("SERVER_HTTP_PORT", "7070")
	t.Setenv("UNRELATED_SETTING", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey.Value())
	assert.Equal(t, 3, cfg.Routing.MaxSteps)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("legacy names apply", func(t *testing.T) {
		t.Setenv("LM_PROXY_URL", "http://proxy:4000/anthropic")
		t.Setenv("MODEL_NAME", "claude-legacy")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "http://proxy:4000/anthropic", cfg.LLM.BaseURL)
		assert.Equal(t, "claude-legacy", cfg.LLM.Model)
	})

	t.Run("section form wins", func(t *testing.T) {
		t.Setenv("LM_PROXY_URL", "http://proxy:4000/anthropic")
		t.Setenv("LLM_BASE_URL", "http://other:5000/anthropic")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "http://other:5000/anthropic", cfg.LLM.BaseURL)
	})
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"provider", "llm:\n  provider: cohere\n", "llm.provider"},
		{"base url", "llm:\n  base_url: localhost\n", "llm.base_url"},
		{"routing mode", "routing:\n  mode: mesh\n", "routing.mode"},
		{"max steps", "routing:\n  max_steps: 0\n", "routing.max_steps"},
		{"checkpoint backend", "checkpoint:\n  backend: redis\n", "checkpoint.backend"},
		{"port", "server:\n  http_port: 70000\n", "invalid server port"},
		{"duration", "llm:\n  timeout: soon\n", "unmarshal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.yaml)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	big := "llm:\n  model: " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, t.TempDir(), big)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"LLM_BASE_URL":      "llm.base_url",
		"ROUTING_MAX_STEPS": "routing.max_steps",
		"SERVER_HTTP_PORT":  "server.http_port",
		"HOME":              "",
		"GOPATH_EXTRA":      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestSecret_Redacted(t *testing.T) {
	s := Secret("sk-ant-123")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "sk-ant-123", s.Value())

	raw, err := json.Marshal(Default().LLM)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dummy")
	assert.Contains(t, string(raw), `"2m0s"`)
}
