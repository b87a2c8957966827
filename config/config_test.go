package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/scribe/errors"
)

func TestLoadFromBytes_Defaults(t *testing.T) {
	t.Setenv("SCRIBE_HOME", t.TempDir())
	t.Setenv("SCRIBE_SOCKET", "")
	t.Setenv("SCRIBE_ADDRESS", "")

	cfg, err := LoadFromBytes([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, TransportSSE, cfg.Backend.Transport)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "download", cfg.Streams.Download)
	assert.Equal(t, "chat_message_chunk", cfg.Streams.Chat)
	assert.Equal(t, "summarization_progress", cfg.Streams.Progress)
	assert.Equal(t, 5*time.Second, cfg.Errors.TTL)
	assert.Equal(t, []errors.Kind{errors.KindNotFound, errors.KindInvalidInput}, cfg.Errors.Suppress)
	assert.NotEmpty(t, cfg.Backend.Socket)
	assert.NotEmpty(t, cfg.Settings.Path)
	require.NotNil(t, cfg.Settings.Watch)
	assert.True(t, *cfg.Settings.Watch)
}

func TestLoadFromBytes_Values(t *testing.T) {
	t.Setenv("SCRIBE_SOCKET", "")
	t.Setenv("SCRIBE_ADDRESS", "")
	t.Setenv("SCRIBE_TEST_PORT", "7777")

	cfg, err := LoadFromBytes([]byte(`
backend:
  address: 127.0.0.1:${SCRIBE_TEST_PORT}
  transport: websocket
  timeout: 3s
streams:
  chat: chat_tokens
errors:
  ttl: 2s
  suppress: [NOT_FOUND]
logging:
  level: debug
  format:
    preset: json
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7777", cfg.Backend.Address)
	assert.Empty(t, cfg.Backend.Socket, "an explicit address disables the default socket")
	assert.Equal(t, TransportWebSocket, cfg.Backend.Transport)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "chat_tokens", cfg.Streams.Chat)
	assert.Equal(t, "download", cfg.Streams.Download)
	assert.Equal(t, 2*time.Second, cfg.Errors.TTL)
	assert.Equal(t, []errors.Kind{errors.KindNotFound}, cfg.Errors.Suppress)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format.Preset)
}

func TestLoadFromBytes_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "backend:\n  sockett: /tmp/x\n"},
		{"bad transport", "backend:\n  transport: carrier-pigeon\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"unknown suppress code", "errors:\n  suppress: [TEAPOT]\n"},
		{"not yaml", "backend: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.KindInvalidInput), "got %v", err)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCRIBE_SOCKET", "/run/custom.sock")
	t.Setenv("SCRIBE_ADDRESS", "")

	path := filepath.Join(t.TempDir(), "scribe.yml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  socket: /ignored.sock\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/run/custom.sock", cfg.Backend.Socket)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindIOError))
}

func TestFindConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCRIBE_HOME", home)
	t.Setenv("SCRIBE_CONFIG", "")

	assert.Equal(t, "", FindConfigFile(""))
	assert.Equal(t, "/explicit.yml", FindConfigFile("/explicit.yml"))

	xdg := filepath.Join(home, "config", "scribe.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(xdg), 0o755))
	require.NoError(t, os.WriteFile(xdg, []byte(""), 0o644))
	assert.Equal(t, xdg, FindConfigFile(""))

	env := filepath.Join(t.TempDir(), "env.yml")
	require.NoError(t, os.WriteFile(env, []byte(""), 0o644))
	t.Setenv("SCRIBE_CONFIG", env)
	assert.Equal(t, env, FindConfigFile(""))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "Scribe Client Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"backend", "streams", "errors", "settings", "logging"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, props, "level", "logging fields belong under logging")
	assert.Equal(t, false, schema["additionalProperties"])
}

func TestSchemaValidator_AcceptsLoadedConfig(t *testing.T) {
	t.Setenv("SCRIBE_SOCKET", "")
	t.Setenv("SCRIBE_ADDRESS", "")

	v, err := NewSchemaValidator()
	require.NoError(t, err)
	assert.NoError(t, v.Validate(&Config{}))
	assert.NoError(t, v.Validate(Default()))

	path := filepath.Join(t.TempDir(), "scribe.yml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  address: 127.0.0.1:7777\nlogging:\n  level: warn\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)

	data, err := json.Marshal(Default())
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))
	doc["logging"] = map[string]interface{}{"level": "loud"}
	assert.Error(t, v.Validate(doc), "nested logging section is still validated")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SCRIBE_X", "set")
	assert.Equal(t, "a=set b=fallback c=", expandEnvVars("a=${SCRIBE_X} b=${SCRIBE_UNSET:-fallback} c=${SCRIBE_UNSET}"))
}
