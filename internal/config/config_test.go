// README: Tests for config defaults, file and env layering, and validation.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tripdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
nlu:
  provider: openai
  model: gpt-4o-mini
  timeout: 20s
dialogue:
  confidence_threshold: 0.6
cities:
  extra: [Lida, Pinsk]
`), 0o644))

	t.Setenv("TRIPDESK_NLU__MODEL", "gpt-4o")
	t.Setenv("TRIPDESK_TELEGRAM__OPERATOR_CHAT_ID", "-100123")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.NLU.Provider)
	assert.Equal(t, "gpt-4o", cfg.NLU.Model)
	assert.Equal(t, 20*time.Second, cfg.NLU.Timeout)
	assert.Equal(t, 10*time.Second, cfg.NLU.ClassifyTimeout)
	assert.InDelta(t, 0.6, cfg.Dialogue.ConfidenceThreshold, 1e-9)
	assert.Equal(t, int64(-100123), cfg.Telegram.OperatorChatID)
	assert.Equal(t, []string{"Lida", "Pinsk"}, cfg.Cities.Extra)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Addr, cfg.HTTP.Addr)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("TRIPDESK_SESSION__BACKEND", "redis")
	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "redis.addr")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"threshold", func(c *Config) { c.Dialogue.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"provider", func(c *Config) { c.NLU.Provider = "claude" }, "nlu.provider"},
		{"backend", func(c *Config) { c.Session.Backend = "disk" }, "session.backend"},
		{"postgres without dsn", func(c *Config) { c.Session.Backend = BackendPostgres }, "db.dsn"},
		{"timeout too short", func(c *Config) { c.NLU.Timeout = 100 * time.Millisecond }, "nlu.timeout"},
		{"timeout too long", func(c *Config) { c.Routes.Timeout = 2 * time.Minute }, "routes.timeout"},
		{"timezone", func(c *Config) { c.Dialogue.Timezone = "Mars/Olympus" }, "dialogue.timezone"},
		{"turn shorter than nlu", func(c *Config) { c.HTTP.ChatTimeout = 20 * time.Second }, "http.chat_timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "nlu.api_key", envKey("TRIPDESK_NLU__API_KEY"))
	assert.Equal(t, "http.addr", envKey("TRIPDESK_HTTP__ADDR"))
}
