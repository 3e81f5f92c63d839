// README: Config loader; defaults, then an optional YAML file, then TRIPDESK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TRIPDESK_"

var ErrInvalid = errors.New("invalid config")

func Default() *Config {
	return &Config{
		HTTP:    HTTPConfig{Addr: ":8080", ChatTimeout: 45 * time.Second},
		SQLite:  SQLiteConfig{Path: "tripdesk.db"},
		Session: SessionConfig{Backend: BackendMemory, TTL: 2 * time.Hour, SweepInterval: 10 * time.Minute},
		NLU: NLUConfig{
			Provider:        ProviderGemini,
			Timeout:         30 * time.Second,
			ClassifyTimeout: 10 * time.Second,
		},
		Dialogue: DialogueConfig{
			ConfidenceThreshold: 0.5,
			GreetInterval:       2 * time.Hour,
			Timezone:            "Europe/Moscow",
			CityCacheSize:       512,
		},
		Routes: RoutesConfig{Timeout: 15 * time.Second},
		Usage:  UsageConfig{MonthlyQuota: 300},
		Log:    LogConfig{Level: "info", Format: "json", MaxSizeMB: 64, MaxBackups: 3, MaxAgeDays: 14},
	}
}

// Load reads .env (if any), the YAML file at path (if it exists) and TRIPDESK_* variables.
// Nested keys use a double underscore: TRIPDESK_NLU__API_KEY sets nlu.api_key.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if t := c.Dialogue.ConfidenceThreshold; t < 0 || t > 1 {
		bad("dialogue.confidence_threshold %v outside [0,1]", t)
	}
	switch c.NLU.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		bad("unknown nlu.provider %q: must be one of gemini, openai, ollama", c.NLU.Provider)
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			bad("session.backend=redis requires redis.addr")
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			bad("session.backend=postgres requires db.dsn")
		}
	default:
		bad("unknown session.backend %q: must be one of memory, redis, postgres", c.Session.Backend)
	}
	for name, d := range map[string]time.Duration{
		"nlu.timeout":          c.NLU.Timeout,
		"nlu.classify_timeout": c.NLU.ClassifyTimeout,
		"routes.timeout":       c.Routes.Timeout,
	} {
		if d < time.Second || d > time.Minute {
			bad("%s %s outside 1s-60s", name, d)
		}
	}
	if c.HTTP.ChatTimeout <= c.NLU.Timeout {
		bad("http.chat_timeout %s must exceed nlu.timeout %s", c.HTTP.ChatTimeout, c.NLU.Timeout)
	}
	if c.Session.TTL <= 0 {
		bad("session.ttl must be positive")
	}
	if c.Usage.MonthlyQuota < 0 {
		bad("usage.monthly_quota must be non-negative")
	}
	if _, err := time.LoadLocation(c.Dialogue.Timezone); err != nil {
		bad("dialogue.timezone %q: %v", c.Dialogue.Timezone, err)
	}
	return errors.Join(errs...)
}

// Location returns the configured dialogue timezone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Dialogue.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
