// README: Configuration types for the tripdesk service.
package config

import "time"

type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	DB       DBConfig       `koanf:"db"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Redis    RedisConfig    `koanf:"redis"`
	Session  SessionConfig  `koanf:"session"`
	NLU      NLUConfig      `koanf:"nlu"`
	Dialogue DialogueConfig `koanf:"dialogue"`
	Routes   RoutesConfig   `koanf:"routes"`
	Telegram TelegramConfig `koanf:"telegram"`
	Operator OperatorConfig `koanf:"operator"`
	Usage    UsageConfig    `koanf:"usage"`
	Log      LogConfig      `koanf:"log"`
	Cities   CitiesConfig   `koanf:"cities"`
}

type HTTPConfig struct {
	Addr        string        `koanf:"addr"`
	ChatTimeout time.Duration `koanf:"chat_timeout"`
}

type DBConfig struct {
	DSN string `koanf:"dsn"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type NLUConfig struct {
	Provider        string        `koanf:"provider"`
	Model           string        `koanf:"model"`
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	Timeout         time.Duration `koanf:"timeout"`
	ClassifyTimeout time.Duration `koanf:"classify_timeout"`
}

type DialogueConfig struct {
	ConfidenceThreshold float64       `koanf:"confidence_threshold"`
	GreetInterval       time.Duration `koanf:"greet_interval"`
	Timezone            string        `koanf:"timezone"`
	CityCacheSize       int           `koanf:"city_cache_size"`
}

type RoutesConfig struct {
	Timeout          time.Duration `koanf:"timeout"`
	MapsAPIKey       string        `koanf:"maps_api_key"`
	AtlasBaseURL     string        `koanf:"atlas_base_url"`
	AviasalesBaseURL string        `koanf:"aviasales_base_url"`
}

type TelegramConfig struct {
	Token          string `koanf:"token"`
	OperatorToken  string `koanf:"operator_token"`
	OperatorChatID int64  `koanf:"operator_chat_id"`
}

type OperatorConfig struct {
	FirebaseProjectID string `koanf:"firebase_project_id"`
	CredentialsFile   string `koanf:"credentials_file"`
	CheckRevoked      bool   `koanf:"check_revoked"`
}

type UsageConfig struct {
	MonthlyQuota int `koanf:"monthly_quota"`
}

type LogConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"` // json or console
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

type CitiesConfig struct {
	Extra []string `koanf:"extra"`
}
