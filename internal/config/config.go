package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Cron      CronConfig      `mapstructure:"cron"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Ingest    string `mapstructure:"ingest"`
	Retention string `mapstructure:"retention"`
}

type TelegramConfig struct {
	BotToken    string  `mapstructure:"bot_token"`
	ChatIDs     []int64 `mapstructure:"chat_ids"`
	BufferLimit int     `mapstructure:"buffer_limit"`
}

type OpenAIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type IngestConfig struct {
	HistoryDays         int           `mapstructure:"history_days"`
	MinMessageLen       int           `mapstructure:"min_message_len"`
	ExcerptLen          int           `mapstructure:"excerpt_len"`
	FallbackTimeout     time.Duration `mapstructure:"fallback_timeout"`
	FallbackMaxAttempts int           `mapstructure:"fallback_max_attempts"`
	FallbackBaseDelay   time.Duration `mapstructure:"fallback_base_delay"`
	FallbackMaxDelay    time.Duration `mapstructure:"fallback_max_delay"`
}

type RetentionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Days    int  `mapstructure:"days"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.ingest", "@every 5m")
	v.SetDefault("cron.retention", "0 0 4 * * *")
	v.SetDefault("telegram.buffer_limit", 10000)
	v.SetDefault("openai.enabled", true)
	v.SetDefault("openai.model", "o3-mini")
	v.SetDefault("ingest.history_days", 30)
	v.SetDefault("ingest.min_message_len", 20)
	v.SetDefault("ingest.excerpt_len", 500)
	v.SetDefault("ingest.fallback_timeout", "30s")
	v.SetDefault("ingest.fallback_max_attempts", 3)
	v.SetDefault("ingest.fallback_base_delay", "2s")
	v.SetDefault("ingest.fallback_max_delay", "30s")
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.days", 30)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
