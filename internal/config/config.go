// Package config loads application configuration from TOML with environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath           = "config.toml"
	DefaultEnvPrefix            = "KITH"
	DefaultReminderTime         = "13:20"
	DefaultReminderDaysAhead    = 40
	DefaultTimezone             = "Europe/Warsaw"
	DefaultSQLitePath           = "data/kith.db"
	DefaultOpenAITimeoutSeconds = 60
	DefaultTranscriptionModel   = "whisper-1"
	DefaultTranscriptionLang    = "uk"
	DefaultPGHost               = "127.0.0.1"
	DefaultPGPort               = 5432
	DefaultPGUser               = "postgres"
	DefaultPGDatabase           = "kith"
	DefaultPGSSLMode            = "disable"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the root application configuration.
type Config struct {
	Log      LogConfig      `toml:"log" envconfig:"log"`
	Telegram TelegramConfig `toml:"telegram" envconfig:"telegram"`
	OpenAI   OpenAIConfig   `toml:"openai" envconfig:"openai"`
	Reminder ReminderConfig `toml:"reminder" envconfig:"reminder"`
	Admin    AdminConfig    `toml:"admin" envconfig:"admin"`
	Storage  StorageConfig  `toml:"storage" envconfig:"storage"`
	Postgres PostgresConfig `toml:"postgres" envconfig:"postgres"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level" envconfig:"level"`
	Format string `toml:"format" envconfig:"format"`
}

// TelegramConfig holds the bot token and inbound/outbound tuning.
type TelegramConfig struct {
	BotToken    string  `toml:"bot_token" envconfig:"bot_token"`
	PollTimeout int     `toml:"poll_timeout" envconfig:"poll_timeout"`
	Workers     int     `toml:"workers" envconfig:"workers"`
	QueueSize   int     `toml:"queue_size" envconfig:"queue_size"`
	SendRate    float64 `toml:"send_rate" envconfig:"send_rate"`
}

// ModelTier selects a model and its sampling parameters for one kind of call.
type ModelTier struct {
	Model       string  `toml:"model" envconfig:"model"`
	Temperature float32 `toml:"temperature" envconfig:"temperature"`
	MaxTokens   int     `toml:"max_tokens" envconfig:"max_tokens"`
}

// OpenAIConfig holds API access and the per-purpose model tiers.
type OpenAIConfig struct {
	APIKey                string    `toml:"api_key" envconfig:"api_key"`
	BaseURL               string    `toml:"base_url" envconfig:"base_url"`
	TimeoutSeconds        int       `toml:"timeout_seconds" envconfig:"timeout_seconds"`
	TranscriptionModel    string    `toml:"transcription_model" envconfig:"transcription_model"`
	TranscriptionLanguage string    `toml:"transcription_language" envconfig:"transcription_language"`
	Classifier            ModelTier `toml:"classifier" envconfig:"classifier"`
	Answer                ModelTier `toml:"answer" envconfig:"answer"`
	Reminder              ModelTier `toml:"reminder" envconfig:"reminder"`
}

// Timeout returns the per-call deadline for OpenAI requests.
func (c OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultOpenAITimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReminderConfig holds the daily trigger time, lookahead window and timezone.
type ReminderConfig struct {
	Time      string `toml:"time" envconfig:"time"`
	DaysAhead int    `toml:"days_ahead" envconfig:"days_ahead"`
	Timezone  string `toml:"timezone" envconfig:"timezone"`
}

// Location resolves the configured timezone.
func (c ReminderConfig) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// AdminConfig holds the shared secret for the /admin command.
// PasswordHash (bcrypt) takes precedence over Password when set.
type AdminConfig struct {
	Password     string `toml:"password" envconfig:"password"`
	PasswordHash string `toml:"password_hash" envconfig:"password_hash"`
}

// StorageConfig selects the contact store backend.
type StorageConfig struct {
	Driver     string `toml:"driver" envconfig:"driver"`
	SQLitePath string `toml:"sqlite_path" envconfig:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host" envconfig:"host"`
	Port     int    `toml:"port" envconfig:"port"`
	User     string `toml:"user" envconfig:"user"`
	Password string `toml:"password" envconfig:"password"`
	Database string `toml:"database" envconfig:"database"`
	SSLMode  string `toml:"sslmode" envconfig:"sslmode"`
}

// DSN builds a PostgreSQL connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// legacyEnv carries the unprefixed variables the bot has always read.
type legacyEnv struct {
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	AdminPassword    string `envconfig:"ADMIN_PASSWORD"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telegram: TelegramConfig{
			PollTimeout: 30,
			Workers:     4,
			QueueSize:   64,
			SendRate:    20,
		},
		OpenAI: OpenAIConfig{
			TimeoutSeconds:        DefaultOpenAITimeoutSeconds,
			TranscriptionModel:    DefaultTranscriptionModel,
			TranscriptionLanguage: DefaultTranscriptionLang,
			Classifier:            ModelTier{Model: "gpt-4o-mini", Temperature: 0},
			Answer:                ModelTier{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 300},
			Reminder:              ModelTier{Model: "gpt-4o-mini", Temperature: 0.8, MaxTokens: 250},
		},
		Reminder: ReminderConfig{
			Time:      DefaultReminderTime,
			DaysAhead: DefaultReminderDaysAhead,
			Timezone:  DefaultTimezone,
		},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: DefaultSQLitePath,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}
}

// Load reads the TOML file at path (a missing file keeps defaults), then applies
// KITH_* environment overrides and the unprefixed legacy variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var legacy legacyEnv
	if err := envconfig.Process("", &legacy); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	if legacy.TelegramBotToken != "" {
		cfg.Telegram.BotToken = legacy.TelegramBotToken
	}
	if legacy.OpenAIAPIKey != "" {
		cfg.OpenAI.APIKey = legacy.OpenAIAPIKey
	}
	if legacy.AdminPassword != "" {
		cfg.Admin.Password = legacy.AdminPassword
	}
	if err := envconfig.Process(DefaultEnvPrefix, cfg); err != nil {
		return fmt.Errorf("read %s_* environment: %w", DefaultEnvPrefix, err)
	}
	return nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver)
	}
	if c.Reminder.DaysAhead < 0 {
		return fmt.Errorf("reminder.days_ahead must not be negative")
	}
	if _, err := c.Reminder.Location(); err != nil {
		return err
	}
	return nil
}
