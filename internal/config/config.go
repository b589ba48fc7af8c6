// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Telegram   TelegramConfig
	DB         DBConfig
	TTS        TTSConfig
	Dispatch   DispatchConfig
	Port       string
	AdminToken string
	// CORSOrigins lists origins allowed to call the admin API from a browser.
	CORSOrigins    []string
	GRPCHealthAddr string
	ConfirmTTL     time.Duration
	FeedBacklog    int
	LogLevel       slog.Level
}

// TelegramConfig configures the chat platform client.
type TelegramConfig struct {
	Token             string
	BotUsername       string
	APIURL            string
	PollTimeout       time.Duration
	SendRatePerMinute int
}

// DBConfig selects and configures the persistence backend.
type DBConfig struct {
	Driver     string
	Path       string
	DSN        string
	EncryptKey string
}

// TTSConfig configures speech synthesis for /audio.
type TTSConfig struct {
	Backend     string
	Language    string
	DockerImage string
	AudioDir    string
}

// DispatchConfig sizes the per-chat event dispatcher.
type DispatchConfig struct {
	Workers   int
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			Token:             getEnv("TOKEN", ""),
			BotUsername:       strings.TrimPrefix(getEnv("TELEGRAM_BOT_USER", ""), "@"),
			APIURL:            getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			PollTimeout:       getEnvDuration("TELEGRAM_POLL_TIMEOUT", 30*time.Second),
			SendRatePerMinute: getEnvInt("SEND_RATE_PER_MINUTE", 20),
		},
		DB: DBConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			Path:       getEnv("DB_PATH", "./data/manolo.db"),
			DSN:        getEnv("DB_DSN", ""),
			EncryptKey: getEnv("ENCRYPT_KEY", ""),
		},
		TTS: TTSConfig{
			Backend:     strings.ToLower(getEnv("TTS_BACKEND", "google")),
			Language:    getEnv("TTS_LANGUAGE", "es"),
			DockerImage: getEnv("TTS_DOCKER_IMAGE", ""),
			AudioDir:    getEnv("AUDIO_DIR", os.TempDir()),
		},
		Dispatch: DispatchConfig{
			Workers:   getEnvInt("DISPATCH_WORKERS", 8),
			QueueSize: getEnvInt("DISPATCH_QUEUE_SIZE", 64),
		},
		Port:           getEnv("PORT", "8080"),
		AdminToken:     getEnv("ADMIN_TOKEN", ""),
		CORSOrigins:    getEnvList("CORS_ORIGINS"),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
		ConfirmTTL:     getEnvDuration("CONFIRM_TTL", 10*time.Minute),
		FeedBacklog:    getEnvInt("FEED_BACKLOG", 50),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver)
	}
	switch c.TTS.Backend {
	case "google", "docker", "none":
	default:
		return fmt.Errorf("TTS_BACKEND must be google, docker or none, got %q", c.TTS.Backend)
	}
	if c.ConfirmTTL <= 0 {
		return fmt.Errorf("CONFIRM_TTL must be > 0")
	}
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("DISPATCH_WORKERS must be > 0")
	}
	if c.Dispatch.QueueSize <= 0 {
		return fmt.Errorf("DISPATCH_QUEUE_SIZE must be > 0")
	}
	if c.Telegram.SendRatePerMinute < 0 {
		return fmt.Errorf("SEND_RATE_PER_MINUTE cannot be negative")
	}
	return nil
}

// ValidateServe checks the additional settings needed to run the bot.
func (c *Config) ValidateServe() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TOKEN cannot be empty")
	}
	if c.Telegram.BotUsername == "" {
		return fmt.Errorf("TELEGRAM_BOT_USER cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
