package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcdev12/auctioneer/go/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the optional auction.yaml file.
type Config struct {
	Auction struct {
		TimerSec        int    `yaml:"timer_sec"`
		ReminderSec     int    `yaml:"reminder_sec"`
		MinIncrement    string `yaml:"min_increment"`
		AutoAdvance     *bool  `yaml:"auto_advance"`
		ShowPhotos      *bool  `yaml:"show_photos"`
		AdvanceDelaySec *int   `yaml:"advance_delay_sec"`
	} `yaml:"auction"`
	Owner   string     `yaml:"owner"`
	Admins  []string   `yaml:"admins"`
	Teams   []TeamSeed `yaml:"teams"`
	Catalog string     `yaml:"catalog"`
}

// TeamSeed registers a team on first start.
type TeamSeed struct {
	Name    string `yaml:"name"`
	Purse   string `yaml:"purse"`
	Captain string `yaml:"captain"`
}

// EnvConfig holds the process settings read from the environment.
type EnvConfig struct {
	Port           string
	LogLevel       string
	ConfigPath     string
	SnapshotStore  string
	SnapshotPath   string
	AuctionID      string
	NatsURL        string
	TelegramToken  string
	TelegramChatID int64
	Currency       string
	ExportDir      string
	EventQueueSize int
}

func newEnvConfig() EnvConfig {
	return EnvConfig{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ConfigPath:     getEnv("AUCTION_CONFIG", "auction.yaml"),
		SnapshotStore:  getEnv("SNAPSHOT_STORE", "file"),
		SnapshotPath:   getEnv("SNAPSHOT_PATH", "auction_state.json"),
		AuctionID:      getEnv("AUCTION_ID", "default"),
		NatsURL:        getEnv("NATS_URL", ""),
		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID: getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		Currency:       getEnv("CURRENCY", ""),
		ExportDir:      getEnv("EXPORT_DIR", "exports"),
		EventQueueSize: getEnvAsInt("EVENT_QUEUE_SIZE", 256),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads path. A missing file yields an empty config.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// Settings applies the file's overrides to the default settings.
func (c *Config) Settings() (models.Settings, error) {
	s := models.DefaultSettings()
	a := c.Auction
	if a.TimerSec > 0 {
		s.TimerDuration = time.Duration(a.TimerSec) * time.Second
	}
	if a.ReminderSec > 0 {
		s.ReminderLead = time.Duration(a.ReminderSec) * time.Second
	}
	if a.MinIncrement != "" {
		inc, err := decimal.NewFromString(a.MinIncrement)
		if err != nil {
			return s, fmt.Errorf("invalid min_increment %q: %w", a.MinIncrement, err)
		}
		s.MinIncrement = inc
	}
	if a.AutoAdvance != nil {
		s.AutoAdvance = *a.AutoAdvance
	}
	if a.ShowPhotos != nil {
		s.ShowPhotos = *a.ShowPhotos
	}
	if a.AdvanceDelaySec != nil {
		s.AdvanceDelay = time.Duration(*a.AdvanceDelaySec) * time.Second
	}
	return s.Clamp(), nil
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
