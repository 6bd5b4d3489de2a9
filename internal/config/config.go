package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the client reads
const EnvPrefix = "BUYBUDDY"

// Config holds application configuration
type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	SessionID      string        `mapstructure:"session_id"` // Load this conversation on start
	Debug          bool          `mapstructure:"debug"`

	HistoryLimit      int           `mapstructure:"history_limit"`      // Entries fetched when reloading a conversation
	ConversationLimit int           `mapstructure:"conversation_limit"` // Entries fetched for the conversation list
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`          // Conversation list cache lifetime, 0 disables

	LogDir         string `mapstructure:"log_dir"`
	TranscriptPath string `mapstructure:"transcript_path"` // sqlite file, empty disables the local journal
	Telemetry      bool   `mapstructure:"telemetry"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("session_id", "")
	v.SetDefault("debug", false)
	v.SetDefault("history_limit", 100)
	v.SetDefault("conversation_limit", 50)
	v.SetDefault("cache_ttl", 30*time.Second)
	v.SetDefault("log_dir", "logs")
	v.SetDefault("transcript_path", "buybuddy.db")
	v.SetDefault("telemetry", true)
}

// New returns a viper instance reading BUYBUDDY_* environment variables on
// top of the defaults. Flags can be bound to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadDotEnv loads a .env file into the process environment when present
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load decodes and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("api_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	// The backend caps both listings at 100.
	if c.HistoryLimit < 1 || c.HistoryLimit > 100 {
		return fmt.Errorf("history_limit must be between 1 and 100, got %d", c.HistoryLimit)
	}
	if c.ConversationLimit < 1 || c.ConversationLimit > 100 {
		return fmt.Errorf("conversation_limit must be between 1 and 100, got %d", c.ConversationLimit)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	return nil
}
