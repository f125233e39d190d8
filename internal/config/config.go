package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries all relay service settings, sourced from the environment.
type Config struct {
	Port        string `mapstructure:"RELAY_PORT"`
	Environment string `mapstructure:"RELAY_ENV"`

	TokenA string `mapstructure:"RELAY_TOKEN_A"`
	TokenB string `mapstructure:"RELAY_TOKEN_B"`

	TypingStaleAfterMS int `mapstructure:"RELAY_TYPING_STALE_MS"`

	// OpenReadStatus exposes GET /receipts/:message_id without a credential,
	// matching the historical variant of the read-status endpoint.
	OpenReadStatus bool `mapstructure:"RELAY_OPEN_READ_STATUS"`

	DebugRoutes bool `mapstructure:"RELAY_DEBUG_ROUTES"`

	AMQPURL       string `mapstructure:"RELAY_AMQP_URL"`
	AuditExchange string `mapstructure:"RELAY_AUDIT_EXCHANGE"`
}

// Load reads configuration from a .env file if present, then the
// environment.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("RELAY_PORT", "8083")
	viper.SetDefault("RELAY_ENV", "development")
	viper.SetDefault("RELAY_TOKEN_A", "")
	viper.SetDefault("RELAY_TOKEN_B", "")
	viper.SetDefault("RELAY_TYPING_STALE_MS", 3000)
	viper.SetDefault("RELAY_OPEN_READ_STATUS", false)
	viper.SetDefault("RELAY_DEBUG_ROUTES", false)
	viper.SetDefault("RELAY_AMQP_URL", "")
	viper.SetDefault("RELAY_AUDIT_EXCHANGE", "relay.audit")

	// Missing .env is fine; the environment takes over.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TypingStaleAfterMS <= 0 {
		return nil, fmt.Errorf("RELAY_TYPING_STALE_MS must be positive, got %d", cfg.TypingStaleAfterMS)
	}

	return &cfg, nil
}

// TypingStaleAfter returns the typing staleness window as a duration.
func (c *Config) TypingStaleAfter() time.Duration {
	return time.Duration(c.TypingStaleAfterMS) * time.Millisecond
}
