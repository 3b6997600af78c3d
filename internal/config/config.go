package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	WebhookURL       string `env:"WEBHOOK_URL"`
	DispatchDelayMS  int    `env:"DISPATCH_DELAY_MS,default=200"`
	RetryDelayMS     int    `env:"RETRY_DELAY_MS,default=2000"`
	RequestTimeoutMS int    `env:"REQUEST_TIMEOUT_MS,default=10000"`
	LogLevel         string `env:"LOG_LEVEL,default=info"`
	APIPort          int    `env:"API_PORT,default=8080"`
	RedisURL         string `env:"REDIS_URL"`
	DatabaseDSN      string `env:"DATABASE_DSN"`
	HistoryLimit     int    `env:"HISTORY_LIMIT,default=50"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DispatchDelayMS < 0 {
		return fmt.Errorf("DISPATCH_DELAY_MS must be >= 0, got %d", c.DispatchDelayMS)
	}
	if c.RetryDelayMS < 0 {
		return fmt.Errorf("RETRY_DELAY_MS must be >= 0, got %d", c.RetryDelayMS)
	}
	if c.RequestTimeoutMS <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be > 0, got %d", c.RequestTimeoutMS)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be > 0, got %d", c.HistoryLimit)
	}
	return nil
}

func (c *Config) DispatchDelay() time.Duration {
	return time.Duration(c.DispatchDelayMS) * time.Millisecond
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}
