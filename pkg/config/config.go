// Package config defines the server configuration and its YAML file loader.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig tunes the admission gate.
type RateLimitConfig struct {
	// WindowSeconds is the rolling window length.
	WindowSeconds int `yaml:"windowSeconds" json:"windowSeconds"`
	// Limit is the total admitted cost per token per window.
	Limit int `yaml:"limit" json:"limit"`
}

// WebhookConfig tunes the dispatcher.
type WebhookConfig struct {
	JitterMinMS       int     `yaml:"jitterMinMs" json:"jitterMinMs"`
	JitterMaxMS       int     `yaml:"jitterMaxMs" json:"jitterMaxMs"`
	TimeoutSeconds    int     `yaml:"timeoutSeconds" json:"timeoutSeconds"`
	PoisonProbability float64 `yaml:"poisonProbability" json:"poisonProbability"`
	LegacySignature   bool    `yaml:"legacySignature" json:"legacySignature"`
}

// Config is the full server configuration.
type Config struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`
	// Seed controls whether the sample data set is loaded at startup.
	Seed bool `yaml:"seed" json:"seed"`
	// JWTSecret enables HS256 JWT bearer tokens when non-empty.
	JWTSecret string          `yaml:"jwtSecret" json:"-"`
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
	Webhook   WebhookConfig   `yaml:"webhook" json:"webhook"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      8080,
		LogLevel:  "info",
		LogFormat: "text",
		Seed:      true,
		RateLimit: RateLimitConfig{WindowSeconds: 60, Limit: 100},
		Webhook: WebhookConfig{
			JitterMinMS:    50,
			JitterMaxMS:    250,
			TimeoutSeconds: 5,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be 0-65535, got %d", c.Port)
	}
	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rateLimit.limit must be > 0, got %d", c.RateLimit.Limit)
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rateLimit.windowSeconds must be > 0, got %d", c.RateLimit.WindowSeconds)
	}
	if c.Webhook.PoisonProbability < 0 || c.Webhook.PoisonProbability > 1 {
		return fmt.Errorf("webhook.poisonProbability must be between 0.0 and 1.0, got %v", c.Webhook.PoisonProbability)
	}
	if c.Webhook.JitterMinMS > c.Webhook.JitterMaxMS {
		return fmt.Errorf("webhook.jitterMinMs (%d) must be <= jitterMaxMs (%d)", c.Webhook.JitterMinMS, c.Webhook.JitterMaxMS)
	}
	return nil
}

// Window returns the rate-limit window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}
