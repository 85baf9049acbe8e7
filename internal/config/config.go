package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from CHAT_-prefixed environment variables. The
// signing secret arrives base64-encoded and is decoded at load time.
type Config struct {
	ListenAddr     string        `envconfig:"LISTEN_ADDR" default:"localhost:8000"`
	DatabaseDSN    string        `envconfig:"DATABASE_DSN" default:"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"`
	SigningSecret  string        `envconfig:"SIGNING_SECRET" required:"true"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	SendTimeout    time.Duration `envconfig:"SEND_TIMEOUT" default:"5s"`

	SigningKey []byte `ignored:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("chat", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	cfg.SigningKey = key

	if cfg.SendTimeout <= 0 {
		return nil, fmt.Errorf("send timeout must be positive")
	}

	return &cfg, nil
}
