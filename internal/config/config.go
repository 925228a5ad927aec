// internal/config/config.go
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read from the environment. A .env file
// is folded in by the godotenv autoload import in main.
type Config struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`

	// Ed25519 key files for session tokens. When unset a fresh pair is
	// generated at startup and tokens do not survive a restart.
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`
	TokenExpire       string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`

	// Cron spec for the time-based skip sweep.
	SkipSweepSpec string `env:"SKIP_SWEEP_CRON" envDefault:"@every 1m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
