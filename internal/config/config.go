// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/mmynk/settleup/internal/ledger"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Storage selects and tunes the database.
type Storage struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"sqlite"`
	Path            string        `env:"DB_PATH" envDefault:"./data/settleup.db"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// Logging configures pkg/logging.
type Logging struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Server is the configuration of cmd/server.
type Server struct {
	Port      int           `env:"PORT" envDefault:"8080"`
	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	Policy    ledger.Policy `env:"SETTLEMENT_POLICY" envDefault:"carry-forward"`

	Storage Storage
	Logging Logging
}

// Bot is the configuration of cmd/bot.
type Bot struct {
	TelegramToken string        `env:"TELEGRAM_TOKEN,required,notEmpty"`
	Debug         bool          `env:"TELEGRAM_DEBUG" envDefault:"false"`
	Policy        ledger.Policy `env:"SETTLEMENT_POLICY" envDefault:"carry-forward"`

	Storage Storage
	Logging Logging
}

// LoadServer parses Server from the environment.
func LoadServer() (*Server, error) {
	cfg, err := load[Server]()
	if err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, fmt.Errorf("config.LoadServer: %w", err)
	}
	return cfg, nil
}

// LoadBot parses Bot from the environment.
func LoadBot() (*Bot, error) {
	cfg, err := load[Bot]()
	if err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, fmt.Errorf("config.LoadBot: %w", err)
	}
	return cfg, nil
}

func load[T any]() (*T, error) {
	cfg, err := env.ParseAs[T]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (s Storage) validate() error {
	switch s.Driver {
	case DriverSQLite:
		if s.Path == "" {
			return fmt.Errorf("DB_PATH is required for driver %q", s.Driver)
		}
	case DriverPostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", s.Driver)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", s.Driver)
	}
	return nil
}
