// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the configuration shared by the server and the CLI.
type Config struct {
	DBPath          string        `env:"DB_PATH"           envDefault:"./data/ducats.db"`
	Port            int           `env:"PORT"              envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL"         envDefault:"info"`
	ExportDir       string        `env:"EXPORT_DIR"        envDefault:"./exports"`
	CSVTimezone     string        `env:"CSV_TIMEZONE"      envDefault:"UTC"`
	Currency        string        `env:"CURRENCY"          envDefault:"USD"`
	JWTSecret       string        `env:"JWT_SECRET"`
	TokenTTL        time.Duration `env:"TOKEN_TTL"         envDefault:"720h"`
	MaxReceiptBytes int64         `env:"MAX_RECEIPT_BYTES" envDefault:"10485760"`
	MailTo          []string      `env:"MAIL_TO"           envSeparator:","`

	SMTP SMTPConfig `envPrefix:"SMTP_"`
}

// SMTPConfig configures the mail export sink.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Load reads the given .env files (or ./.env when none are given) and then
// parses the environment. Variables already set take precedence over the
// files. A missing default ./.env is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env parsing cannot.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if _, err := time.LoadLocation(c.CSVTimezone); err != nil {
		return fmt.Errorf("invalid CSV_TIMEZONE %q: %w", c.CSVTimezone, err)
	}
	if money.GetCurrency(c.Currency) == nil {
		return fmt.Errorf("unknown CURRENCY %q", c.Currency)
	}
	if c.MaxReceiptBytes <= 0 {
		return fmt.Errorf("MAX_RECEIPT_BYTES must be positive, got %d", c.MaxReceiptBytes)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.SMTP.Host != "" && c.SMTP.From == "" {
		return errors.New("SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Location returns the time zone CSV dates are written in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CSVTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AuthEnabled reports whether RPCs require an owner token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// MailEnabled reports whether the SMTP mail sink is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTP.Host != ""
}
