// Package config загружает настройки relay-сервера и клиента из переменных окружения.
// Флаги командной строки переопределяют значения окружения.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/iudanet/gophdoc/internal/validation"
)

// ErrInvalidConfig конфигурация не прошла проверку
var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig настройки relay-сервера
type ServerConfig struct {
	Address         string        `env:"GOPHDOC_ADDRESS"          envDefault:":8080"`
	DatabasePath    string        `env:"GOPHDOC_DATABASE"         envDefault:"gophdoc.db"`
	RedisURL        string        `env:"GOPHDOC_REDIS_URL"`
	LogLevel        string        `env:"GOPHDOC_LOG_LEVEL"        envDefault:"info"`
	PullLimit       int           `env:"GOPHDOC_PULL_LIMIT"       envDefault:"500"`
	WriteRate       int           `env:"GOPHDOC_WRITE_RATE"       envDefault:"120"`
	ReadRate        int           `env:"GOPHDOC_READ_RATE"        envDefault:"600"`
	RateWindow      time.Duration `env:"GOPHDOC_RATE_WINDOW"      envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"GOPHDOC_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ClientConfig настройки клиента
type ClientConfig struct {
	ServerURL string        `env:"GOPHDOC_SERVER_URL" envDefault:"http://localhost:8080"`
	DBPath    string        `env:"GOPHDOC_CLIENT_DB"  envDefault:"gophdoc-client.db"`
	Document  string        `env:"GOPHDOC_DOCUMENT"   envDefault:"notes"`
	Peer      string        `env:"GOPHDOC_PEER"`
	LogLevel  string        `env:"GOPHDOC_LOG_LEVEL"  envDefault:"warn"`
	Timeout   time.Duration `env:"GOPHDOC_TIMEOUT"    envDefault:"10s"`
}

// ParseEnv заполняет target из переменных окружения
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer читает окружение, затем флаги из args
func LoadServer(fs *flag.FlagSet, args []string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}

	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RegisterFlags регистрирует флаги; значения по умолчанию берутся из уже прочитанного окружения
func (c *ServerConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Address, "a", c.Address, "HTTP listen address")
	fs.StringVar(&c.DatabasePath, "d", c.DatabasePath, "SQLite commit log path")
	fs.StringVar(&c.RedisURL, "redis", c.RedisURL, "Redis URL for cross-instance relay (empty disables)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.IntVar(&c.PullLimit, "pull-limit", c.PullLimit, "Maximum commits per pull response")
}

// Validate проверяет значения
func (c *ServerConfig) Validate() error {
	switch {
	case c.Address == "":
		return fmt.Errorf("%w: empty listen address", ErrInvalidConfig)
	case c.DatabasePath == "":
		return fmt.Errorf("%w: empty database path", ErrInvalidConfig)
	case c.PullLimit <= 0:
		return fmt.Errorf("%w: pull limit must be positive", ErrInvalidConfig)
	case c.WriteRate <= 0 || c.ReadRate <= 0:
		return fmt.Errorf("%w: rate limits must be positive", ErrInvalidConfig)
	case c.RateWindow <= 0:
		return fmt.Errorf("%w: rate window must be positive", ErrInvalidConfig)
	}

	if c.RedisURL != "" {
		if _, err := url.Parse(c.RedisURL); err != nil {
			return fmt.Errorf("%w: redis url: %w", ErrInvalidConfig, err)
		}
	}

	_, err := ParseLogLevel(c.LogLevel)
	return err
}

// LoadClient читает настройки клиента из окружения.
// Флаги клиента регистрирует cobra поверх полученных значений.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server url %q", ErrInvalidConfig, c.ServerURL)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: empty client database path", ErrInvalidConfig)
	}
	if err := validation.ValidateDocument(c.Document); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}

	_, err = ParseLogLevel(c.LogLevel)
	return err
}

// ParseLogLevel переводит строку в slog.Level
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, level)
	}
	return l, nil
}
