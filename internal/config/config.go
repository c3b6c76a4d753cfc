package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	EnvPrefix   = "TABLEDESK_"
	DefaultFile = "tabledesk.yaml"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	History  HistoryConfig  `koanf:"history"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
	Session  SessionConfig  `koanf:"session"`
}

type ServerConfig struct {
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DatabaseConfig points at the administered server. URL wins over the
// individual fields when both are set.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// HistoryConfig enables the change history store when DSN is set.
type HistoryConfig struct {
	DSN string `koanf:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SessionConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

var defaults = map[string]interface{}{
	"server.port":            8080,
	"server.allowed_origins": []string{"*"},
	"database.host":          "localhost",
	"database.port":          5432,
	"database.user":          "postgres",
	"database.name":          "postgres",
	"database.sslmode":       "disable",
	"auth.token_ttl":         "15m",
	"log.level":              "info",
	"log.format":             "text",
	"session.ttl":            "1h",
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"port":         "server.port",
	"database-url": "database.url",
	"history-dsn":  "history.dsn",
	"jwt-secret":   "auth.jwt_secret",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"session-ttl":  "session.ttl",
}

// Load reads the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
// A .env file in the working directory is loaded into the environment first.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			cfgFile = DefaultFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// TABLEDESK_AUTH_JWT_SECRET -> auth.jwt_secret
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// DSN returns the connection string of the administered server.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	userInfo := url.UserPassword(c.User, c.Password)
	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userInfo.String(),
		c.Host,
		c.Port,
		url.PathEscape(c.Name),
		c.SSLMode,
	)
}

// Redacted is the DSN with the password masked, for logs.
func (c DatabaseConfig) Redacted() string {
	u, err := url.Parse(c.DSN())
	if err != nil {
		return "postgres://***"
	}
	return u.Redacted()
}

// ValidateServe checks what the HTTP server needs on top of the defaults.
func (c *Config) ValidateServe() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	return errors.Join(errs...)
}
