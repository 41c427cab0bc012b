// Package config loads the server configuration from defaults, an optional
// YAML file and SHIFTGATE_* environment variables, in rising precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gorm.io/gorm/logger"

	"github.com/solaius/shiftgate/pkg/store"
	"github.com/solaius/shiftgate/pkg/tenancy"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "SHIFTGATE"

// ServerConfig is the complete server configuration.
type ServerConfig struct {
	Listen          string         `mapstructure:"listen"`
	LogLevel        string         `mapstructure:"log_level"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown_timeout"`
	RegistryPath    string         `mapstructure:"registry_path"`
	Database        DatabaseConfig `mapstructure:"database"`
	Tenancy         TenancyConfig  `mapstructure:"tenancy"`
	Token           TokenConfig    `mapstructure:"token"`
	CORS            CORSConfig     `mapstructure:"cors"`
	Cache           CacheConfig    `mapstructure:"cache"`
}

// DatabaseConfig selects and tunes the relational store.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"`
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
	// Compliance provisions the compliance module tables at startup.
	Compliance bool `mapstructure:"compliance"`
}

// TenancyConfig controls how the organization of a request is resolved.
type TenancyConfig struct {
	Mode       string `mapstructure:"mode"`
	DefaultOrg string `mapstructure:"default_org"`
}

// TokenConfig configures execution token verification. An empty secret
// disables token-gated actions.
type TokenConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	Leeway time.Duration `mapstructure:"leeway"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CacheConfig sizes the policy snapshot response cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	MaxSize int           `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("registry_path", "")
	v.SetDefault("database.type", store.TypePostgres)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.compliance", false)
	v.SetDefault("tenancy.mode", string(tenancy.ModeHeader))
	v.SetDefault("tenancy.default_org", tenancy.DefaultOrgID)
	v.SetDefault("token.secret", "")
	v.SetDefault("token.issuer", "")
	v.SetDefault("token.leeway", 5*time.Second)
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", 10*time.Minute)
}

// Load reads the configuration. path may be empty; a named file that
// cannot be read is an error. overrides take precedence over everything
// else and are keyed like the file ("database.dsn").
func Load(path string, overrides map[string]any) (*ServerConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Database.Type) {
	case store.TypePostgres, store.TypeMySQL, store.TypeSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported database type %q", c.Database.Type))
	}
	if _, err := c.GormLogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch tenancy.TenancyMode(c.Tenancy.Mode) {
	case tenancy.ModeSingle, tenancy.ModeHeader:
	default:
		errs = append(errs, fmt.Errorf("unsupported tenancy mode %q (expected single or header)", c.Tenancy.Mode))
	}
	if c.Token.Leeway < 0 {
		errs = append(errs, fmt.Errorf("token leeway must not be negative, got %s", c.Token.Leeway))
	}
	if c.Cache.Enabled && c.Cache.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("cache max_size must be positive, got %d", c.Cache.MaxSize))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (c *ServerConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

// GormLogLevel parses Database.LogLevel.
func (c *ServerConfig) GormLogLevel() (logger.LogLevel, error) {
	switch strings.ToLower(c.Database.LogLevel) {
	case "silent":
		return logger.Silent, nil
	case "error":
		return logger.Error, nil
	case "warn", "":
		return logger.Warn, nil
	case "info":
		return logger.Info, nil
	default:
		return 0, fmt.Errorf("invalid database log level %q", c.Database.LogLevel)
	}
}
