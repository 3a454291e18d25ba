// Package config loads the climate API configuration from defaults, an
// optional TOML file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"climate-api/pkg/database"
	"climate-api/pkg/logging"
)

// ConfigFileEnv names the environment variable pointing at a TOML file
const ConfigFileEnv = "CLIMATE_CONFIG"

// Config is the top-level configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host         string        `toml:"host"`
	Port         int           `toml:"port"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout"`
}

// DatabaseConfig locates the dataset and sizes the connection pool
type DatabaseConfig struct {
	Driver          string        `toml:"driver"`
	Path            string        `toml:"path"`
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `toml:"conn_max_idle_time"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          database.DriverSQLite,
			Path:            "Resources/hawaii.sqlite",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the process environment
func LoadConfig() (*Config, error) {
	return Load(os.LookupEnv)
}

// Load builds the configuration using lookup for environment access
func Load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path, ok := lookup(ConfigFileEnv); ok && strings.TrimSpace(path) != "" {
		if _, err := toml.DecodeFile(strings.TrimSpace(path), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strVars := []struct {
		key string
		dst *string
	}{
		{"SERVER_HOST", &cfg.Server.Host},
		{"DB_DRIVER", &cfg.Database.Driver},
		{"DATASET_PATH", &cfg.Database.Path},
		{"DB_DSN", &cfg.Database.DSN},
		{"LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, v := range strVars {
		if s, ok := env(v.key); ok {
			*v.dst = s
		}
	}

	intVars := []struct {
		key string
		dst *int
	}{
		{"SERVER_PORT", &cfg.Server.Port},
		{"DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns},
		{"DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns},
	}
	for _, v := range intVars {
		s, ok := env(v.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", v.key, s, err)
		}
		*v.dst = n
	}

	durationVars := []struct {
		key string
		dst *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout},
		{"DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime},
	}
	for _, v := range durationVars {
		s, ok := env(v.key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", v.key, s, err)
		}
		*v.dst = d
	}

	return nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" && c.Database.DSN == "" {
			errs = append(errs, errors.New("sqlite driver requires a dataset path"))
		}
	case database.DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("postgres driver requires DB_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q (allowed: %s, %s)",
			c.Database.Driver, database.DriverSQLite, database.DriverPostgres))
	}

	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("connection pool sizes must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DatabaseOptions converts the database section for database.Open
func (c *Config) DatabaseOptions() *database.Config {
	return &database.Config{
		Driver:          c.Database.Driver,
		Path:            c.Database.Path,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
