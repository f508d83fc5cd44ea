// Package config loads service configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
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
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"metabuild/internal/store"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// DotEnvPaths are tried in order; the first readable file wins
var DotEnvPaths = []string{".env", "../.env", "../../.env"}

// ConfigPathEnvVar overrides the config file location
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the full service configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	OpenDota OpenDotaConfig `koanf:"opendota"`
	Patches  PatchesConfig  `koanf:"patches"`
	Notify   NotifyConfig   `koanf:"notify"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Port              int    `koanf:"port"`
	RequestsPerMinute int    `koanf:"requests_per_minute"`
	CronSecret        string `koanf:"cron_secret"`
}

type DatabaseConfig struct {
	Driver     string `koanf:"driver"`
	URL        string `koanf:"url"`
	PGHost     string `koanf:"pg_host"`
	PGPort     int    `koanf:"pg_port"`
	PGDatabase string `koanf:"pg_database"`
	PGUser     string `koanf:"pg_user"`
	PGPassword string `koanf:"pg_password"`
	SQLitePath string `koanf:"sqlite_path"`
	TursoURL   string `koanf:"turso_url"`
	TursoToken string `koanf:"turso_auth_token"`
}

type CacheConfig struct {
	CatalogTTLSeconds   int   `koanf:"catalog_ttl_seconds"`
	MetaTTLSeconds      int   `koanf:"meta_ttl_seconds"`
	HeroNamesTTLSeconds int   `koanf:"hero_names_ttl_seconds"`
	StoredItems         int   `koanf:"stored_items"`
	HotHeroes           []int `koanf:"hot_heroes"`
}

type OpenDotaConfig struct {
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type PatchesConfig struct {
	URL string `koanf:"url"`
}

type NotifyConfig struct {
	DiscordWebhookURL string `koanf:"discord_webhook_url"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              3000,
			RequestsPerMinute: 120,
		},
		Database: DatabaseConfig{
			Driver:     store.DriverPostgres,
			PGHost:     "localhost",
			PGPort:     5432,
			SQLitePath: "metabuild.db",
		},
		Cache: CacheConfig{
			CatalogTTLSeconds:   86400,
			MetaTTLSeconds:      2700,
			HeroNamesTTLSeconds: 86400,
			StoredItems:         20,
			HotHeroes:           []int{1, 94, 114},
		},
		OpenDota: OpenDotaConfig{
			BaseURL:        "https://api.opendota.com/api",
			TimeoutSeconds: 10,
		},
		Patches: PatchesConfig{
			URL: "https://www.dota2.com/patches",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env, then layers defaults, the config file and the environment
func Load() (*Config, error) {
	for _, path := range DotEnvPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks ranges and the store driver
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("REQUESTS_PER_MINUTE must be positive, got %d", c.Server.RequestsPerMinute))
	}

	switch c.Database.Driver {
	case store.DriverPostgres, store.DriverSQLite, store.DriverLibSQL:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres, sqlite or libsql, got %q", c.Database.Driver))
	}
	if c.Database.Driver == store.DriverLibSQL && c.Database.TursoURL == "" {
		errs = append(errs, errors.New("TURSO_DATABASE_URL is required for the libsql driver"))
	}

	if c.Cache.CatalogTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("ITEM_CONSTANTS_TTL_SECONDS must not be negative, got %d", c.Cache.CatalogTTLSeconds))
	}
	if c.Cache.MetaTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("HERO_META_TTL_SECONDS must not be negative, got %d", c.Cache.MetaTTLSeconds))
	}
	if c.Cache.HeroNamesTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("HERO_NAMES_TTL_SECONDS must not be negative, got %d", c.Cache.HeroNamesTTLSeconds))
	}
	if c.Cache.StoredItems < 10 {
		errs = append(errs, fmt.Errorf("META_STORED_ITEMS must be at least 10, got %d", c.Cache.StoredItems))
	}
	for _, id := range c.Cache.HotHeroes {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("HOT_HEROES must contain positive ids, got %d", id))
			break
		}
	}

	if c.OpenDota.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("OPENDOTA_TIMEOUT_SECONDS must be positive, got %d", c.OpenDota.TimeoutSeconds))
	}

	return errors.Join(errs...)
}

// DSN returns the connection string for the configured driver
func (c *Config) DSN() string {
	d := c.Database
	switch d.Driver {
	case store.DriverSQLite:
		return d.SQLitePath
	case store.DriverLibSQL:
		if d.TursoToken == "" {
			return d.TursoURL
		}
		sep := "?"
		if strings.Contains(d.TursoURL, "?") {
			sep = "&"
		}
		return d.TursoURL + sep + "authToken=" + url.QueryEscape(d.TursoToken)
	default:
		if d.URL != "" {
			return d.URL
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   fmt.Sprintf("%s:%d", d.PGHost, d.PGPort),
			Path:   "/" + d.PGDatabase,
		}
		if d.PGUser != "" {
			if d.PGPassword != "" {
				u.User = url.UserPassword(d.PGUser, d.PGPassword)
			} else {
				u.User = url.User(d.PGUser)
			}
		}
		return u.String()
	}
}

func (c *Config) CatalogTTL() time.Duration {
	return time.Duration(c.Cache.CatalogTTLSeconds) * time.Second
}

func (c *Config) MetaTTL() time.Duration {
	return time.Duration(c.Cache.MetaTTLSeconds) * time.Second
}

func (c *Config) HeroNamesTTL() time.Duration {
	return time.Duration(c.Cache.HeroNamesTTLSeconds) * time.Second
}

func (c *Config) OpenDotaTimeout() time.Duration {
	return time.Duration(c.OpenDota.TimeoutSeconds) * time.Second
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated env strings
var sliceConfigPaths = []string{
	"cache.hot_heroes",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"port":                "server.port",
	"requests_per_minute": "server.requests_per_minute",
	"cron_secret":         "server.cron_secret",

	"db_driver":          "database.driver",
	"database_url":       "database.url",
	"pghost":             "database.pg_host",
	"pgport":             "database.pg_port",
	"pgdatabase":         "database.pg_database",
	"pguser":             "database.pg_user",
	"pgpassword":         "database.pg_password",
	"sqlite_path":        "database.sqlite_path",
	"turso_database_url": "database.turso_url",
	"turso_auth_token":   "database.turso_auth_token",

	"item_constants_ttl_seconds": "cache.catalog_ttl_seconds",
	"hero_meta_ttl_seconds":      "cache.meta_ttl_seconds",
	"hero_names_ttl_seconds":     "cache.hero_names_ttl_seconds",
	"meta_stored_items":          "cache.stored_items",
	"hot_heroes":                 "cache.hot_heroes",

	"opendota_base_url":        "opendota.base_url",
	"opendota_timeout_seconds": "opendota.timeout_seconds",

	"patches_url": "patches.url",

	"discord_webhook_url": "notify.discord_webhook_url",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps known env names to koanf paths; others are dropped
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
