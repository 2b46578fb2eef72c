package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	realtimeAPIKeyEnv = "OPENAI_API_KEY"
	siteURLEnv        = "PUBLIC_SITE_URL"
	platformURLEnv    = "VERCEL_URL"
	jwtSecretEnv      = "VOICELOG_JWT_SECRET"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Auth        AuthConfig                `json:"auth" yaml:"auth"`
	Realtime    RealtimeConfig            `json:"realtime" yaml:"realtime"`
	Site        SiteConfig                `json:"site" yaml:"site"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address"`
	// Minutes between sweeps of expired access tokens.
	TokenCleanInterval int `json:"token_clean_interval" yaml:"token_clean_interval"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	Params   string `json:"params" yaml:"params"`
}

// RedisConfig is optional; an empty Host disables the token cache.
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type AuthConfig struct {
	JWTSecret       string `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTLMinutes int    `json:"token_ttl_minutes" yaml:"token_ttl_minutes"`
}

type RealtimeConfig struct {
	BaseURL         string `json:"base_url" yaml:"base_url"`
	Model           string `json:"model" yaml:"model"`
	APIKey          string `json:"api_key" yaml:"api_key"`
	TimeoutSeconds  int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	DefaultLanguage string `json:"default_language" yaml:"default_language"`
}

// SiteConfig holds the public URLs used to build auth callback links.
type SiteConfig struct {
	PublicURL   string `json:"public_url" yaml:"public_url"`
	PlatformURL string `json:"platform_url" yaml:"platform_url"`
}

// Load reads configuration from the provided path (defaults to config.json).
// Files ending in .yaml or .yml are decoded as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	for name, db := range cfg.Databases {
		if isSQLite(name) && db.DSN != "" && !strings.HasPrefix(db.DSN, "file:") &&
			db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(siteURLEnv)); v != "" {
		c.Site.PublicURL = v
	}
	if v := strings.TrimSpace(os.Getenv(platformURLEnv)); v != "" {
		c.Site.PlatformURL = v
	}
	if v := strings.TrimSpace(os.Getenv(jwtSecretEnv)); v != "" {
		c.Auth.JWTSecret = v
	}
}

// RealtimeAPIKey returns the voice API secret. The environment wins over the
// file and is read on every call so a rotated key needs no restart.
func (c *Config) RealtimeAPIKey() string {
	if v := strings.TrimSpace(os.Getenv(realtimeAPIKeyEnv)); v != "" {
		return v
	}
	return strings.TrimSpace(c.Realtime.APIKey)
}

// TokenTTL is the lifetime of issued access tokens.
func (c *Config) TokenTTL() time.Duration {
	if c.Auth.TokenTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// RealtimeTimeout bounds the upstream credential call.
func (c *Config) RealtimeTimeout() time.Duration {
	if c.Realtime.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Realtime.TimeoutSeconds) * time.Second
}

func isSQLite(name string) bool {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
