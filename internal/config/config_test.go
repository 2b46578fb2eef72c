package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadJSONResolvesRelativeSQLitePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{
		"basic_config": {"server_address": ":9000"},
		"databases": {"sqlite3": {"dsn": "data/voicelog.db"}},
		"auth": {"jwt_secret": "s3cret", "token_ttl_minutes": 30}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":9000" {
		t.Fatalf("unexpected address %q", cfg.BasicConfig.ServerAddress)
	}
	want := filepath.Join(dir, "data/voicelog.db")
	if got := cfg.Databases["sqlite3"].DSN; got != want {
		t.Fatalf("dsn not resolved: want %s got %s", want, got)
	}
	if cfg.TokenTTL() != 30*time.Minute {
		t.Fatalf("unexpected ttl %v", cfg.TokenTTL())
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
databases:
  mysql:
    host: db
    port: 3306
    username: app
    db_name: voicelog
    params: parseTime=true
realtime:
  base_url: https://example.test
  api_key: from-file
site:
  public_url: voicelog.example.com
`)
	t.Setenv(realtimeAPIKeyEnv, "")
	t.Setenv(siteURLEnv, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Databases["mysql"].Port != 3306 {
		t.Fatalf("mysql port not decoded: %+v", cfg.Databases["mysql"])
	}
	if cfg.Site.PublicURL != "voicelog.example.com" {
		t.Fatalf("site url not decoded: %q", cfg.Site.PublicURL)
	}
	if cfg.RealtimeAPIKey() != "from-file" {
		t.Fatalf("expected file api key, got %q", cfg.RealtimeAPIKey())
	}
	if cfg.RealtimeTimeout() != 15*time.Second {
		t.Fatalf("unexpected default timeout %v", cfg.RealtimeTimeout())
	}
}

func TestRealtimeAPIKeyPrefersEnv(t *testing.T) {
	cfg := &Config{Realtime: RealtimeConfig{APIKey: "file"}}
	t.Setenv(realtimeAPIKeyEnv, "env")
	if got := cfg.RealtimeAPIKey(); got != "env" {
		t.Fatalf("expected env key, got %q", got)
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"basic_config": {}}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error without databases")
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
