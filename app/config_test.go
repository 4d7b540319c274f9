package app

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigValid(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  username: "@gebeyabot"
  admin_ids: [1, 2]
  run_mode: "polling"
database:
  host: "localhost"
  name: "gebeya"
market:
  channel_id: -100123
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Core.Telegram.Username != "gebeyabot" {
		t.Errorf("username not normalized: %q", cfg.Core.Telegram.Username)
	}
	if cfg.Core.Telegram.RunMode != "longpoll" {
		t.Errorf("run mode alias not normalized: %q", cfg.Core.Telegram.RunMode)
	}
	if !cfg.Database.Enabled() {
		t.Error("database should be enabled")
	}
	if cfg.Market.ChannelID != -100123 {
		t.Errorf("channel id = %d", cfg.Market.ChannelID)
	}
	if !cfg.Core.Telegram.IsAdmin(2) || cfg.Core.Telegram.IsAdmin(3) {
		t.Error("admin list not honored")
	}
}

func TestLoadConfigMissingToken(t *testing.T) {
	path := writeConfig(t, `
telegram:
  admin_ids: [1]
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestLoadConfigMissingAdmins(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for empty admin list")
	}
}
