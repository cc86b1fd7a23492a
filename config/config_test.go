package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestLoadConfigFileAndLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	writeFile(t, path, `
storage:
  driver: memory
browser:
  engine: colly
  ready_timeout: 5s
server:
  listen_addr: ":9000"
bot:
  allowed_user_ids: [1, 2]
`)
	writeFile(t, filepath.Join(dir, "config.local.yaml"), `
server:
  listen_addr: ":9001"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "tables", cfg.Storage.Key)
	assert.Equal(t, "colly", cfg.Browser.Engine)
	assert.Equal(t, 5*time.Second, cfg.Browser.ReadyTimeout)
	assert.Equal(t, ":9001", cfg.Server.ListenAddr)
	assert.Equal(t, []int64{1, 2}, cfg.Bot.AllowedUserIDs)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("EVA_LISTEN_ADDR", ":7000")
	t.Setenv("EVA_DOWNLOAD_DIR", "/tmp/out")
	t.Setenv("EVA_TELEGRAM_CHAT_ID", "12345")
	t.Setenv("DATABASE_URL", "postgres://u@localhost/eva")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
	assert.Equal(t, "/tmp/out", cfg.Download.Dir)
	assert.Equal(t, int64(12345), cfg.Notify.TelegramChatID)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://u@localhost/eva", cfg.Storage.DSN)
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "storage:\n  driver: mongo\n")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "storage: [")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}
