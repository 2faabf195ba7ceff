package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, RoleAll, cfg.Role)
	assert.Equal(t, "sqlite", cfg.Index.Driver)
	assert.Equal(t, "none", cfg.Queue.Driver)
	assert.Equal(t, time.Minute, cfg.Scheduler.RunNowDelay)
	assert.Equal(t, 600*time.Second, cfg.Cache.RecentTTL)
	assert.Equal(t, 200, cfg.Feed.PageSize)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.yaml")
	body := []byte(`
role: all
index:
  driver: postgres
  dsn: postgres://papers@localhost/papers
timeouts:
  feed: 5s
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))
	t.Setenv("PAPERNOTIFIER_TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Index.Driver)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Feed)
	assert.Equal(t, "42", cfg.Telegram.ChatID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown role", func(c *Config) { c.Role = "janitor" }},
		{"unknown index", func(c *Config) { c.Index.Driver = "elastic" }},
		{"empty dsn", func(c *Config) { c.Index.DSN = "" }},
		{"pubsub without project", func(c *Config) { c.Queue.Driver = "pubsub" }},
		{"split role on local queue", func(c *Config) { c.Role = RoleCrawler }},
		{"zero timeout", func(c *Config) { c.Timeouts.Scorer = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	split := base
	split.Role = RoleNotifier
	split.Queue.Driver = "pubsub"
	split.Queue.ProjectID = "papers"
	split.State.Driver = "redis"
	assert.NoError(t, split.Validate())
}
