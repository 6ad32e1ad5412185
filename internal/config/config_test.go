package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Leaderboard.DefaultPageSize)
	assert.Equal(t, 100, cfg.Leaderboard.MaxPageSize)
	assert.Equal(t, 100, cfg.Leaderboard.SnapshotTopN)
	assert.Equal(t, 30, cfg.Leaderboard.HistoryLimit)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, "postgres://flexboard:@localhost:5432/flexboard?sslmode=disable", cfg.Database.DSN())
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
database:
  host: db.internal
  port: 6543
admin:
  ids: ["admin-1"]
leaderboard:
  regions: ["US", "EU"]
scheduler:
  interval: 30m
telegram:
  token: abc
  chat_id: -100123
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("DATABASE_PASSWORD", "secret")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, []string{"US", "EU"}, cfg.Leaderboard.Regions)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
	assert.True(t, cfg.IsAdmin("admin-1"))
	assert.False(t, cfg.IsAdmin("someone"))
	assert.True(t, cfg.TelegramEnabled())
}

func TestValidate(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	cfg.Leaderboard.DefaultPageSize = 500
	assert.Error(t, cfg.Validate())

	cfg.Leaderboard.DefaultPageSize = 50
	cfg.Scheduler.Interval = 0
	assert.Error(t, cfg.Validate())
}
