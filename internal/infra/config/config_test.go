package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"DATABASE_URL", "REDIS_URL", "DISCORD_BOT_TOKEN", "DISCORD_GUILD_ID",
	"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "YOUTUBE_API_KEY",
	"HTTP_ADDR", "DASHBOARD_SECRET", "CORS_ALLOWED_ORIGINS", "ADMIN_ROLE_IDS",
	"SHARD_ID", "SHARD_COUNT", "SHUTDOWN_TIMEOUT", "RAID_SWEEP_INTERVAL", "LOG_LEVEL",
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func required() map[string]string {
	return map[string]string{
		"DATABASE_URL":      "postgres://localhost/kodari",
		"DISCORD_BOT_TOKEN": "tok",
		"YOUTUBE_API_KEY":   "yt",
	}
}

func TestLoadDefaults(t *testing.T) {
	setEnv(t, required())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 0, cfg.ShardID)
	assert.Equal(t, 1, cfg.ShardCount)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.CORSOrigins)
	assert.False(t, cfg.SpotifyEnabled())
}

func TestLoadReportsAllMissing(t *testing.T) {
	setEnv(t, nil)

	_, err := Load()
	require.Error(t, err)
	for _, k := range []string{"DATABASE_URL", "DISCORD_BOT_TOKEN", "YOUTUBE_API_KEY"} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := required()
	env["SHARD_ID"] = "2"
	env["SHARD_COUNT"] = "4"
	env["LOG_LEVEL"] = "debug"
	env["SHUTDOWN_TIMEOUT"] = "3s"
	env["CORS_ALLOWED_ORIGINS"] = " https://a.example, ,https://b.example "
	env["ADMIN_ROLE_IDS"] = "111,222"
	env["SPOTIFY_CLIENT_ID"] = "id"
	env["SPOTIFY_CLIENT_SECRET"] = "secret"
	setEnv(t, env)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ShardID)
	assert.Equal(t, 4, cfg.ShardCount)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"111", "222"}, cfg.AdminRoleIDs)
	assert.True(t, cfg.SpotifyEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"shard out of range": {"SHARD_ID": "4", "SHARD_COUNT": "4"},
		"shard not a number": {"SHARD_ID": "uno"},
		"bad duration":       {"RAID_SWEEP_INTERVAL": "soon"},
		"bad log level":      {"LOG_LEVEL": "loud"},
	}
	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			env := required()
			for k, v := range extra {
				env[k] = v
			}
			setEnv(t, env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
