package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL  string
	RedisURL     string
	DiscordToken string

	// opcional: registra los slash commands sólo en este guild (desarrollo)
	DiscordGuildID string
	AdminRoleIDs   []string

	// Sharding: este proceso atiende los guilds con (guild_id >> 22) % ShardCount == ShardID.
	ShardID    int
	ShardCount int

	SpotifyClientID     string
	SpotifyClientSecret string
	YouTubeAPIKey       string

	HTTPAddr        string // opcional, default :8080
	DashboardSecret string
	CORSOrigins     []string

	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	SweepInterval   time.Duration
}

// Load lee el entorno del proceso. Las variables requeridas que faltan se
// reportan juntas en un solo error.
func Load() (Config, error) {
	var missing []string
	get := func(k string, req bool) string {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" && req {
			missing = append(missing, k)
		}
		return v
	}

	cfg := Config{
		DatabaseURL:         get("DATABASE_URL", true),
		RedisURL:            get("REDIS_URL", false),
		DiscordToken:        get("DISCORD_BOT_TOKEN", true),
		DiscordGuildID:      get("DISCORD_GUILD_ID", false),
		SpotifyClientID:     get("SPOTIFY_CLIENT_ID", false),
		SpotifyClientSecret: get("SPOTIFY_CLIENT_SECRET", false),
		YouTubeAPIKey:       get("YOUTUBE_API_KEY", true),
		HTTPAddr:            get("HTTP_ADDR", false),
		DashboardSecret:     get("DASHBOARD_SECRET", false),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing env: %s", strings.Join(missing, ", "))
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.CORSOrigins = splitList(get("CORS_ALLOWED_ORIGINS", false))
	cfg.AdminRoleIDs = splitList(get("ADMIN_ROLE_IDS", false))

	var err error
	if cfg.ShardID, err = intEnv("SHARD_ID", 0); err != nil {
		return Config{}, err
	}
	if cfg.ShardCount, err = intEnv("SHARD_COUNT", 1); err != nil {
		return Config{}, err
	}
	if cfg.ShardCount < 1 || cfg.ShardID < 0 || cfg.ShardID >= cfg.ShardCount {
		return Config{}, fmt.Errorf("invalid shard %d/%d", cfg.ShardID, cfg.ShardCount)
	}
	if cfg.ShutdownTimeout, err = durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationEnv("RAID_SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(getOr("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// SpotifyEnabled: sin credenciales los links de Spotify no se resuelven.
func (c Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
