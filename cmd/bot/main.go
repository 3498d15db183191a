package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	discordrouter "github.com/jose-valero/kodari-bot/internal/adapters/discord"
	"github.com/jose-valero/kodari-bot/internal/adapters/httpdash"
	"github.com/jose-valero/kodari-bot/internal/adapters/spotify"
	"github.com/jose-valero/kodari-bot/internal/adapters/youtube"
	"github.com/jose-valero/kodari-bot/internal/app/service"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
	"github.com/jose-valero/kodari-bot/internal/infra/config"
	"github.com/jose-valero/kodari-bot/internal/infra/storage"
)

// las ventanas de raid duran como mucho 60s; lo que no se tocó en 2 min sobra
const raidWindowMaxAge = 2 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)
	log = log.With("shard", cfg.ShardID)

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(ctx, db, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("✅ DB lista y migrada")

	// Redis
	rc, err := cache.New(ctx, cfg.RedisURL, cache.WithLogger(log))
	if err != nil {
		return err
	}
	log.Info("✅ Redis conectado")

	// Repos
	configRepo := storage.NewGuildConfigRepo(db)
	caseRepo := storage.NewModerationRepo(db)

	// Config cache + invalidación entre shards
	configs := service.NewConfigCache(configRepo, rc, log)
	if err := configs.Start(ctx); err != nil {
		_ = rc.Close()
		return err
	}

	// Discord session
	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		return err
	}
	s.ShardID = cfg.ShardID
	s.ShardCount = cfg.ShardCount
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates

	// Proveedores de música
	var meta service.MetadataProvider
	if cfg.SpotifyEnabled() {
		meta = spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	} else {
		log.Warn("spotify disabled: missing credentials")
	}
	search, err := youtube.NewSearcher(ctx, log, option.WithAPIKey(cfg.YouTubeAPIKey))
	if err != nil {
		return err
	}

	// Services
	mod := discordrouter.NewModerator(s)
	spam := service.NewSpamDetector(configs, rc, mod, caseRepo, log)
	raid := service.NewRaidDetector(configs, mod, caseRepo, log)
	links := service.NewLinkFilter(configs, mod, caseRepo, log)
	verifier := service.NewVerifier(configs, log)
	voice := discordrouter.NewVoiceConnector(s, youtube.NewStreamer(), log)
	music := service.NewMusicEngine(voice, service.NewTrackResolver(meta, search), configs, rc,
		service.WithMusicLogger(log))

	// Router
	r := discordrouter.NewRouter(s, log, cfg.DiscordGuildID, cfg.AdminRoleIDs, discordrouter.Services{
		Configs:  configs,
		Spam:     spam,
		Raid:     raid,
		Links:    links,
		Verifier: verifier,
		Music:    music,
	})
	r.Handlers()

	if err := s.Open(); err != nil {
		return err
	}
	log.Info("✅ Conectado", "user", s.State.User.Username, "id", s.State.User.ID)
	if err := r.Register(); err != nil {
		_ = s.Close()
		return err
	}
	log.Info("✅ comandos registrados", "guild", cfg.DiscordGuildID)

	// Housekeeping
	hk := service.NewHousekeeper(2, log)
	hk.Every("raid-sweep", cfg.SweepInterval, func(context.Context) {
		if n := raid.Sweep(time.Now(), raidWindowMaxAge); n > 0 {
			log.Debug("raid windows swept", "removed", n)
		}
	})
	hk.Every("click-limiter-sweep", cfg.SweepInterval, r.SweepLimiters)

	// Dashboard HTTP (sólo en el shard 0)
	httpCtx, stopHTTP := context.WithCancel(context.Background())
	defer stopHTTP()
	if cfg.ShardID == 0 && cfg.DashboardSecret != "" {
		web := httpdash.New(cfg.DashboardSecret, configs, rc, cfg.CORSOrigins, log)
		go func() {
			if err := web.Start(httpCtx, cfg.HTTPAddr); err != nil {
				log.Error("http server", "err", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("🛑 apagando…")
	shutdown(cfg.ShutdownTimeout, log, music, hk, configs, rc, s, stopHTTP)
	return nil
}

// shutdown en dos fases: primero lo que tiene estado vivo (voz, timers,
// housekeeping), después las conexiones (pub/sub, redis, discord).
// La DB la cierra el defer de run.
func shutdown(timeout time.Duration, log *slog.Logger, music *service.MusicEngine, hk *service.Housekeeper,
	configs *service.ConfigCache, rc *cache.Client, s *discordgo.Session, stopHTTP context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// fase 1
	if err := music.Cleanup(ctx); err != nil {
		log.Error("music cleanup", "err", err)
	}
	hk.Stop()
	stopHTTP()

	// fase 2
	if err := configs.Close(); err != nil {
		log.Error("config subscription close", "err", err)
	}
	if err := rc.Close(); err != nil {
		log.Error("redis close", "err", err)
	}
	if err := s.Close(); err != nil {
		log.Error("discord close", "err", err)
	}
	log.Info("👋 listo")
}
