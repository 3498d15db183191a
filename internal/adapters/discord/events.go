package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

const (
	eventTimeout   = 10 * time.Second
	prewarmTimeout = 30 * time.Second
)

func (r *Router) onReady(s *discordgo.Session, ev *discordgo.Ready) {
	ids := make([]string, 0, len(ev.Guilds))
	for _, g := range ev.Guilds {
		ids = append(ids, g.ID)
	}
	r.log.Info("🤖 bot listo", "user", ev.User.Username, "guilds", len(ids), "shard", s.ShardID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), prewarmTimeout)
		defer cancel()
		n := r.configs.PrewarmCache(ctx, ids)
		r.log.Info("config cache prewarmed", "loaded", n, "guilds", len(ids))
	}()
}

// messageCreate: spam primero, después links. Si uno actuó, el otro no corre.
func (r *Router) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" || m.Author == nil || m.Author.Bot {
		return
	}
	ev := domain.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		AuthorID:  m.Author.ID,
		Content:   m.Content,
		IsBot:     m.Author.Bot,
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	log := r.log.With("guild", m.GuildID, "user", m.Author.ID)

	handled, err := r.spam.Check(ctx, ev)
	if err != nil {
		log.Warn("spam check failed", "err", err)
	}
	if handled {
		return
	}
	if _, err := r.links.Check(ctx, ev); err != nil {
		log.Warn("link filter failed", "err", err)
	}
}

// guildMemberAdd: raid, verificación, bienvenida y rol de bienvenida.
func (r *Router) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	log := r.log.With("guild", m.GuildID, "user", m.User.ID)

	created, _ := discordgo.SnowflakeTimestamp(m.User.ID)
	ev := domain.JoinEvent{
		GuildID:          m.GuildID,
		UserID:           m.User.ID,
		AccountCreatedAt: created,
		JoinedAt:         m.JoinedAt,
	}

	raid, err := r.raid.Check(ctx, ev)
	if err != nil {
		log.Warn("raid check failed", "err", err)
	}
	if raid {
		return
	}

	verified, err := r.verifier.Check(ctx, ev)
	if err != nil {
		log.Warn("verification failed", "err", err)
	}

	cfg, err := r.configs.GetConfig(ctx, m.GuildID)
	if err != nil {
		log.Error("config unavailable for welcome", "err", err)
		return
	}

	if cfg.WelcomeChannelID != "" {
		name, count := r.guildInfo(m.GuildID)
		text := welcomeText(cfg.WelcomeMessage, m.User.ID, name, count)
		if err := r.mod.SendMessage(ctx, cfg.WelcomeChannelID, text); err != nil {
			log.Warn("welcome message failed", "err", err)
		}
	}
	if cfg.WelcomeRoleID != "" && verified {
		if err := r.mod.AddRole(ctx, m.GuildID, m.User.ID, cfg.WelcomeRoleID); err != nil {
			log.Warn("welcome role failed", "err", err)
		}
	}
	if cfg.VerificationEnabled && cfg.VerificationRoleID != "" && verified {
		if err := r.mod.AddRole(ctx, m.GuildID, m.User.ID, cfg.VerificationRoleID); err != nil {
			log.Warn("verification role failed", "err", err)
		}
	}
}

func (r *Router) guildInfo(guildID string) (string, int) {
	g, err := r.s.State.Guild(guildID)
	if err != nil || g == nil {
		return "", 0
	}
	return g.Name, g.MemberCount
}
