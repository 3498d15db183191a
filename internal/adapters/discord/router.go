package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/kodari-bot/internal/app/service"
)

// Services agrupa lo que el router despacha.
type Services struct {
	Configs  *service.ConfigCache
	Spam     *service.SpamDetector
	Raid     *service.RaidDetector
	Links    *service.LinkFilter
	Verifier *service.Verifier
	Music    *service.MusicEngine
}

type Router struct {
	s   *discordgo.Session
	log *slog.Logger
	// guildID vacío: comandos globales
	guildID      string
	adminRoleIDs []string

	configs  *service.ConfigCache
	spam     *service.SpamDetector
	raid     *service.RaidDetector
	links    *service.LinkFilter
	verifier *service.Verifier
	music    *service.MusicEngine
	mod      *Moderator

	commands     map[string]Command
	clickLimiter *userLimiter
}

func NewRouter(s *discordgo.Session, log *slog.Logger, guildID string, adminRoleIDs []string, svc Services) *Router {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{
		s:            s,
		log:          log.With("component", "router"),
		guildID:      guildID,
		adminRoleIDs: adminRoleIDs,
		configs:      svc.Configs,
		spam:         svc.Spam,
		raid:         svc.Raid,
		links:        svc.Links,
		verifier:     svc.Verifier,
		music:        svc.Music,
		mod:          NewModerator(s),
		clickLimiter: newUserLimiter(time.Second),
	}
	r.commands = make(map[string]Command)
	for _, c := range r.commandTable() {
		r.commands[c.Def.Name] = c
	}
	return r
}

// Register da de alta los slash commands (en el guild de pruebas o globales).
func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, c := range r.commandTable() {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, c.Def); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) Handlers() {
	r.s.AddHandler(r.onInteraction)
	r.s.AddHandler(r.onReady)
	r.s.AddHandler(r.onMessageCreate)
	r.s.AddHandler(r.onGuildMemberAdd)
	r.s.AddHandler(r.onVoiceStateUpdate)
}

// SweepLimiters limpia el rate limit de botones; lo agenda el housekeeper.
func (r *Router) SweepLimiters(context.Context) {
	if n := r.clickLimiter.Sweep(); n > 0 {
		r.log.Debug("click limiter swept", "entries", n)
	}
}

func (r *Router) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.GuildID == "" || ic.Member == nil || ic.Member.User == nil {
		return
	}
	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		r.handleSlashCommand(s, ic)
	case discordgo.InteractionMessageComponent:
		r.handleMessageComponent(s, ic)
	}
}

func (r *Router) newCtx(s *discordgo.Session, ic *discordgo.InteractionCreate) *Ctx {
	return &Ctx{
		Log:       r.log.With("guild", ic.GuildID, "user", ic.Member.User.ID),
		Session:   s,
		Event:     ic,
		GuildID:   ic.GuildID,
		UserID:    ic.Member.User.ID,
		ChannelID: ic.ChannelID,
	}
}
