package discord

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// userVoiceChannel: canal de voz donde está el usuario, según el state del gateway.
func (r *Router) userVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := r.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// Si al bot lo sacan del canal (o lo desconecta un admin) la sesión se cierra.
// Nuestro propio teardown también dispara este evento: ahí ya no hay sesión.
func (r *Router) onVoiceStateUpdate(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || vs.UserID != s.State.User.ID || vs.ChannelID != "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.music.Disconnect(ctx, vs.GuildID)
	switch {
	case err == nil:
		r.log.Info("bot removed from voice, session closed", "guild", vs.GuildID)
	case !errors.Is(err, domain.ErrNoSession):
		r.log.Warn("voice disconnect cleanup failed", "guild", vs.GuildID, "err", err)
	}
}
