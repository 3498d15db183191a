package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// modActions agrupa los efectos de moderación compartidos por los detectores.
// Todo es best-effort: los errores se loguean y nunca suben.
type modActions struct {
	mod   Moderator
	cases CaseStore
	log   *slog.Logger
}

func (a modActions) deleteMessage(ctx context.Context, m domain.MessageEvent) {
	if err := a.mod.DeleteMessage(ctx, m.ChannelID, m.MessageID); err != nil {
		a.log.Warn("delete message failed", "guild", m.GuildID, "msg", m.MessageID, "err", err)
	}
}

func (a modActions) notify(ctx context.Context, guildID, channelID, content string) {
	if channelID == "" {
		return
	}
	if err := a.mod.SendMessage(ctx, channelID, content); err != nil {
		a.log.Warn("send notice failed", "guild", guildID, "channel", channelID, "err", err)
	}
}

// record guarda el caso y lo publica en el canal de mod-log si hay uno.
func (a modActions) record(ctx context.Context, cfg domain.GuildConfig, userID string, action domain.ModerationAction, reason string) {
	if a.cases == nil {
		return
	}
	c, err := a.cases.RecordCase(ctx, domain.ModerationCase{
		GuildID: cfg.GuildID,
		UserID:  userID,
		Action:  action,
		Reason:  reason,
	})
	if err != nil {
		a.log.Warn("record case failed", "guild", cfg.GuildID, "user", userID, "action", action, "err", err)
		return
	}
	a.notify(ctx, cfg.GuildID, cfg.ModLogChannelID,
		fmt.Sprintf("📝 Caso #%d · <@%s> · `%s` · %s", c.CaseNumber, userID, action, reason))
}
