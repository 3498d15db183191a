package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jose-valero/kodari-bot/internal/domain"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
)

const spamTimeout = 60 * time.Second

// SpamDetector cuenta mensajes por (guild, autor) con INCR + TTL en redis.
//
// Es ventana fija: el TTL arranca con el primer mensaje y el contador se
// resetea cuando expira, aunque no se haya llegado al umbral. No es una
// ventana deslizante como la de RaidDetector.
type SpamDetector struct {
	configs ConfigSource
	counter Counter
	act     modActions
}

func NewSpamDetector(configs ConfigSource, counter Counter, mod Moderator, cases CaseStore, log *slog.Logger) *SpamDetector {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "spam")
	return &SpamDetector{
		configs: configs,
		counter: counter,
		act:     modActions{mod: mod, cases: cases, log: log},
	}
}

// Check devuelve true si el mensaje fue tratado como spam; en ese caso el
// resto de los handlers no debe procesarlo. Con umbral T, todo mensaje por
// encima de T se borra y sólo el T+1 aplica el timeout.
func (d *SpamDetector) Check(ctx context.Context, m domain.MessageEvent) (bool, error) {
	if m.IsBot || m.GuildID == "" {
		return false, nil
	}
	cfg, err := d.configs.GetConfig(ctx, m.GuildID)
	if err != nil {
		return false, err
	}
	if !cfg.AntiSpamEnabled {
		return false, nil
	}

	n, err := d.counter.Incr(ctx, cache.SpamRecordKey(m.GuildID, m.AuthorID), cfg.SpamWindow())
	if err != nil {
		return false, fmt.Errorf("spam counter: %w", err)
	}
	threshold := int64(cfg.AntiSpamThreshold)
	if n <= threshold {
		return false, nil
	}

	d.act.deleteMessage(ctx, m)

	if n == threshold+1 {
		if err := d.act.mod.TimeoutMember(ctx, m.GuildID, m.AuthorID, spamTimeout, "Anti-spam"); err != nil {
			d.act.log.Warn("timeout failed", "guild", m.GuildID, "user", m.AuthorID, "err", err)
		}
		d.act.notify(ctx, m.GuildID, m.ChannelID, fmt.Sprintf("🔇 <@%s> fue silenciado por spam.", m.AuthorID))
		d.act.record(ctx, cfg, m.AuthorID, domain.ActionSpamTimeout,
			fmt.Sprintf("%d mensajes en %ds", n, cfg.AntiSpamWindowSeconds))
	}

	d.act.log.Warn("spam detected", "guild", m.GuildID, "user", m.AuthorID, "count", n)
	return true, nil
}
