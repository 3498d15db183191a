package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

var urlRe = regexp.MustCompile(`(?i)https?://[^\s]+`)

// LinkFilter borra mensajes con links a dominios de la denylist o, si hay
// allowlist, a dominios fuera de ella. El match es por substring del host.
type LinkFilter struct {
	configs ConfigSource
	act     modActions
}

func NewLinkFilter(configs ConfigSource, mod Moderator, cases CaseStore, log *slog.Logger) *LinkFilter {
	if log == nil {
		log = slog.Default()
	}
	return &LinkFilter{
		configs: configs,
		act:     modActions{mod: mod, cases: cases, log: log.With("component", "linkfilter")},
	}
}

func (f *LinkFilter) Check(ctx context.Context, m domain.MessageEvent) (bool, error) {
	if m.IsBot || m.GuildID == "" {
		return false, nil
	}
	cfg, err := f.configs.GetConfig(ctx, m.GuildID)
	if err != nil {
		return false, err
	}
	if !cfg.LinkFilterEnabled {
		return false, nil
	}

	for _, raw := range urlRe.FindAllString(m.Content, -1) {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())

		var notice string
		switch {
		case hostMatches(host, cfg.LinkDenylist):
			notice = fmt.Sprintf("🚫 <@%s> no se permiten links de ese dominio.", m.AuthorID)
		case len(cfg.LinkAllowlist) > 0 && !hostMatches(host, cfg.LinkAllowlist):
			notice = fmt.Sprintf("🚫 <@%s> sólo se permiten links de dominios autorizados.", m.AuthorID)
		default:
			continue
		}

		f.act.deleteMessage(ctx, m)
		f.act.notify(ctx, m.GuildID, m.ChannelID, notice)
		f.act.record(ctx, cfg, m.AuthorID, domain.ActionLinkBlocked, host)
		f.act.log.Warn("link blocked", "guild", m.GuildID, "user", m.AuthorID, "host", host)
		return true, nil
	}
	return false, nil
}

func hostMatches(host string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(host, p) {
			return true
		}
	}
	return false
}
