package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// RaidDetector mantiene en memoria los joins recientes de cada guild
// (ventana deslizante). Es local al proceso: los eventos de un guild llegan
// a un solo shard, y perderla en un reinicio es aceptable.
type RaidDetector struct {
	configs ConfigSource
	act     modActions
	now     func() time.Time

	mu      sync.Mutex
	windows map[string]*raidWindow
}

type raidWindow struct {
	mu    sync.Mutex
	joins []time.Time
	dead  bool // removida por Sweep; quien la tenga debe volver a buscarla
}

func NewRaidDetector(configs ConfigSource, mod Moderator, cases CaseStore, log *slog.Logger) *RaidDetector {
	if log == nil {
		log = slog.Default()
	}
	return &RaidDetector{
		configs: configs,
		act:     modActions{mod: mod, cases: cases, log: log.With("component", "raid")},
		now:     time.Now,
		windows: make(map[string]*raidWindow),
	}
}

// window devuelve la ventana del guild ya bloqueada.
func (d *RaidDetector) window(guildID string) *raidWindow {
	for {
		d.mu.Lock()
		w, ok := d.windows[guildID]
		if !ok {
			w = &raidWindow{}
			d.windows[guildID] = w
		}
		d.mu.Unlock()

		w.mu.Lock()
		if !w.dead {
			return w
		}
		w.mu.Unlock()
	}
}

// Check registra el join y devuelve true si con él se alcanza el umbral; en
// ese caso el miembro es expulsado y no corresponde bienvenida ni verificación.
func (d *RaidDetector) Check(ctx context.Context, ev domain.JoinEvent) (bool, error) {
	cfg, err := d.configs.GetConfig(ctx, ev.GuildID)
	if err != nil {
		return false, err
	}
	if !cfg.AntiRaidEnabled {
		return false, nil
	}

	at := ev.JoinedAt
	if at.IsZero() {
		at = d.now()
	}
	cutoff := at.Add(-cfg.RaidWindow())

	w := d.window(ev.GuildID)
	w.joins = append(w.joins, at)
	kept := w.joins[:0]
	for _, t := range w.joins {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.joins = kept
	count := len(kept)
	w.mu.Unlock()

	if count < cfg.AntiRaidJoinThreshold {
		return false, nil
	}

	d.act.log.Warn("raid detected", "guild", ev.GuildID, "joins", count, "window_s", cfg.AntiRaidWindowSeconds)
	if err := d.act.mod.KickMember(ctx, ev.GuildID, ev.UserID, "Anti-raid"); err != nil {
		d.act.log.Warn("kick failed", "guild", ev.GuildID, "user", ev.UserID, "err", err)
	}
	d.act.record(ctx, cfg, ev.UserID, domain.ActionRaidKick,
		fmt.Sprintf("%d joins en %ds", count, cfg.AntiRaidWindowSeconds))
	return true, nil
}

// Sweep descarta las ventanas cuyo último join es anterior a now-maxAge.
// Lo corre el housekeeper; sin él, cada guild que tuvo un join alguna vez
// dejaría su ventana en memoria.
func (d *RaidDetector) Sweep(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)
	removed := 0

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, w := range d.windows {
		w.mu.Lock()
		if n := len(w.joins); n == 0 || !w.joins[n-1].After(cutoff) {
			w.dead = true
			delete(d.windows, id)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Joins devuelve cuántos joins tiene hoy la ventana del guild (sin podar).
func (d *RaidDetector) Joins(guildID string) int {
	d.mu.Lock()
	w, ok := d.windows[guildID]
	d.mu.Unlock()
	if !ok {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.joins)
}
