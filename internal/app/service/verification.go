package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// Verifier decide si un miembro nuevo cumple la antigüedad mínima de cuenta.
type Verifier struct {
	configs ConfigSource
	log     *slog.Logger
	now     func() time.Time
}

func NewVerifier(configs ConfigSource, log *slog.Logger) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	return &Verifier{configs: configs, log: log.With("component", "verification"), now: time.Now}
}

// Check devuelve true si la verificación está apagada o la cuenta es
// suficientemente vieja.
func (v *Verifier) Check(ctx context.Context, ev domain.JoinEvent) (bool, error) {
	cfg, err := v.configs.GetConfig(ctx, ev.GuildID)
	if err != nil {
		return false, err
	}
	if !cfg.VerificationEnabled {
		return true, nil
	}
	age := v.now().Sub(ev.AccountCreatedAt)
	minAge := time.Duration(cfg.MinAccountAgeDays) * 24 * time.Hour
	if age < minAge {
		v.log.Info("suspicious account", "guild", ev.GuildID, "user", ev.UserID, "age_days", int(age.Hours()/24))
		return false, nil
	}
	return true, nil
}
