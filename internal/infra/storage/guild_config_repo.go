package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

const guildConfigColumns = `guild_id, prefix, welcome_channel_id, welcome_message, welcome_role_id,
       log_channel_id, mod_log_channel_id,
       anti_spam_enabled, anti_spam_threshold, anti_spam_window_seconds,
       anti_raid_enabled, anti_raid_join_threshold, anti_raid_window_seconds,
       link_filter_enabled, link_allowlist, link_denylist,
       music_max_queue_length, music_auto_leave_seconds,
       verification_enabled, verification_role_id, verification_channel_id, min_account_age_days,
       updated_at`

type GuildConfigRepo struct{ db *sql.DB }

func NewGuildConfigRepo(db *sql.DB) *GuildConfigRepo { return &GuildConfigRepo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGuildConfig(row rowScanner) (domain.GuildConfig, error) {
	var c domain.GuildConfig
	err := row.Scan(
		&c.GuildID, &c.Prefix, &c.WelcomeChannelID, &c.WelcomeMessage, &c.WelcomeRoleID,
		&c.LogChannelID, &c.ModLogChannelID,
		&c.AntiSpamEnabled, &c.AntiSpamThreshold, &c.AntiSpamWindowSeconds,
		&c.AntiRaidEnabled, &c.AntiRaidJoinThreshold, &c.AntiRaidWindowSeconds,
		&c.LinkFilterEnabled, pq.Array(&c.LinkAllowlist), pq.Array(&c.LinkDenylist),
		&c.MusicMaxQueueLength, &c.MusicAutoLeaveSeconds,
		&c.VerificationEnabled, &c.VerificationRoleID, &c.VerificationChannelID, &c.MinAccountAgeDays,
		&c.UpdatedAt,
	)
	if c.LinkAllowlist == nil {
		c.LinkAllowlist = []string{}
	}
	if c.LinkDenylist == nil {
		c.LinkDenylist = []string{}
	}
	return c, err
}

// ensure inserta la fila con los defaults de la tabla si no existe.
func (r *GuildConfigRepo) ensure(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO guild_configs (guild_id) VALUES ($1)
ON CONFLICT (guild_id) DO NOTHING
`, guildID)
	return err
}

// GetOrCreate devuelve la config guardada; en el primer acceso inserta los defaults.
func (r *GuildConfigRepo) GetOrCreate(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	query := `SELECT ` + guildConfigColumns + ` FROM guild_configs WHERE guild_id = $1`

	c, err := scanGuildConfig(r.db.QueryRowContext(ctx, query, guildID))
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.ensure(ctx, guildID); err != nil {
			return domain.GuildConfig{}, dbErr("create guild config "+guildID, err)
		}
		c, err = scanGuildConfig(r.db.QueryRowContext(ctx, query, guildID))
	}
	if err != nil {
		return domain.GuildConfig{}, dbErr("get guild config "+guildID, err)
	}
	return c, nil
}

// Update aplica los campos seteados de p y devuelve la fila resultante.
// Validar p es responsabilidad de quien llama.
func (r *GuildConfigRepo) Update(ctx context.Context, guildID string, p domain.ConfigPatch) (domain.GuildConfig, error) {
	if p.IsEmpty() {
		return r.GetOrCreate(ctx, guildID)
	}
	if err := r.ensure(ctx, guildID); err != nil {
		return domain.GuildConfig{}, dbErr("create guild config "+guildID, err)
	}

	cols, vals := p.Columns()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
		if list, ok := vals[i].([]string); ok {
			args = append(args, pq.Array(list))
			continue
		}
		args = append(args, vals[i])
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, guildID)

	q := fmt.Sprintf(`
UPDATE guild_configs
   SET %s
 WHERE guild_id = $%d
RETURNING `+guildConfigColumns, strings.Join(sets, ", "), len(args))

	c, err := scanGuildConfig(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return domain.GuildConfig{}, dbErr("update guild config "+guildID, err)
	}
	return c, nil
}
