package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

type ModerationRepo struct{ db *sql.DB }

func NewModerationRepo(db *sql.DB) *ModerationRepo { return &ModerationRepo{db: db} }

// RecordCase incrementa el contador de casos del guild y guarda el caso con
// el número nuevo, todo en una sola sentencia.
func (r *ModerationRepo) RecordCase(ctx context.Context, c domain.ModerationCase) (domain.ModerationCase, error) {
	err := r.db.QueryRowContext(ctx, `
WITH n AS (
  INSERT INTO guild_case_counters (guild_id, last_case) VALUES ($1, 1)
  ON CONFLICT (guild_id) DO UPDATE SET last_case = guild_case_counters.last_case + 1
  RETURNING last_case
)
INSERT INTO moderation_cases (guild_id, case_number, user_id, action, reason)
SELECT $1, n.last_case, $2, $3, $4 FROM n
RETURNING case_number, created_at
`, c.GuildID, c.UserID, string(c.Action), c.Reason).Scan(&c.CaseNumber, &c.CreatedAt)
	if err != nil {
		return domain.ModerationCase{}, dbErr(fmt.Sprintf("record case %s/%s", c.GuildID, c.Action), err)
	}
	return c, nil
}

// PruneBefore borra los casos anteriores a t. Los contadores quedan, así los
// números de caso nunca se repiten.
func (r *ModerationRepo) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM moderation_cases WHERE created_at < $1`, t)
	if err != nil {
		return 0, dbErr("prune cases", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
