package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/jose-valero/kodari-bot/internal/infra/storage"
)

const defaultRetentionDays = 90

var log = slog.New(slog.NewJSONHandler(os.Stdout, nil))

func retention() time.Duration {
	days := defaultRetentionDays
	if v := os.Getenv("MODERATION_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return time.Duration(days) * 24 * time.Hour
}

// handler borra los casos de moderación más viejos que la retención.
func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-retention())
	n, err := storage.NewModerationRepo(db).PruneBefore(cctx, cutoff)
	if err != nil {
		log.Error("prune moderation cases", "err", err)
		return "", err
	}
	log.Info("moderation cases pruned", "removed", n, "cutoff", cutoff)
	return fmt.Sprintf("ok: %d removed", n), nil
}

func main() { lambda.Start(handler) }
