package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jose-valero/kodari-bot/internal/app/service"
	"github.com/jose-valero/kodari-bot/internal/domain"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
	"github.com/jose-valero/kodari-bot/internal/infra/storage"
)

// Lambda detrás de API Gateway que recibe cambios de config del dashboard.
// Escribe en la DB, borra la cache y publica config:update para los shards.

var (
	log         = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	secretHdr   = getenv("WEBHOOK_HEADER_NAME", "x-dashboard-secret")
	secretValue = os.Getenv("WEBHOOK_HEADER_VALUE")

	db      *sql.DB
	configs *service.ConfigCache
)

type updateRequest struct {
	GuildID string             `json:"guildId"`
	Patch   domain.ConfigPatch `json:"patch"`
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func init() {
	dsn := os.Getenv("DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")
	if dsn == "" || redisURL == "" {
		log.Warn("DATABASE_URL/REDIS_URL empty; updates will fail with 503")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	db, err = storage.Open(ctx, dsn)
	if err != nil {
		log.Error("db open", "err", err)
		return
	}
	rc, err := cache.New(ctx, redisURL, cache.WithLogger(log))
	if err != nil {
		log.Error("redis", "err", err)
		return
	}
	configs = service.NewConfigCache(storage.NewGuildConfigRepo(db), rc, log)
}

func readSecret(req events.APIGatewayV2HTTPRequest) string {
	k := strings.ToLower(secretHdr)
	if v := req.Headers[k]; v != "" {
		return v
	}
	return req.Headers[secretHdr]
}

func respond(status int, body any) events.APIGatewayV2HTTPResponse {
	b, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	log.Info("webhook hit",
		"path", req.RawPath,
		"method", req.RequestContext.HTTP.Method,
		"ip", req.RequestContext.HTTP.SourceIP,
		"b64", req.IsBase64Encoded)

	// 1) secreto
	got := readSecret(req)
	if secretValue == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secretValue)) != 1 {
		log.Warn("auth: unauthorized (missing/invalid secret)")
		return respond(401, map[string]string{"error": "unauthorized"}), nil
	}

	// 2) body crudo
	body := req.Body
	if req.IsBase64Encoded {
		dec, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return respond(400, map[string]string{"error": "invalid base64"}), nil
		}
		body = string(dec)
	}

	var in updateRequest
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return respond(400, map[string]string{"error": "invalid body: " + err.Error()}), nil
	}
	if in.GuildID == "" || in.Patch.IsEmpty() {
		return respond(400, map[string]string{"error": "guildId and a non-empty patch are required"}), nil
	}

	if configs == nil {
		return respond(503, map[string]string{"error": "backend unavailable"}), nil
	}

	// 3) write-through + broadcast
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cfg, err := configs.UpdateConfig(cctx, in.GuildID, in.Patch)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation):
		return respond(422, map[string]string{"error": err.Error()}), nil
	case errors.Is(err, domain.ErrConnectivity):
		log.Error("update config", "guild", in.GuildID, "err", err)
		return respond(503, map[string]string{"error": "backend unavailable"}), nil
	default:
		log.Error("update config", "guild", in.GuildID, "err", err)
		return respond(500, map[string]string{"error": "internal error"}), nil
	}

	log.Info("config updated", "guild", in.GuildID, "fields", in.Patch.ChangedFields())
	return respond(200, map[string]any{
		"config":        cfg,
		"changedFields": in.Patch.ChangedFields(),
	}), nil
}

func main() { lambda.Start(handler) }
