package httpdash

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/jose-valero/kodari-bot/internal/domain"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
)

const SecretHeader = "X-Dashboard-Secret"

// Lo implementa service.ConfigCache
type ConfigService interface {
	GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, error)
	UpdateConfig(ctx context.Context, guildID string, patch domain.ConfigPatch) (domain.GuildConfig, error)
}

// Lo implementa cache.Client: el espejo de sesiones de música de todos los shards.
type SessionReader interface {
	LoadValue(ctx context.Context, key string, dst any) (bool, error)
}

type Server struct {
	secret   string
	configs  ConfigService
	sessions SessionReader
	log      *slog.Logger
	handler  http.Handler
}

func New(secret string, configs ConfigService, sessions SessionReader, origins []string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{secret: secret, configs: configs, sessions: sessions, log: log.With("component", "httpdash")}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/guilds/{id:[0-9]+}").Subrouter()
	api.Use(s.requireSecret)
	api.HandleFunc("/config", s.handleGetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config", s.handlePatchConfig).Methods(http.MethodPatch)
	api.HandleFunc("/music", s.handleMusic).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPatch},
		AllowedHeaders: []string{"Content-Type", SecretHeader},
	})
	s.handler = c.Handler(r)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start bloquea hasta que ctx se cancela; después apaga con gracia.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("🌐 HTTP listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if s.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg, err := s.configs.GetConfig(r.Context(), id)
	if err != nil {
		s.fail(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type patchResponse struct {
	Config        domain.GuildConfig `json:"config"`
	ChangedFields []string           `json:"changedFields"`
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch domain.ConfigPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error(), "")
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "empty patch", "")
		return
	}

	cfg, err := s.configs.UpdateConfig(r.Context(), id, patch)
	if err != nil {
		s.fail(w, id, err)
		return
	}
	s.log.Info("config updated from dashboard", "guild", id, "fields", patch.ChangedFields())
	writeJSON(w, http.StatusOK, patchResponse{Config: cfg, ChangedFields: patch.ChangedFields()})
}

func (s *Server) handleMusic(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var snap domain.SessionSnapshot
	ok, err := s.sessions.LoadValue(r.Context(), cache.MusicSessionKey(id), &snap)
	if err != nil {
		s.fail(w, id, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no music session", "")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) fail(w http.ResponseWriter, guildID string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Reason, verr.Field)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, domain.ErrConnectivity):
		s.log.Warn("backend unavailable", "guild", guildID, "err", err)
		writeError(w, http.StatusServiceUnavailable, "backend unavailable", "")
	default:
		s.log.Error("request failed", "guild", guildID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, errorBody{Error: msg, Field: field})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
