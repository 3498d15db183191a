package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jose-valero/kodari-bot/internal/domain"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
)

const (
	sessionMirrorTTL = time.Hour
	mirrorTimeout    = 2 * time.Second
	defaultVolume    = 100
	maxVolume        = 200
)

// Lo implementa TrackResolver
type Resolver interface {
	Resolve(ctx context.Context, query, requesterID string) (domain.Track, error)
}

// Lo implementa internal/infra/cache.Client
type SessionMirror interface {
	SetValue(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PlayRequest es lo que llega desde /play.
type PlayRequest struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	Query          string
	RequesterID    string
}

// musicSession vive mientras hay conexión de voz. Todos sus campos se tocan
// sólo con el lock del guild tomado.
type musicSession struct {
	guildID       string
	channelID     string
	textChannelID string
	ownerID       string

	conn    VoiceConnection
	queue   []domain.Track
	current *domain.Track
	paused  bool
	volume  int

	// seq identifica la reproducción en curso; un done de una anterior se ignora
	seq uint64

	idle    *time.Timer
	idleGen uint64

	closed bool
}

func (s *musicSession) snapshot() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		GuildID:       s.guildID,
		ChannelID:     s.channelID,
		TextChannelID: s.textChannelID,
		OwnerID:       s.ownerID,
		Queue:         s.queue,
		Current:       s.current,
		Paused:        s.paused,
		Volume:        s.volume,
		UpdatedAt:     time.Now().UTC(),
	}
	return snap.Clone()
}

// MusicEngine es la máquina de estados de música por guild:
// sin sesión -> reproduciendo -> (cola | idle) -> desconectado.
type MusicEngine struct {
	voice    VoiceConnector
	resolver Resolver
	configs  ConfigSource
	mirror   SessionMirror
	log      *slog.Logger

	// idleOverride reemplaza el auto-leave del guild (tests)
	idleOverride time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	locks *keyedMutex

	mu       sync.Mutex
	sessions map[string]*musicSession
	closing  bool
}

type MusicOption func(*MusicEngine)

func WithIdleTimeout(d time.Duration) MusicOption {
	return func(e *MusicEngine) { e.idleOverride = d }
}

func WithMusicLogger(l *slog.Logger) MusicOption {
	return func(e *MusicEngine) { e.log = l }
}

func NewMusicEngine(voice VoiceConnector, resolver Resolver, configs ConfigSource, mirror SessionMirror, opts ...MusicOption) *MusicEngine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &MusicEngine{
		voice:    voice,
		resolver: resolver,
		configs:  configs,
		mirror:   mirror,
		log:      slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		locks:    newKeyedMutex(),
		sessions: make(map[string]*musicSession),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("component", "music")
	return e
}

func (e *MusicEngine) config(ctx context.Context, guildID string) domain.GuildConfig {
	cfg, err := e.configs.GetConfig(ctx, guildID)
	if err != nil {
		e.log.Warn("config unavailable, using defaults", "guild", guildID, "err", err)
		return domain.DefaultGuildConfig(guildID)
	}
	return cfg
}

func (e *MusicEngine) isClosing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing
}

// Play resuelve la query y la reproduce o la encola. La resolución ocurre
// antes de crear la sesión: si falla no queda ninguna conexión de voz abierta.
func (e *MusicEngine) Play(ctx context.Context, req PlayRequest) (domain.Track, error) {
	if e.isClosing() {
		return domain.Track{}, domain.ErrShuttingDown
	}

	track, err := e.resolver.Resolve(ctx, req.Query, req.RequesterID)
	if err != nil {
		return domain.Track{}, err
	}
	cfg := e.config(ctx, req.GuildID)

	unlock := e.locks.Lock(req.GuildID)
	defer unlock()

	s, err := e.session(ctx, req)
	if err != nil {
		return domain.Track{}, err
	}

	if s.current != nil && len(s.queue) >= cfg.MusicMaxQueueLength {
		return domain.Track{}, fmt.Errorf("%w (%d)", domain.ErrQueueFull, cfg.MusicMaxQueueLength)
	}

	// cancelar el timer antes de tocar la cola
	e.cancelIdle(s)

	if s.current == nil {
		s.current = &track
		s.paused = false
		e.start(s)
	} else {
		s.queue = append(s.queue, track)
	}

	e.save(s)
	return track, nil
}

// session devuelve la sesión del guild o la crea uniéndose al canal de voz.
// Requiere el lock del guild.
func (e *MusicEngine) session(ctx context.Context, req PlayRequest) (*musicSession, error) {
	e.mu.Lock()
	s, ok := e.sessions[req.GuildID]
	e.mu.Unlock()
	if ok {
		return s, nil
	}

	conn, err := e.voice.Join(ctx, req.GuildID, req.VoiceChannelID)
	if err != nil {
		return nil, fmt.Errorf("join voice %s: %w", req.VoiceChannelID, err)
	}
	s = &musicSession{
		guildID:       req.GuildID,
		channelID:     req.VoiceChannelID,
		textChannelID: req.TextChannelID,
		ownerID:       req.RequesterID,
		conn:          conn,
		volume:        defaultVolume,
	}

	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		if err := conn.Destroy(); err != nil {
			e.log.Warn("destroy voice failed", "guild", req.GuildID, "err", err)
		}
		return nil, domain.ErrShuttingDown
	}
	e.sessions[req.GuildID] = s
	e.mu.Unlock()

	e.log.Info("voice session created", "guild", req.GuildID, "channel", req.VoiceChannelID, "owner", req.RequesterID)
	return s, nil
}

// start reproduce s.current. El done del motor siempre se despacha en otra
// goroutine porque puede llegar mientras tenemos el lock del guild.
func (e *MusicEngine) start(s *musicSession) {
	s.seq++
	seq := s.seq
	t := *s.current

	err := s.conn.Play(e.ctx, t.URL, s.volume, func(err error) {
		go e.trackEnded(s, seq, err)
	})
	if err != nil {
		go e.trackEnded(s, seq, err)
		return
	}
	e.log.Info("playing", "guild", s.guildID, "title", t.Title, "url", t.URL)
}

// trackEnded es la señal de "quedó idle": fin natural, skip o error del motor.
// Todos se tratan igual; un error nunca destruye la sesión.
func (e *MusicEngine) trackEnded(s *musicSession, seq uint64, playErr error) {
	unlock := e.locks.Lock(s.guildID)
	defer unlock()

	if s.closed || s.seq != seq {
		return
	}
	if playErr != nil {
		e.log.Warn("playback error", "guild", s.guildID, "err", playErr)
	}

	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.current = &next
		s.paused = false
		e.start(s)
	} else {
		s.current = nil
		s.paused = false
		e.armIdle(s)
	}
	e.save(s)
}

func (e *MusicEngine) armIdle(s *musicSession) {
	if e.isClosing() {
		return
	}
	d := e.idleOverride
	if d <= 0 {
		d = e.config(e.ctx, s.guildID).AutoLeave()
	}
	e.cancelIdle(s)
	gen := s.idleGen
	s.idle = time.AfterFunc(d, func() { e.idleExpired(s, gen) })
}

// cancelIdle para el timer e invalida su generación, así un disparo que ya
// está esperando el lock no hace nada.
func (e *MusicEngine) cancelIdle(s *musicSession) {
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	s.idleGen++
}

func (e *MusicEngine) idleExpired(s *musicSession, gen uint64) {
	unlock := e.locks.Lock(s.guildID)
	defer unlock()

	if s.closed || s.idleGen != gen || s.current != nil {
		return
	}
	e.log.Info("idle timeout, leaving voice", "guild", s.guildID)
	_ = e.teardown(s)
}

// teardown destruye la conexión, saca la sesión del mapa y borra el espejo.
// Requiere el lock del guild.
func (e *MusicEngine) teardown(s *musicSession) error {
	s.closed = true
	e.cancelIdle(s)
	s.seq++
	s.queue = nil
	s.current = nil

	s.conn.Stop()
	err := s.conn.Destroy()
	if err != nil {
		e.log.Warn("destroy voice failed", "guild", s.guildID, "err", err)
	}

	e.mu.Lock()
	if e.sessions[s.guildID] == s {
		delete(e.sessions, s.guildID)
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), mirrorTimeout)
	defer cancel()
	if derr := e.mirror.Delete(ctx, cache.MusicSessionKey(s.guildID)); derr != nil {
		e.log.Warn("session mirror delete failed", "guild", s.guildID, "err", derr)
	}
	e.log.Info("voice session closed", "guild", s.guildID)
	return err
}

// save espeja la sesión en redis (best-effort).
func (e *MusicEngine) save(s *musicSession) {
	ctx, cancel := context.WithTimeout(e.ctx, mirrorTimeout)
	defer cancel()
	if err := e.mirror.SetValue(ctx, cache.MusicSessionKey(s.guildID), s.snapshot(), sessionMirrorTTL); err != nil {
		e.log.Warn("session mirror failed", "guild", s.guildID, "err", err)
	}
}

// locked corre fn con el lock del guild y su sesión; ErrNoSession si no hay.
func (e *MusicEngine) locked(guildID string, fn func(s *musicSession) error) error {
	unlock := e.locks.Lock(guildID)
	defer unlock()

	e.mu.Lock()
	s, ok := e.sessions[guildID]
	e.mu.Unlock()
	if !ok {
		return domain.ErrNoSession
	}
	return fn(s)
}

// Skip corta el track actual; el siguiente arranca por el mismo camino que un
// fin natural.
func (e *MusicEngine) Skip(ctx context.Context, guildID string) (domain.Track, error) {
	var skipped domain.Track
	err := e.locked(guildID, func(s *musicSession) error {
		if s.current == nil {
			return fmt.Errorf("nothing playing: %w", domain.ErrNotFound)
		}
		skipped = *s.current
		s.conn.Stop()
		return nil
	})
	return skipped, err
}

func (e *MusicEngine) Pause(ctx context.Context, guildID string) error {
	return e.locked(guildID, func(s *musicSession) error {
		if s.current == nil {
			return fmt.Errorf("nothing playing: %w", domain.ErrNotFound)
		}
		s.conn.Pause()
		s.paused = true
		e.save(s)
		return nil
	})
}

func (e *MusicEngine) Resume(ctx context.Context, guildID string) error {
	return e.locked(guildID, func(s *musicSession) error {
		if s.current == nil {
			return fmt.Errorf("nothing playing: %w", domain.ErrNotFound)
		}
		s.conn.Resume()
		s.paused = false
		e.save(s)
		return nil
	})
}

// SetVolume aplica desde el próximo track.
func (e *MusicEngine) SetVolume(ctx context.Context, guildID string, volume int) error {
	if volume < 0 || volume > maxVolume {
		return &domain.ValidationError{Field: "volume", Reason: fmt.Sprintf("%d outside 0-%d", volume, maxVolume)}
	}
	return e.locked(guildID, func(s *musicSession) error {
		s.volume = volume
		e.save(s)
		return nil
	})
}

// Stop vacía la cola y cierra la sesión. Sólo el dueño (quien la creó) puede.
func (e *MusicEngine) Stop(ctx context.Context, guildID, requesterID string) error {
	return e.locked(guildID, func(s *musicSession) error {
		if s.ownerID != requesterID {
			return domain.ErrNotOwner
		}
		return e.teardown(s)
	})
}

// Disconnect cierra la sesión sin chequear dueño: el bot fue sacado del
// canal de voz o un admin fuerza la salida.
func (e *MusicEngine) Disconnect(ctx context.Context, guildID string) error {
	return e.locked(guildID, e.teardown)
}

// Session devuelve una copia del estado actual del guild.
func (e *MusicEngine) Session(guildID string) (domain.SessionSnapshot, bool) {
	var snap domain.SessionSnapshot
	err := e.locked(guildID, func(s *musicSession) error {
		snap = s.snapshot()
		return nil
	})
	return snap, err == nil
}

// ActiveSessions devuelve los guilds con sesión viva.
func (e *MusicEngine) ActiveSessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		out = append(out, id)
	}
	return out
}

// Cleanup es para el apagado: primero deja de aceptar sesiones y timers,
// después cierra todas las sesiones vivas (en cualquier orden).
func (e *MusicEngine) Cleanup(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	live := make([]*musicSession, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.Unlock()

	var errs []error
	for _, s := range live {
		unlock := e.locks.Lock(s.guildID)
		if !s.closed {
			if err := e.teardown(s); err != nil {
				errs = append(errs, fmt.Errorf("guild %s: %w", s.guildID, err))
			}
		}
		unlock()
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	e.cancel()
	e.log.Info("music cleanup done", "sessions", len(live))
	return errors.Join(errs...)
}
