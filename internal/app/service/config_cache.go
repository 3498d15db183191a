package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jose-valero/kodari-bot/internal/domain"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
)

const (
	configCacheTTL      = time.Hour
	configFillTimeout   = 10 * time.Second
	defaultPrewarmLimit = 8
)

// ConfigCache es cache-aside de GuildConfig: mapa local -> redis -> postgres.
// Las escrituras se difunden por config:update para que todos los shards
// descarten su copia local.
type ConfigCache struct {
	store ConfigStore
	cache Cache
	log   *slog.Logger

	ttl          time.Duration
	prewarmLimit int

	mu    sync.RWMutex
	local map[string]domain.GuildConfig
	// gen se incrementa en cada invalidación; un fill que empezó antes no
	// puede volver a poblar el mapa local.
	gen map[string]uint64

	fills singleflight.Group

	subMu sync.Mutex
	sub   *cache.Subscription
}

func NewConfigCache(store ConfigStore, c Cache, log *slog.Logger) *ConfigCache {
	if log == nil {
		log = slog.Default()
	}
	return &ConfigCache{
		store:        store,
		cache:        c,
		log:          log.With("component", "config_cache"),
		ttl:          configCacheTTL,
		prewarmLimit: defaultPrewarmLimit,
		local:        make(map[string]domain.GuildConfig),
		gen:          make(map[string]uint64),
	}
}

// GetConfig nunca falla por guild inexistente: el store crea los defaults.
// Sólo devuelve error si el store falla; redis caído se trata como frío.
func (c *ConfigCache) GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	c.mu.RLock()
	cfg, ok := c.local[guildID]
	gen := c.gen[guildID]
	c.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	// la clave incluye gen: quien llega después de una invalidación no se
	// suma a un fill viejo
	key := fmt.Sprintf("%s#%d", guildID, gen)
	ch := c.fills.DoChan(key, func() (any, error) {
		// el fill es compartido: no depende del ctx de quien lo disparó
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), configFillTimeout)
		defer cancel()
		return c.fill(fctx, guildID, gen)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return domain.GuildConfig{}, r.Err
		}
		return r.Val.(domain.GuildConfig), nil
	case <-ctx.Done():
		return domain.GuildConfig{}, ctx.Err()
	}
}

func (c *ConfigCache) fill(ctx context.Context, guildID string, gen uint64) (domain.GuildConfig, error) {
	var cfg domain.GuildConfig
	hit, err := c.cache.LoadValue(ctx, cache.GuildConfigKey(guildID), &cfg)
	if err != nil {
		c.log.Warn("cache read failed, falling back to store", "guild", guildID, "err", err)
		hit = false
	}

	if !hit {
		cfg, err = c.store.GetOrCreate(ctx, guildID)
		if err != nil {
			return domain.GuildConfig{}, fmt.Errorf("load config %s: %w", guildID, err)
		}
		// SETNX: si otro proceso ya escribió una versión más nueva, no se pisa
		if c.current(guildID, gen) {
			if _, err := c.cache.SetValueNX(ctx, cache.GuildConfigKey(guildID), cfg, c.ttl); err != nil {
				c.log.Warn("cache write failed", "guild", guildID, "err", err)
			}
		}
	}

	c.mu.Lock()
	if c.gen[guildID] == gen {
		c.local[guildID] = cfg
	}
	c.mu.Unlock()
	return cfg, nil
}

func (c *ConfigCache) current(guildID string, gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen[guildID] == gen
}

// UpdateConfig valida, escribe en el store, reemplaza el valor de redis,
// descarta la copia local y avisa al resto de los shards. Si la validación
// falla el store no se toca.
func (c *ConfigCache) UpdateConfig(ctx context.Context, guildID string, patch domain.ConfigPatch) (domain.GuildConfig, error) {
	if patch.IsEmpty() {
		return c.GetConfig(ctx, guildID)
	}

	cur, err := c.GetConfig(ctx, guildID)
	if err != nil {
		return domain.GuildConfig{}, err
	}
	if err := patch.Apply(cur).Validate(); err != nil {
		return domain.GuildConfig{}, err
	}

	updated, err := c.store.Update(ctx, guildID, patch)
	if err != nil {
		return domain.GuildConfig{}, fmt.Errorf("update config %s: %w", guildID, err)
	}

	if err := c.cache.SetValue(ctx, cache.GuildConfigKey(guildID), updated, c.ttl); err != nil {
		c.log.Warn("cache write failed, deleting", "guild", guildID, "err", err)
		if err := c.cache.Delete(ctx, cache.GuildConfigKey(guildID)); err != nil {
			c.log.Warn("cache delete failed", "guild", guildID, "err", err)
		}
	}
	c.Invalidate(guildID)

	msg := cache.ConfigUpdateMessage{GuildID: guildID, ChangedFields: patch.ChangedFields()}
	if err := c.cache.Publish(ctx, cache.ChannelConfigUpdate, msg); err != nil {
		c.log.Warn("config broadcast failed", "guild", guildID, "err", err)
	}

	c.log.Info("config updated", "guild", guildID, "fields", msg.ChangedFields)
	return updated, nil
}

// Invalidate descarta la copia local de guildID.
func (c *ConfigCache) Invalidate(guildID string) {
	c.mu.Lock()
	delete(c.local, guildID)
	c.gen[guildID]++
	c.mu.Unlock()
}

// PrewarmCache carga en paralelo (con límite) los guilds conocidos. Los
// errores se loguean; devuelve cuántos quedaron cargados.
func (c *ConfigCache) PrewarmCache(ctx context.Context, guildIDs []string) int {
	var (
		g  errgroup.Group
		mu sync.Mutex
		n  int
	)
	g.SetLimit(c.prewarmLimit)
	for _, id := range guildIDs {
		g.Go(func() error {
			if _, err := c.GetConfig(ctx, id); err != nil {
				c.log.Warn("prewarm failed", "guild", id, "err", err)
				return nil
			}
			mu.Lock()
			n++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return n
}

// Start se suscribe a config:update. Cada mensaje invalida la copia local;
// el próximo GetConfig vuelve a leer el estado autoritativo.
func (c *ConfigCache) Start(ctx context.Context) error {
	sub, err := c.cache.Subscribe(ctx, cache.ChannelConfigUpdate, c.onUpdate)
	if err != nil {
		return err
	}
	c.subMu.Lock()
	c.sub = sub
	c.subMu.Unlock()
	return nil
}

func (c *ConfigCache) onUpdate(_ context.Context, payload []byte) {
	var m cache.ConfigUpdateMessage
	if err := json.Unmarshal(payload, &m); err != nil || m.GuildID == "" {
		c.log.Warn("bad config:update payload", "payload", string(payload), "err", err)
		return
	}
	c.Invalidate(m.GuildID)
	c.log.Debug("config invalidated", "guild", m.GuildID, "fields", m.ChangedFields)
}

func (c *ConfigCache) Close() error {
	c.subMu.Lock()
	sub := c.sub
	c.sub = nil
	c.subMu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Close()
}
