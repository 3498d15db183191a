package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/mo"
	"github.com/sethvargo/go-retry"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// Handler recibe el payload crudo de un mensaje pub/sub.
type Handler func(ctx context.Context, payload []byte)

// Client es la cache compartida por todos los shards: clave/valor con TTL,
// contadores y pub/sub. Cualquier falla que no sea un miss envuelve
// domain.ErrConnectivity.
type Client struct {
	rdb *redis.Client
	log *slog.Logger

	maxRetries uint64
	baseDelay  time.Duration
	maxDelay   time.Duration
	opTimeout  time.Duration

	mu   sync.Mutex
	subs []*Subscription
}

// New se conecta a redis y hace ping (con backoff).
func New(ctx context.Context, url string, opts ...Option) (*Client, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	c := &Client{
		log:        slog.Default(),
		maxRetries: 3,
		baseDelay:  50 * time.Millisecond,
		maxDelay:   2 * time.Second,
		opTimeout:  5 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	c.rdb = redis.NewClient(ro)

	if err := c.Ping(ctx); err != nil {
		_ = c.rdb.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.baseDelay)
	b = retry.WithCappedDuration(c.maxDelay, b)
	return retry.WithMaxRetries(c.maxRetries, b)
}

// do corre fn con el timeout por operación y reintenta fallas transitorias.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		octx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		err := fn(octx)
		if err == nil || errors.Is(err, redis.Nil) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	return fmt.Errorf("%w: redis %s: %v", domain.ErrConnectivity, op, err)
}

// once corre fn una sola vez con el timeout por operación. Es para comandos
// que no son idempotentes.
func (c *Client) once(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	octx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	err := fn(octx)
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	return fmt.Errorf("%w: redis %s: %v", domain.ErrConnectivity, op, err)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", func(ctx context.Context) error {
		return c.rdb.Ping(ctx).Err()
	})
}

// Get devuelve mo.None en un miss.
func (c *Client) Get(ctx context.Context, key string) (mo.Option[[]byte], error) {
	var out []byte
	err := c.do(ctx, "get", func(ctx context.Context) error {
		b, err := c.rdb.Get(ctx, key).Bytes()
		out = b
		return err
	})
	if errors.Is(err, redis.Nil) {
		return mo.None[[]byte](), nil
	}
	if err != nil {
		return mo.None[[]byte](), err
	}
	return mo.Some(out), nil
}

// Set guarda value; ttl <= 0 es sin vencimiento.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.do(ctx, "set", func(ctx context.Context) error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	})
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, "del", func(ctx context.Context) error {
		return c.rdb.Del(ctx, key).Err()
	})
}

// incrScript incrementa y, si la clave no tiene vencimiento (recién creada o
// dejada sin TTL), se lo pone. Todo corre atómico en el server.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) == -1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Incr incrementa key y, si esta llamada la creó, le pone ttl. La ventana
// arranca en el primer incremento y se reinicia cuando la clave vence
// (ventana fija). No se reintenta: un INCR repetido cuenta dos veces.
func (c *Client) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var n int64
	err := c.once(ctx, "incr", func(ctx context.Context) error {
		var err error
		if ttl <= 0 {
			n, err = c.rdb.Incr(ctx, key).Result()
			return err
		}
		n, err = incrScript.Run(ctx, c.rdb, []string{key}, ttl.Milliseconds()).Int64()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SetNX guarda value sólo si key no existe; devuelve si escribió.
func (c *Client) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	var ok bool
	err := c.do(ctx, "setnx", func(ctx context.Context) error {
		v, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
		ok = v
		return err
	})
	return ok, err
}

// Publish manda payload como JSON por channel.
func (c *Client) Publish(ctx context.Context, channel string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", channel, err)
	}
	return c.do(ctx, "publish", func(ctx context.Context) error {
		return c.rdb.Publish(ctx, channel, b).Err()
	})
}

// Subscription es una suscripción viva a un canal.
type Subscription struct {
	ps     *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close desuscribe y espera a que termine la goroutine de entrega.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.ps.Close()
		<-s.done
	})
	return err
}

// Subscribe registra handler en channel. El server confirma la suscripción
// antes de que Subscribe vuelva. Los mensajes se entregan de a uno.
func (c *Client) Subscribe(ctx context.Context, channel string, handler Handler) (*Subscription, error) {
	ps := c.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: redis subscribe %s: %v", domain.ErrConnectivity, channel, err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &Subscription{ps: ps, cancel: cancel, done: make(chan struct{})}
	msgs := ps.Channel()
	go func() {
		defer close(sub.done)
		for {
			select {
			case <-sctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				c.dispatch(sctx, channel, handler, []byte(m.Payload))
			}
		}
	}()

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub, nil
}

func (c *Client) dispatch(ctx context.Context, channel string, h Handler, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("panic in subscription handler", "channel", channel, "panic", rec)
		}
	}()
	h(ctx, payload)
}

// Close cierra las suscripciones y el pool de conexiones.
func (c *Client) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.rdb.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
