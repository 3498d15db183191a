package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), "redis://"+mr.Addr(), WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetMissIsNone(t *testing.T) {
	c, _ := newTestClient(t)
	v, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())
}

func TestSetGetDeleteWithTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v.MustGet())
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(61 * time.Second)
	v, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())

	require.NoError(t, c.Set(ctx, "k2", []byte("x"), 0))
	require.NoError(t, c.Delete(ctx, "k2"))
	assert.False(t, mr.Exists("k2"))
}

func TestIncrSetsTTLOnlyOnCreate(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	key := SpamRecordKey("g1", "u1")

	n, err := c.Incr(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 5*time.Second, mr.TTL(key))

	mr.FastForward(3 * time.Second)
	n, err = c.Incr(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	// not refreshed by the second increment
	assert.Equal(t, 2*time.Second, mr.TTL(key))

	mr.FastForward(2 * time.Second)
	n, err = c.Incr(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window resets after expiry")
}

// lostReplyHook deja que el comando llegue al server y después devuelve un
// error, como una conexión que se corta antes de la respuesta.
type lostReplyHook struct {
	armed atomic.Bool
}

func (h *lostReplyHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *lostReplyHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err == nil && h.armed.CompareAndSwap(true, false) {
			return errors.New("read tcp: connection reset by peer")
		}
		return err
	}
}

func (h *lostReplyHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestIncrLostReplyCountsOnce(t *testing.T) {
	c, mr := newTestClient(t)
	hook := &lostReplyHook{}
	c.rdb.AddHook(hook)
	ctx := context.Background()
	key := SpamRecordKey("g1", "u1")

	var seen []int64
	for i := 0; i < 5; i++ {
		n, err := c.Incr(ctx, key, time.Minute)
		require.NoError(t, err)
		seen = append(seen, n)
	}

	hook.armed.Store(true)
	_, err := c.Incr(ctx, key, time.Minute)
	require.ErrorIs(t, err, domain.ErrConnectivity)
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "6", got, "the failed call reached the server exactly once")

	n, err := c.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	seen = append(seen, n)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 7}, seen)
}

func TestIncrRestoresMissingTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	key := SpamRecordKey("g1", "u1")

	// contador que quedó sin vencimiento
	require.NoError(t, mr.Set(key, "3"))
	require.Zero(t, mr.TTL(key))

	n, err := c.Incr(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 5*time.Second, mr.TTL(key))

	mr.FastForward(6 * time.Second)
	n, err = c.Incr(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "window resets once the TTL is back")
}

func TestIncrFailedBeforeServerLeavesNoKey(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	key := SpamRecordKey("g1", "u1")

	c.rdb.AddHook(&failFirstHook{})
	_, err := c.Incr(ctx, key, 5*time.Second)
	require.ErrorIs(t, err, domain.ErrConnectivity)
	assert.False(t, mr.Exists(key))

	n, err := c.Incr(ctx, key, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 5*time.Second, mr.TTL(key))
}

// failFirstHook corta el primer comando antes de mandarlo.
type failFirstHook struct {
	done atomic.Bool
}

func (h *failFirstHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failFirstHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if h.done.CompareAndSwap(false, true) {
			return errors.New("dial tcp: i/o timeout")
		}
		return next(ctx, cmd)
	}
}

func (h *failFirstHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestSetNXKeepsExistingValue(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "k", []byte("fresh"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", []byte("stale"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	got, _ := mr.Get("k")
	assert.Equal(t, "fresh", got)
	assert.Equal(t, time.Minute, mr.TTL("k"))
}

func TestValueRoundTripMsgpack(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	cfg := domain.DefaultGuildConfig("g1")
	cfg.LinkDenylist = []string{"bad.example"}
	require.NoError(t, c.SetValue(ctx, GuildConfigKey("g1"), cfg, time.Hour))

	got, err := GetValue[domain.GuildConfig](ctx, c, GuildConfigKey("g1"))
	require.NoError(t, err)
	require.True(t, got.IsPresent())
	assert.Equal(t, "g1", got.MustGet().GuildID)
	assert.Equal(t, []string{"bad.example"}, got.MustGet().LinkDenylist)

	miss, err := GetValue[domain.GuildConfig](ctx, c, GuildConfigKey("other"))
	require.NoError(t, err)
	assert.True(t, miss.IsAbsent())
}

func TestGetValueCorruptPayload(t *testing.T) {
	c, mr := newTestClient(t)
	require.NoError(t, mr.Set(GuildConfigKey("g1"), "\xc1not msgpack"))

	_, err := GetValue[domain.GuildConfig](context.Background(), c, GuildConfigKey("g1"))
	require.Error(t, err)
}

func TestPublishSubscribe(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	got := make(chan ConfigUpdateMessage, 1)
	sub, err := c.Subscribe(ctx, ChannelConfigUpdate, func(_ context.Context, payload []byte) {
		var m ConfigUpdateMessage
		if json.Unmarshal(payload, &m) == nil {
			got <- m
		}
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, c.Publish(ctx, ChannelConfigUpdate, ConfigUpdateMessage{
		GuildID:       "g1",
		ChangedFields: []string{"prefix"},
	}))

	select {
	case m := <-got:
		assert.Equal(t, "g1", m.GuildID)
		assert.Equal(t, []string{"prefix"}, m.ChangedFields)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestHandlerPanicDoesNotKillSubscription(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	got := make(chan string, 2)
	_, err := c.Subscribe(ctx, "ch", func(_ context.Context, payload []byte) {
		if string(payload) == `"boom"` {
			panic("boom")
		}
		got <- string(payload)
	})
	require.NoError(t, err)

	require.NoError(t, c.Publish(ctx, "ch", "boom"))
	require.NoError(t, c.Publish(ctx, "ch", "ok"))

	select {
	case p := <-got:
		assert.Equal(t, `"ok"`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription stopped after panic")
	}
}

func TestUnavailableServerIsConnectivityError(t *testing.T) {
	c, mr := newTestClient(t)
	mr.Close()

	_, err := c.Get(context.Background(), "k")
	require.ErrorIs(t, err, domain.ErrConnectivity)

	_, err = c.Incr(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), "redis://"+addr, WithRetry(0, time.Millisecond))
	require.ErrorIs(t, err, domain.ErrConnectivity)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "guild:config:1", GuildConfigKey("1"))
	assert.Equal(t, "music:session:1", MusicSessionKey("1"))
	assert.Equal(t, "spam:record:1:2", SpamRecordKey("1", "2"))
}
