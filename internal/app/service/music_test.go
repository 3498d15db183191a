package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/kodari-bot/internal/domain"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
)

type musicHarness struct {
	engine   *MusicEngine
	voice    *fakeVoice
	mirror   *fakeMirror
	resolver *mapResolver
}

func newMusicHarness(t *testing.T, idle time.Duration, cfgs ...domain.GuildConfig) *musicHarness {
	t.Helper()
	h := &musicHarness{
		voice:    &fakeVoice{},
		mirror:   newFakeMirror(),
		resolver: &mapResolver{fail: map[string]error{}},
	}
	h.engine = NewMusicEngine(h.voice, h.resolver, newStaticConfigs(cfgs...), h.mirror, WithIdleTimeout(idle))
	t.Cleanup(func() { _ = h.engine.Cleanup(context.Background()) })
	return h
}

func playReq(query, user string) PlayRequest {
	return PlayRequest{GuildID: "g1", VoiceChannelID: "voiceA", TextChannelID: "textA", Query: query, RequesterID: user}
}

func titles(ts []domain.Track) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Title)
	}
	return out
}

func waitSession(t *testing.T, e *MusicEngine, cond func(domain.SessionSnapshot, bool) bool) domain.SessionSnapshot {
	t.Helper()
	var snap domain.SessionSnapshot
	require.Eventually(t, func() bool {
		s, ok := e.Session("g1")
		snap = s
		return cond(s, ok)
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

func TestPlayThenQueueThenAdvance(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	x, err := h.engine.Play(ctx, playReq("X", "user1"))
	require.NoError(t, err)
	assert.Equal(t, "X", x.Title)
	conn := h.voice.conn(0)
	assert.Equal(t, x.URL, conn.waitPlayed(t))

	_, err = h.engine.Play(ctx, playReq("Y", "user2"))
	require.NoError(t, err)

	snap, ok := h.engine.Session("g1")
	require.True(t, ok)
	require.NotNil(t, snap.Current)
	assert.Equal(t, "X", snap.Current.Title)
	assert.Equal(t, []string{"Y"}, titles(snap.Queue))
	assert.Equal(t, "user1", snap.OwnerID)

	conn.finish(nil)
	assert.Equal(t, "https://yt/Y", conn.waitPlayed(t))

	snap = waitSession(t, h.engine, func(s domain.SessionSnapshot, ok bool) bool {
		return ok && s.Current != nil && s.Current.Title == "Y"
	})
	assert.Empty(t, snap.Queue)

	mirrored, ok := h.mirror.get(cache.MusicSessionKey("g1"))
	require.True(t, ok)
	assert.Equal(t, "Y", mirrored.Current.Title)

	// Y termina: cola vacía -> idle con timer armado
	conn.finish(nil)
	waitSession(t, h.engine, func(s domain.SessionSnapshot, ok bool) bool { return ok && s.Current == nil })
	h.engine.locked("g1", func(s *musicSession) error {
		assert.NotNil(t, s.idle, "disconnect timer armed")
		return nil
	})
	assert.Equal(t, 1, h.voice.joinCount())
}

func TestQueueIsFIFOAcrossSkips(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	order := []string{"t0", "t1", "t2", "t3", "t4", "t5"}
	for _, q := range order {
		_, err := h.engine.Play(ctx, playReq(q, "u"))
		require.NoError(t, err)
	}
	conn := h.voice.conn(0)

	var played []string
	played = append(played, conn.waitPlayed(t))
	for range order[1:] {
		_, err := h.engine.Skip(ctx, "g1")
		require.NoError(t, err)
		played = append(played, conn.waitPlayed(t))
	}

	want := make([]string, 0, len(order))
	for _, q := range order {
		want = append(want, "https://yt/"+q)
	}
	assert.Equal(t, want, played)
}

func TestConcurrentPlayCreatesOneSession(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Play(ctx, playReq("song", "u"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.voice.joinCount())
	snap, ok := h.engine.Session("g1")
	require.True(t, ok)
	assert.NotNil(t, snap.Current)
	assert.Len(t, snap.Queue, 19)
}

func TestIdleTimeoutTearsDownSession(t *testing.T) {
	h := newMusicHarness(t, 30*time.Millisecond)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "u"))
	require.NoError(t, err)
	conn := h.voice.conn(0)
	conn.waitPlayed(t)
	conn.finish(nil)

	require.Eventually(t, func() bool {
		_, ok := h.engine.Session("g1")
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, conn.isDestroyed())
	_, mirrored := h.mirror.get(cache.MusicSessionKey("g1"))
	assert.False(t, mirrored)
}

// Un play que llega con el timer armado lo cancela: la sesión sobrevive
// aunque pase el tiempo de auto-leave.
func TestPlayCancelsPendingIdleTimer(t *testing.T) {
	h := newMusicHarness(t, 200*time.Millisecond)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "u"))
	require.NoError(t, err)
	conn := h.voice.conn(0)
	conn.waitPlayed(t)
	conn.finish(nil)
	waitSession(t, h.engine, func(s domain.SessionSnapshot, ok bool) bool { return ok && s.Current == nil })

	_, err = h.engine.Play(ctx, playReq("Y", "u"))
	require.NoError(t, err)
	conn.waitPlayed(t)

	time.Sleep(400 * time.Millisecond)
	snap, ok := h.engine.Session("g1")
	require.True(t, ok, "session must survive")
	assert.Equal(t, "Y", snap.Current.Title)
	assert.False(t, conn.isDestroyed())
	assert.Equal(t, 1, h.voice.joinCount())
}

// Un disparo del timer que ya perdió la carrera contra un play no hace nada.
func TestStaleIdleFireIgnored(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "u"))
	require.NoError(t, err)
	conn := h.voice.conn(0)
	conn.waitPlayed(t)
	conn.finish(nil)
	waitSession(t, h.engine, func(s domain.SessionSnapshot, ok bool) bool { return ok && s.Current == nil })

	var s *musicSession
	var gen uint64
	h.engine.locked("g1", func(ms *musicSession) error {
		s, gen = ms, ms.idleGen
		return nil
	})

	_, err = h.engine.Play(ctx, playReq("Y", "u"))
	require.NoError(t, err)

	h.engine.idleExpired(s, gen)
	_, ok := h.engine.Session("g1")
	assert.True(t, ok)
	assert.False(t, conn.isDestroyed())
}

func TestStopIsOwnerGated(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "owner"))
	require.NoError(t, err)
	_, err = h.engine.Play(ctx, playReq("Y", "guest"))
	require.NoError(t, err)

	err = h.engine.Stop(ctx, "g1", "guest")
	require.ErrorIs(t, err, domain.ErrNotOwner)
	_, ok := h.engine.Session("g1")
	assert.True(t, ok)

	require.NoError(t, h.engine.Stop(ctx, "g1", "owner"))
	_, ok = h.engine.Session("g1")
	assert.False(t, ok)
	assert.True(t, h.voice.conn(0).isDestroyed())

	err = h.engine.Stop(ctx, "g1", "owner")
	require.ErrorIs(t, err, domain.ErrNoSession)
	assert.True(t, domain.IsNotFound(err))
}

func TestDisconnectIgnoresOwner(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "owner"))
	require.NoError(t, err)
	h.voice.conn(0).waitPlayed(t)

	require.NoError(t, h.engine.Disconnect(ctx, "g1"))
	_, ok := h.engine.Session("g1")
	assert.False(t, ok)
	assert.True(t, h.voice.conn(0).isDestroyed())
	_, mirrored := h.mirror.get(cache.MusicSessionKey("g1"))
	assert.False(t, mirrored)

	require.ErrorIs(t, h.engine.Disconnect(ctx, "g1"), domain.ErrNoSession)
}

func TestStaleDoneAfterStopIgnored(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "owner"))
	require.NoError(t, err)
	conn := h.voice.conn(0)
	conn.waitPlayed(t)

	var s *musicSession
	var seq uint64
	h.engine.locked("g1", func(ms *musicSession) error {
		s, seq = ms, ms.seq
		return nil
	})
	require.NoError(t, h.engine.Stop(ctx, "g1", "owner"))

	h.engine.trackEnded(s, seq, nil)
	_, ok := h.engine.Session("g1")
	assert.False(t, ok)
}

func TestQueueLimit(t *testing.T) {
	cfg := domain.DefaultGuildConfig("g1")
	cfg.MusicMaxQueueLength = 2
	h := newMusicHarness(t, time.Hour, cfg)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		_, err := h.engine.Play(ctx, playReq(q, "u"))
		require.NoError(t, err)
	}
	_, err := h.engine.Play(ctx, playReq("d", "u"))
	require.ErrorIs(t, err, domain.ErrQueueFull)

	snap, _ := h.engine.Session("g1")
	assert.Equal(t, []string{"b", "c"}, titles(snap.Queue))
}

func TestResolutionFailureLeavesNoSession(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	h.resolver.fail["???"] = domain.ErrResolutionFailed

	_, err := h.engine.Play(context.Background(), playReq("???", "u"))
	require.ErrorIs(t, err, domain.ErrResolutionFailed)
	assert.Equal(t, 0, h.voice.joinCount())
	_, ok := h.engine.Session("g1")
	assert.False(t, ok)
}

func TestJoinFailure(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	h.voice.joinErr = errors.New("no permission")

	_, err := h.engine.Play(context.Background(), playReq("X", "u"))
	require.Error(t, err)
	_, ok := h.engine.Session("g1")
	assert.False(t, ok)
}

// Un error del motor termina el track pero no la sesión.
func TestPlaybackErrorAdvancesQueue(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "u"))
	require.NoError(t, err)
	_, err = h.engine.Play(ctx, playReq("Y", "u"))
	require.NoError(t, err)
	conn := h.voice.conn(0)
	conn.waitPlayed(t)

	conn.finish(errors.New("ffmpeg exited"))
	assert.Equal(t, "https://yt/Y", conn.waitPlayed(t))
	assert.False(t, conn.isDestroyed())
}

func TestPlayRejectedByEngineMovesOn(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	_, err := h.engine.Play(ctx, playReq("X", "u"))
	require.NoError(t, err)
	conn := h.voice.conn(0)
	conn.waitPlayed(t)
	_, err = h.engine.Play(ctx, playReq("Y", "u"))
	require.NoError(t, err)

	conn.mu.Lock()
	conn.playErr = errors.New("stream unavailable")
	conn.mu.Unlock()
	conn.finish(nil)

	snap := waitSession(t, h.engine, func(s domain.SessionSnapshot, ok bool) bool {
		return ok && s.Current == nil && len(s.Queue) == 0
	})
	assert.Equal(t, "voiceA", snap.ChannelID)
}

func TestPauseResumeAndVolume(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	require.ErrorIs(t, h.engine.Pause(ctx, "g1"), domain.ErrNoSession)

	_, err := h.engine.Play(ctx, playReq("X", "u"))
	require.NoError(t, err)
	conn := h.voice.conn(0)

	require.NoError(t, h.engine.Pause(ctx, "g1"))
	assert.True(t, conn.isPaused())
	snap, _ := h.engine.Session("g1")
	assert.True(t, snap.Paused)
	mirrored, _ := h.mirror.get(cache.MusicSessionKey("g1"))
	assert.True(t, mirrored.Paused)

	require.NoError(t, h.engine.Resume(ctx, "g1"))
	assert.False(t, conn.isPaused())

	require.ErrorIs(t, h.engine.SetVolume(ctx, "g1", 300), domain.ErrValidation)
	require.NoError(t, h.engine.SetVolume(ctx, "g1", 50))
	snap, _ = h.engine.Session("g1")
	assert.Equal(t, 50, snap.Volume)
}

func TestMirrorFailureIsNotFatal(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	h.mirror.err = domain.ErrConnectivity

	_, err := h.engine.Play(context.Background(), playReq("X", "u"))
	require.NoError(t, err)
	_, ok := h.engine.Session("g1")
	assert.True(t, ok)
}

func TestCleanupTearsDownAllAndRefusesNew(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	ctx := context.Background()

	for _, g := range []string{"g1", "g2", "g3"} {
		req := playReq("X", "u")
		req.GuildID = g
		_, err := h.engine.Play(ctx, req)
		require.NoError(t, err)
	}
	require.Len(t, h.engine.ActiveSessions(), 3)

	require.NoError(t, h.engine.Cleanup(ctx))
	assert.Empty(t, h.engine.ActiveSessions())
	for i := 0; i < 3; i++ {
		assert.True(t, h.voice.conn(i).isDestroyed())
	}

	_, err := h.engine.Play(ctx, playReq("Y", "u"))
	require.ErrorIs(t, err, domain.ErrShuttingDown)
}

func TestSkipWithoutTrack(t *testing.T) {
	h := newMusicHarness(t, time.Hour)
	_, err := h.engine.Skip(context.Background(), "g1")
	require.ErrorIs(t, err, domain.ErrNoSession)
}
