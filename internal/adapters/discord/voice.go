package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"

	"github.com/jose-valero/kodari-bot/internal/app/service"
)

var errVoiceClosed = errors.New("voice connection closed")

// StreamOpener pasa del locator de un track a una URL que ffmpeg pueda leer.
// Lo implementa internal/adapters/youtube.Streamer
type StreamOpener interface {
	StreamURL(ctx context.Context, locator string) (string, error)
}

// VoiceConnector implementa service.VoiceConnector sobre discordgo + dca.
type VoiceConnector struct {
	s       *discordgo.Session
	streams StreamOpener
	opts    dca.EncodeOptions
	log     *slog.Logger
}

func NewVoiceConnector(s *discordgo.Session, streams StreamOpener, log *slog.Logger) *VoiceConnector {
	if log == nil {
		log = slog.Default()
	}
	opts := *dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = 96
	opts.Application = dca.AudioApplicationLowDelay
	return &VoiceConnector{s: s, streams: streams, opts: opts, log: log.With("component", "voice")}
}

func (v *VoiceConnector) Join(ctx context.Context, guildID, channelID string) (service.VoiceConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// muteado no, ensordecido sí: el bot no necesita escuchar
	vc, err := v.s.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("voice join: %w", err)
	}
	return &voiceConn{
		vc:      vc,
		streams: v.streams,
		opts:    v.opts,
		log:     v.log.With("guild", guildID),
	}, nil
}

// voiceConn reproduce un stream a la vez. Play arranca una goroutine que
// termina llamando done exactamente una vez.
type voiceConn struct {
	vc      *discordgo.VoiceConnection
	streams StreamOpener
	opts    dca.EncodeOptions
	log     *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	stream    *dca.StreamingSession
	paused    bool
	destroyed bool
}

func (c *voiceConn) Play(ctx context.Context, locator string, volume int, done func(error)) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return errVoiceClosed
	}
	c.stopLocked()
	pctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.paused = false
	c.mu.Unlock()

	go func() {
		err := c.run(pctx, locator, volume)
		cancel()
		done(err)
	}()
	return nil
}

func (c *voiceConn) run(ctx context.Context, locator string, volume int) error {
	mediaURL, err := c.streams.StreamURL(ctx, locator)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	opts := c.opts
	// dca: 256 es volumen normal
	opts.Volume = volume * 256 / 100
	enc, err := dca.EncodeFile(mediaURL, &opts)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	defer enc.Cleanup()

	_ = c.vc.Speaking(true)
	defer func() { _ = c.vc.Speaking(false) }()

	finished := make(chan error, 1)
	stream := dca.NewStream(enc, c.vc, finished)

	c.mu.Lock()
	c.stream = stream
	if c.paused {
		stream.SetPaused(true)
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.stream == stream {
			c.stream = nil
		}
		c.mu.Unlock()
	}()

	select {
	case err := <-finished:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stream: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = enc.Stop()
		return nil
	}
}

func (c *voiceConn) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *voiceConn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *voiceConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	if c.stream != nil {
		c.stream.SetPaused(true)
	}
}

func (c *voiceConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	if c.stream != nil {
		c.stream.SetPaused(false)
	}
}

func (c *voiceConn) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.stopLocked()
	c.mu.Unlock()

	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("voice disconnect: %w", err)
	}
	c.log.Debug("voice disconnected")
	return nil
}
