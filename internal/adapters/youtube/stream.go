package youtube

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// Streamer convierte la URL de la página de un video en la URL directa del
// audio que consume ffmpeg. Las URLs que no son de YouTube pasan tal cual.
type Streamer struct {
	client ytdl.Client
}

func NewStreamer() *Streamer { return &Streamer{} }

func (s *Streamer) StreamURL(ctx context.Context, locator string) (string, error) {
	if !IsVideoURL(locator) {
		return locator, nil
	}
	video, err := s.client.GetVideoContext(ctx, locator)
	if err != nil {
		return "", fmt.Errorf("youtube video: %w: %w", domain.ErrResolutionFailed, err)
	}
	f, ok := bestAudio(video.Formats)
	if !ok {
		return "", fmt.Errorf("youtube %s: no audio format: %w", video.ID, domain.ErrResolutionFailed)
	}
	u, err := s.client.GetStreamURLContext(ctx, video, f)
	if err != nil {
		return "", fmt.Errorf("youtube stream url: %w: %w", domain.ErrConnectivity, err)
	}
	return u, nil
}

// IsVideoURL: youtube.com/watch, youtu.be y music.youtube.com.
func IsVideoURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		return len(u.Path) > 1
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		return u.Query().Get("v") != "" || strings.HasPrefix(u.Path, "/shorts/")
	}
	return false
}

// bestAudio prefiere formatos solo-audio y, entre ellos, el de mayor bitrate.
func bestAudio(formats ytdl.FormatList) (*ytdl.Format, bool) {
	var best *ytdl.Format
	bestAudioOnly := false
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		audioOnly := strings.HasPrefix(f.MimeType, "audio/")
		switch {
		case best == nil,
			audioOnly && !bestAudioOnly,
			audioOnly == bestAudioOnly && f.Bitrate > best.Bitrate:
			best, bestAudioOnly = f, audioOnly
		}
	}
	return best, best != nil
}
