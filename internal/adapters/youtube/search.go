package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"time"

	isoduration "github.com/channelmeter/iso8601duration"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

const watchURL = "https://www.youtube.com/watch?v="

// Searcher busca videos con la Data API v3. Lo usa service.TrackResolver.
type Searcher struct {
	svc *ytapi.Service
	log *slog.Logger
}

func NewSearcher(ctx context.Context, log *slog.Logger, opts ...option.ClientOption) (*Searcher, error) {
	svc, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{svc: svc, log: log.With("component", "youtube")}, nil
}

// Search devuelve hasta limit videos en el orden del ranking de YouTube.
// La duración sale de una segunda llamada a videos.list (contentDetails).
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]domain.TrackMetadata, error) {
	if limit <= 0 {
		limit = 1
	}
	res, err := s.svc.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, providerErr("search", err)
	}

	out := make([]domain.TrackMetadata, 0, len(res.Items))
	ids := make([]string, 0, len(res.Items))
	for _, it := range res.Items {
		if it.Id == nil || it.Id.VideoId == "" || it.Snippet == nil {
			continue
		}
		m := domain.TrackMetadata{
			ID:    it.Id.VideoId,
			Title: html.UnescapeString(it.Snippet.Title),
			URL:   watchURL + it.Id.VideoId,
		}
		if ch := html.UnescapeString(it.Snippet.ChannelTitle); ch != "" {
			m.Artists = []string{ch}
		}
		m.ArtworkURL = thumbnail(it.Snippet.Thumbnails)
		out = append(out, m)
		ids = append(ids, it.Id.VideoId)
	}
	if len(ids) == 0 {
		return out, nil
	}

	durations, err := s.durations(ctx, ids)
	if err != nil {
		// sin duración igual se puede reproducir
		s.log.Warn("video durations", "err", err)
		return out, nil
	}
	for i := range out {
		out[i].Duration = durations[out[i].ID]
	}
	return out, nil
}

func (s *Searcher) durations(ctx context.Context, ids []string) (map[string]time.Duration, error) {
	res, err := s.svc.Videos.List([]string{"contentDetails"}).Id(ids...).Context(ctx).Do()
	if err != nil {
		return nil, providerErr("videos", err)
	}
	out := make(map[string]time.Duration, len(res.Items))
	for _, v := range res.Items {
		if v.ContentDetails == nil {
			continue
		}
		d, err := isoduration.FromString(v.ContentDetails.Duration)
		if err != nil {
			continue
		}
		out[v.Id] = d.ToDuration()
	}
	return out, nil
}

func thumbnail(t *ytapi.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*ytapi.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// providerErr marca como ErrConnectivity lo que es red o 5xx; cuota y
// requests inválidos quedan como error del proveedor.
func providerErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code >= 500 {
			return fmt.Errorf("youtube %s: %w: %w", op, domain.ErrConnectivity, err)
		}
		return fmt.Errorf("youtube %s: %w", op, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("youtube %s: %w: %w", op, domain.ErrConnectivity, err)
	}
	return fmt.Errorf("youtube %s: %w", op, err)
}
