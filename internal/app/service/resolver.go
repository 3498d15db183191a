package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

var spotifyTrackRe = regexp.MustCompile(`(?:spotify\.com/(?:intl-[a-z]+/)?track/|spotify:track:)([a-zA-Z0-9]+)`)

// TrackResolver convierte lo que escribe el usuario en un Track reproducible.
// Links de Spotify: metadata de Spotify + búsqueda "artista título" para el
// locator. Cualquier otra cosa: búsqueda directa.
type TrackResolver struct {
	meta   MetadataProvider // nil si Spotify no está configurado
	search StreamSearcher
}

func NewTrackResolver(meta MetadataProvider, search StreamSearcher) *TrackResolver {
	return &TrackResolver{meta: meta, search: search}
}

// SpotifyTrackID extrae el id de un link/URI de track de Spotify.
func SpotifyTrackID(query string) (string, bool) {
	m := spotifyTrackRe.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (r *TrackResolver) Resolve(ctx context.Context, query, requesterID string) (domain.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Track{}, fmt.Errorf("%w: empty query", domain.ErrResolutionFailed)
	}
	if id, ok := SpotifyTrackID(query); ok {
		return r.fromSpotify(ctx, id, requesterID)
	}
	return r.direct(ctx, query, requesterID)
}

func (r *TrackResolver) fromSpotify(ctx context.Context, id, requesterID string) (domain.Track, error) {
	if r.meta == nil {
		return domain.Track{}, fmt.Errorf("%w: spotify disabled", domain.ErrResolutionFailed)
	}
	metas, err := r.meta.TrackByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Track{}, fmt.Errorf("%w: spotify track %s", domain.ErrResolutionFailed, id)
		}
		return domain.Track{}, fmt.Errorf("spotify track %s: %w", id, err)
	}
	if len(metas) == 0 {
		return domain.Track{}, fmt.Errorf("%w: spotify track %s", domain.ErrResolutionFailed, id)
	}
	m := metas[0]

	hits, err := r.search.Search(ctx, strings.TrimSpace(m.PrimaryArtist()+" "+m.Title), 1)
	if err != nil {
		return domain.Track{}, fmt.Errorf("stream search: %w", err)
	}
	if len(hits) == 0 {
		return domain.Track{}, fmt.Errorf("%w: no stream for %q", domain.ErrResolutionFailed, m.Title)
	}

	return domain.Track{
		Title:       m.Title,
		Artist:      strings.Join(m.Artists, ", "),
		URL:         hits[0].URL,
		Duration:    m.Duration,
		Thumbnail:   m.ArtworkURL,
		RequesterID: requesterID,
		SpotifyID:   id,
	}, nil
}

func (r *TrackResolver) direct(ctx context.Context, query, requesterID string) (domain.Track, error) {
	hits, err := r.search.Search(ctx, query, 1)
	if err != nil {
		return domain.Track{}, fmt.Errorf("stream search: %w", err)
	}
	if len(hits) == 0 {
		return domain.Track{}, fmt.Errorf("%w: %q", domain.ErrResolutionFailed, query)
	}
	h := hits[0]
	return domain.Track{
		Title:       orUnknown(h.Title),
		Artist:      orUnknown(h.PrimaryArtist()),
		URL:         h.URL,
		Duration:    h.Duration,
		Thumbnail:   h.ArtworkURL,
		RequesterID: requesterID,
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
