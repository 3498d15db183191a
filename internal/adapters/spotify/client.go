package spotify

import (
	"context"
	"net/url"
	"time"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// TrackByID devuelve la metadata de un track. Un id inexistente es ErrNotFound.
func (c *Client) TrackByID(ctx context.Context, id string) ([]domain.TrackMetadata, error) {
	var q url.Values
	if c.market != "" {
		q = url.Values{"market": {c.market}}
	}
	var dto trackDTO
	if err := c.doJSON(ctx, "GET", "/tracks/"+url.PathEscape(id), q, &dto); err != nil {
		return nil, err
	}
	return []domain.TrackMetadata{dto.toDomain()}, nil
}

func (t trackDTO) toDomain() domain.TrackMetadata {
	m := domain.TrackMetadata{
		ID:       t.ID,
		Title:    t.Name,
		Duration: time.Duration(t.DurationMS) * time.Millisecond,
		URL:      t.ExternalURLs.Spotify,
	}
	for _, a := range t.Artists {
		if a.Name != "" {
			m.Artists = append(m.Artists, a.Name)
		}
	}
	if len(t.Album.Images) > 0 {
		m.ArtworkURL = t.Album.Images[0].URL
	}
	return m
}
