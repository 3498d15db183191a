package domain

import (
	"slices"
	"time"
)

// Track es una entrada de la cola ya resuelta. No cambia después de resolverse.
type Track struct {
	Title       string        `json:"title" msgpack:"title"`
	Artist      string        `json:"artist" msgpack:"artist"`
	URL         string        `json:"url" msgpack:"url"`
	Duration    time.Duration `json:"duration" msgpack:"duration"`
	Thumbnail   string        `json:"thumbnail,omitempty" msgpack:"thumbnail"`
	RequesterID string        `json:"requesterId" msgpack:"requester_id"`
	SpotifyID   string        `json:"spotifyId,omitempty" msgpack:"spotify_id"`
}

// TrackMetadata es un resultado de un proveedor; vienen ordenados por relevancia.
type TrackMetadata struct {
	ID         string
	Title      string
	Artists    []string
	Duration   time.Duration
	ArtworkURL string
	URL        string
}

func (m TrackMetadata) PrimaryArtist() string {
	if len(m.Artists) == 0 {
		return ""
	}
	return m.Artists[0]
}

// SessionSnapshot es la vista de una sesión de música que se espeja en redis.
type SessionSnapshot struct {
	GuildID       string    `json:"guildId" msgpack:"guild_id"`
	ChannelID     string    `json:"channelId" msgpack:"channel_id"`
	TextChannelID string    `json:"textChannelId" msgpack:"text_channel_id"`
	OwnerID       string    `json:"ownerId" msgpack:"owner_id"`
	Queue         []Track   `json:"queue" msgpack:"queue"`
	Current       *Track    `json:"currentTrack" msgpack:"current"`
	Paused        bool      `json:"isPaused" msgpack:"paused"`
	Volume        int       `json:"volume" msgpack:"volume"`
	UpdatedAt     time.Time `json:"updatedAt" msgpack:"updated_at"`
}

func (s SessionSnapshot) Clone() SessionSnapshot {
	s.Queue = slices.Clone(s.Queue)
	if s.Current != nil {
		cur := *s.Current
		s.Current = &cur
	}
	return s
}
