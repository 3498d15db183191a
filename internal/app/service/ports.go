package service

import (
	"context"
	"time"

	"github.com/jose-valero/kodari-bot/internal/domain"
	"github.com/jose-valero/kodari-bot/internal/infra/cache"
)

// Lo implementa internal/infra/cache.Client
type Cache interface {
	LoadValue(ctx context.Context, key string, dst any) (bool, error)
	SetValue(ctx context.Context, key string, v any, ttl time.Duration) error
	SetValueNX(ctx context.Context, key string, v any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Publish(ctx context.Context, channel string, payload any) error
	Subscribe(ctx context.Context, channel string, h cache.Handler) (*cache.Subscription, error)
}

// Lo implementa internal/infra/cache.Client
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Lo implementa internal/infra/storage.GuildConfigRepo
type ConfigStore interface {
	GetOrCreate(ctx context.Context, guildID string) (domain.GuildConfig, error)
	Update(ctx context.Context, guildID string, p domain.ConfigPatch) (domain.GuildConfig, error)
}

// Lo implementa internal/infra/storage.ModerationRepo
type CaseStore interface {
	RecordCase(ctx context.Context, c domain.ModerationCase) (domain.ModerationCase, error)
}

// ConfigSource es lo único que detectores y música necesitan del ConfigCache.
type ConfigSource interface {
	GetConfig(ctx context.Context, guildID string) (domain.GuildConfig, error)
}

// Lo implementa internal/adapters/discord.Moderator
type Moderator interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	TimeoutMember(ctx context.Context, guildID, userID string, d time.Duration, reason string) error
	KickMember(ctx context.Context, guildID, userID, reason string) error
	SendMessage(ctx context.Context, channelID, content string) error
}

// VoiceConnector abre conexiones de voz. Lo implementa internal/adapters/discord.VoiceConnector
type VoiceConnector interface {
	Join(ctx context.Context, guildID, channelID string) (VoiceConnection, error)
}

// VoiceConnection es la conexión + motor de reproducción de una sesión.
// done se llama una vez por Play aceptado: fin natural, Stop o error.
type VoiceConnection interface {
	Play(ctx context.Context, locator string, volume int, done func(error)) error
	Stop()
	Pause()
	Resume()
	Destroy() error
}

// Lo implementa internal/adapters/spotify.Client
type MetadataProvider interface {
	TrackByID(ctx context.Context, id string) ([]domain.TrackMetadata, error)
}

// Lo implementa internal/adapters/youtube.Searcher
type StreamSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.TrackMetadata, error)
}
