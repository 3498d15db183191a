package cache

import "strings"

// Categorías de claves: "{categoría}:{guild}[:{sub}]".
const (
	CategoryGuildConfig  = "guild:config"
	CategoryMusicSession = "music:session"
	CategorySpamRecord   = "spam:record"

	// ChannelConfigUpdate carries ConfigUpdateMessage payloads.
	ChannelConfigUpdate = "config:update"
)

func BuildKey(category string, parts ...string) string {
	return category + ":" + strings.Join(parts, ":")
}

func GuildConfigKey(guildID string) string {
	return BuildKey(CategoryGuildConfig, guildID)
}

func MusicSessionKey(guildID string) string {
	return BuildKey(CategoryMusicSession, guildID)
}

func SpamRecordKey(guildID, userID string) string {
	return BuildKey(CategorySpamRecord, guildID, userID)
}

// ConfigUpdateMessage se publica después de escribir la config de un guild.
type ConfigUpdateMessage struct {
	GuildID       string   `json:"guildId"`
	ChangedFields []string `json:"changedFields"`
}
