package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Ctx struct {
	Log       *slog.Logger
	Session   *discordgo.Session
	Event     *discordgo.InteractionCreate
	GuildID   string
	UserID    string
	ChannelID string
}

func (c *Ctx) Reply(content string, embeds ...*discordgo.MessageEmbed) {
	Reply(c.Session, c.Event, &discordgo.WebhookParams{Content: content, Embeds: embeds})
}

type CommandHandler func(ctx context.Context, c *Ctx) error

type Command struct {
	Def *discordgo.ApplicationCommand
	// Opcional: permisos/middleware
	AdminOnly bool
	// Public: la respuesta la ve todo el canal
	Public  bool
	Timeout time.Duration
	Handler CommandHandler
}

// ComponentKey: custom_id de los botones (ej: "music_skip", "music_pause")
type ComponentKey string

const (
	keySkip    ComponentKey = "music_skip"
	keyPause   ComponentKey = "music_pause"
	keyResume  ComponentKey = "music_resume"
	keyStop    ComponentKey = "music_stop"
	keyRefresh ComponentKey = "music_refresh"
)
