package discord

import (
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Defer efímero (para trabajos >3s)
func DeferEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return deferResponse(s, ic, discordgo.MessageFlagsEphemeral)
}

// Defer público: el "pensando…" y la respuesta los ve todo el canal
func DeferPublic(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return deferResponse(s, ic, 0)
}

func deferResponse(s *discordgo.Session, ic *discordgo.InteractionCreate, flags discordgo.MessageFlags) error {
	err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		slog.Warn("defer interaction failed", "err", err)
	}
	return err
}

// Reply responde a una interacción ya diferida; la visibilidad la fija el defer.
func Reply(s *discordgo.Session, ic *discordgo.InteractionCreate, params *discordgo.WebhookParams) {
	if params.AllowedMentions == nil {
		params.AllowedMentions = &discordgo.MessageAllowedMentions{}
	}
	_, err := s.FollowupMessageCreate(ic.Interaction, true, params)
	if err == nil {
		return
	}
	// Fallback sólo si todavía no hay respuesta (webhook desconocido)
	var reqErr *discordgo.RESTError
	if errors.As(err, &reqErr) && reqErr.Message != nil && reqErr.Message.Code == discordgo.ErrCodeUnknownWebhook {
		_ = s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content:         params.Content,
				Embeds:          params.Embeds,
				Components:      params.Components,
				Flags:           discordgo.MessageFlagsEphemeral,
				AllowedMentions: params.AllowedMentions,
			},
		})
		return
	}
	slog.Warn("reply failed", "err", err)
}

func ReplyEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) {
	Reply(s, ic, &discordgo.WebhookParams{Content: content, Embeds: embeds, Flags: discordgo.MessageFlagsEphemeral})
}
