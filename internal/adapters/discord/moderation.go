package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Moderator implementa service.Moderator con la REST API de discordgo.
type Moderator struct {
	s *discordgo.Session
}

func NewModerator(s *discordgo.Session) *Moderator { return &Moderator{s: s} }

func (m *Moderator) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := m.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

func (m *Moderator) TimeoutMember(ctx context.Context, guildID, userID string, d time.Duration, reason string) error {
	until := time.Now().Add(d)
	err := m.s.GuildMemberTimeout(guildID, userID, &until,
		discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	if err != nil {
		return fmt.Errorf("timeout %s: %w", userID, err)
	}
	return nil
}

func (m *Moderator) KickMember(ctx context.Context, guildID, userID, reason string) error {
	if err := m.s.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("kick %s: %w", userID, err)
	}
	return nil
}

func (m *Moderator) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := m.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		// solo usuarios: nunca @everyone ni roles
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send message %s: %w", channelID, err)
	}
	return nil
}

// AddRole no es parte de service.Moderator: lo usa el handler de bienvenida.
func (m *Moderator) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	if err := m.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s: %w", roleID, err)
	}
	return nil
}
