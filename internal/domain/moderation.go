package domain

import "time"

// MessageEvent es lo que los detectores necesitan de un mensaje entrante.
type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	Content   string
	IsBot     bool
}

// JoinEvent: un miembro entró al guild.
type JoinEvent struct {
	GuildID          string
	UserID           string
	AccountCreatedAt time.Time
	JoinedAt         time.Time
}

type ModerationAction string

const (
	ActionSpamTimeout ModerationAction = "spam_timeout"
	ActionRaidKick    ModerationAction = "raid_kick"
	ActionLinkBlocked ModerationAction = "link_blocked"
)

// ModerationCase es una acción automática de moderación guardada en el store.
type ModerationCase struct {
	GuildID    string
	CaseNumber int
	UserID     string
	Action     ModerationAction
	Reason     string
	CreatedAt  time.Time
}
