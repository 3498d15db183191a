package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// GuildConfig es la foto de políticas de un guild. Se reemplaza entera en cada
// update; quien la tiene la trata como sólo lectura (Clone antes de mutar).
type GuildConfig struct {
	GuildID string `json:"guildId" msgpack:"guild_id"`
	Prefix  string `json:"prefix" msgpack:"prefix"`

	WelcomeChannelID string `json:"welcomeChannelId,omitempty" msgpack:"welcome_channel_id"`
	WelcomeMessage   string `json:"welcomeMessage,omitempty" msgpack:"welcome_message"`
	WelcomeRoleID    string `json:"welcomeRoleId,omitempty" msgpack:"welcome_role_id"`
	LogChannelID     string `json:"logChannelId,omitempty" msgpack:"log_channel_id"`
	ModLogChannelID  string `json:"modLogChannelId,omitempty" msgpack:"mod_log_channel_id"`

	AntiSpamEnabled       bool `json:"antiSpamEnabled" msgpack:"anti_spam_enabled"`
	AntiSpamThreshold     int  `json:"antiSpamThreshold" msgpack:"anti_spam_threshold"`
	AntiSpamWindowSeconds int  `json:"antiSpamTimeWindow" msgpack:"anti_spam_window"`

	AntiRaidEnabled       bool `json:"antiRaidEnabled" msgpack:"anti_raid_enabled"`
	AntiRaidJoinThreshold int  `json:"antiRaidJoinThreshold" msgpack:"anti_raid_joins"`
	AntiRaidWindowSeconds int  `json:"antiRaidTimeWindow" msgpack:"anti_raid_window"`

	LinkFilterEnabled bool     `json:"linkFilterEnabled" msgpack:"link_filter_enabled"`
	LinkAllowlist     []string `json:"linkWhitelist" msgpack:"link_allowlist"`
	LinkDenylist      []string `json:"linkBlacklist" msgpack:"link_denylist"`

	MusicMaxQueueLength   int `json:"musicMaxQueueLength" msgpack:"music_max_queue"`
	MusicAutoLeaveSeconds int `json:"musicAutoLeaveTimeout" msgpack:"music_auto_leave"`

	VerificationEnabled   bool   `json:"verificationEnabled" msgpack:"verification_enabled"`
	VerificationRoleID    string `json:"verificationRoleId,omitempty" msgpack:"verification_role_id"`
	VerificationChannelID string `json:"verificationChannelId,omitempty" msgpack:"verification_channel_id"`
	MinAccountAgeDays     int    `json:"minAccountAge" msgpack:"min_account_age"`

	UpdatedAt time.Time `json:"updatedAt" msgpack:"updated_at"`
}

// DefaultGuildConfig es lo que recibe un guild en su primer acceso.
func DefaultGuildConfig(guildID string) GuildConfig {
	return GuildConfig{
		GuildID:               guildID,
		Prefix:                "!",
		AntiSpamEnabled:       true,
		AntiSpamThreshold:     5,
		AntiSpamWindowSeconds: 5,
		AntiRaidEnabled:       true,
		AntiRaidJoinThreshold: 10,
		AntiRaidWindowSeconds: 10,
		LinkAllowlist:         []string{},
		LinkDenylist:          []string{},
		MusicMaxQueueLength:   100,
		MusicAutoLeaveSeconds: 30,
	}
}

func (c GuildConfig) Clone() GuildConfig {
	c.LinkAllowlist = slices.Clone(c.LinkAllowlist)
	c.LinkDenylist = slices.Clone(c.LinkDenylist)
	return c
}

func (c GuildConfig) SpamWindow() time.Duration {
	return time.Duration(c.AntiSpamWindowSeconds) * time.Second
}

func (c GuildConfig) RaidWindow() time.Duration {
	return time.Duration(c.AntiRaidWindowSeconds) * time.Second
}

func (c GuildConfig) AutoLeave() time.Duration {
	return time.Duration(c.MusicAutoLeaveSeconds) * time.Second
}

// ConfigPatch es un update parcial; los campos nil no se tocan.
type ConfigPatch struct {
	Prefix           *string `json:"prefix,omitempty"`
	WelcomeChannelID *string `json:"welcomeChannelId,omitempty"`
	WelcomeMessage   *string `json:"welcomeMessage,omitempty"`
	WelcomeRoleID    *string `json:"welcomeRoleId,omitempty"`
	LogChannelID     *string `json:"logChannelId,omitempty"`
	ModLogChannelID  *string `json:"modLogChannelId,omitempty"`

	AntiSpamEnabled       *bool `json:"antiSpamEnabled,omitempty"`
	AntiSpamThreshold     *int  `json:"antiSpamThreshold,omitempty"`
	AntiSpamWindowSeconds *int  `json:"antiSpamTimeWindow,omitempty"`

	AntiRaidEnabled       *bool `json:"antiRaidEnabled,omitempty"`
	AntiRaidJoinThreshold *int  `json:"antiRaidJoinThreshold,omitempty"`
	AntiRaidWindowSeconds *int  `json:"antiRaidTimeWindow,omitempty"`

	LinkFilterEnabled *bool     `json:"linkFilterEnabled,omitempty"`
	LinkAllowlist     *[]string `json:"linkWhitelist,omitempty"`
	LinkDenylist      *[]string `json:"linkBlacklist,omitempty"`

	MusicMaxQueueLength   *int `json:"musicMaxQueueLength,omitempty"`
	MusicAutoLeaveSeconds *int `json:"musicAutoLeaveTimeout,omitempty"`

	VerificationEnabled   *bool   `json:"verificationEnabled,omitempty"`
	VerificationRoleID    *string `json:"verificationRoleId,omitempty"`
	VerificationChannelID *string `json:"verificationChannelId,omitempty"`
	MinAccountAgeDays     *int    `json:"minAccountAge,omitempty"`
}

// patchField une un campo del patch con su columna, su nombre json y su setter.
type patchField struct {
	column string
	json   string
	value  any
	apply  func(*GuildConfig)
}

func (p ConfigPatch) fields() []patchField {
	var out []patchField
	str := func(col, js string, v *string, dst func(*GuildConfig) *string) {
		if v != nil {
			val := *v
			out = append(out, patchField{col, js, val, func(c *GuildConfig) { *dst(c) = val }})
		}
	}
	num := func(col, js string, v *int, dst func(*GuildConfig) *int) {
		if v != nil {
			val := *v
			out = append(out, patchField{col, js, val, func(c *GuildConfig) { *dst(c) = val }})
		}
	}
	flag := func(col, js string, v *bool, dst func(*GuildConfig) *bool) {
		if v != nil {
			val := *v
			out = append(out, patchField{col, js, val, func(c *GuildConfig) { *dst(c) = val }})
		}
	}
	list := func(col, js string, v *[]string, dst func(*GuildConfig) *[]string) {
		if v != nil {
			val := slices.Clone(*v)
			if val == nil {
				val = []string{}
			}
			out = append(out, patchField{col, js, val, func(c *GuildConfig) { *dst(c) = slices.Clone(val) }})
		}
	}

	str("prefix", "prefix", p.Prefix, func(c *GuildConfig) *string { return &c.Prefix })
	str("welcome_channel_id", "welcomeChannelId", p.WelcomeChannelID, func(c *GuildConfig) *string { return &c.WelcomeChannelID })
	str("welcome_message", "welcomeMessage", p.WelcomeMessage, func(c *GuildConfig) *string { return &c.WelcomeMessage })
	str("welcome_role_id", "welcomeRoleId", p.WelcomeRoleID, func(c *GuildConfig) *string { return &c.WelcomeRoleID })
	str("log_channel_id", "logChannelId", p.LogChannelID, func(c *GuildConfig) *string { return &c.LogChannelID })
	str("mod_log_channel_id", "modLogChannelId", p.ModLogChannelID, func(c *GuildConfig) *string { return &c.ModLogChannelID })
	flag("anti_spam_enabled", "antiSpamEnabled", p.AntiSpamEnabled, func(c *GuildConfig) *bool { return &c.AntiSpamEnabled })
	num("anti_spam_threshold", "antiSpamThreshold", p.AntiSpamThreshold, func(c *GuildConfig) *int { return &c.AntiSpamThreshold })
	num("anti_spam_window_seconds", "antiSpamTimeWindow", p.AntiSpamWindowSeconds, func(c *GuildConfig) *int { return &c.AntiSpamWindowSeconds })
	flag("anti_raid_enabled", "antiRaidEnabled", p.AntiRaidEnabled, func(c *GuildConfig) *bool { return &c.AntiRaidEnabled })
	num("anti_raid_join_threshold", "antiRaidJoinThreshold", p.AntiRaidJoinThreshold, func(c *GuildConfig) *int { return &c.AntiRaidJoinThreshold })
	num("anti_raid_window_seconds", "antiRaidTimeWindow", p.AntiRaidWindowSeconds, func(c *GuildConfig) *int { return &c.AntiRaidWindowSeconds })
	flag("link_filter_enabled", "linkFilterEnabled", p.LinkFilterEnabled, func(c *GuildConfig) *bool { return &c.LinkFilterEnabled })
	list("link_allowlist", "linkWhitelist", p.LinkAllowlist, func(c *GuildConfig) *[]string { return &c.LinkAllowlist })
	list("link_denylist", "linkBlacklist", p.LinkDenylist, func(c *GuildConfig) *[]string { return &c.LinkDenylist })
	num("music_max_queue_length", "musicMaxQueueLength", p.MusicMaxQueueLength, func(c *GuildConfig) *int { return &c.MusicMaxQueueLength })
	num("music_auto_leave_seconds", "musicAutoLeaveTimeout", p.MusicAutoLeaveSeconds, func(c *GuildConfig) *int { return &c.MusicAutoLeaveSeconds })
	flag("verification_enabled", "verificationEnabled", p.VerificationEnabled, func(c *GuildConfig) *bool { return &c.VerificationEnabled })
	str("verification_role_id", "verificationRoleId", p.VerificationRoleID, func(c *GuildConfig) *string { return &c.VerificationRoleID })
	str("verification_channel_id", "verificationChannelId", p.VerificationChannelID, func(c *GuildConfig) *string { return &c.VerificationChannelID })
	num("min_account_age_days", "minAccountAge", p.MinAccountAgeDays, func(c *GuildConfig) *int { return &c.MinAccountAgeDays })
	return out
}

func (p ConfigPatch) IsEmpty() bool { return len(p.fields()) == 0 }

// ChangedFields lista los nombres json (los del dashboard) de los campos seteados.
func (p ConfigPatch) ChangedFields() []string {
	fs := p.fields()
	out := make([]string, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.json)
	}
	return out
}

// Columns devuelve columna -> valor de cada campo seteado, en orden estable.
func (p ConfigPatch) Columns() ([]string, []any) {
	fs := p.fields()
	cols := make([]string, 0, len(fs))
	vals := make([]any, 0, len(fs))
	for _, f := range fs {
		cols = append(cols, f.column)
		vals = append(vals, f.value)
	}
	return cols, vals
}

// Apply devuelve una copia de c con el patch aplicado.
func (p ConfigPatch) Apply(c GuildConfig) GuildConfig {
	out := c.Clone()
	for _, f := range p.fields() {
		f.apply(&out)
	}
	return out
}

type intRange struct {
	field    string
	min, max int
	get      func(GuildConfig) int
}

var configRanges = []intRange{
	{"antiSpamThreshold", 1, 20, func(c GuildConfig) int { return c.AntiSpamThreshold }},
	{"antiSpamTimeWindow", 1, 60, func(c GuildConfig) int { return c.AntiSpamWindowSeconds }},
	{"antiRaidJoinThreshold", 5, 50, func(c GuildConfig) int { return c.AntiRaidJoinThreshold }},
	{"antiRaidTimeWindow", 5, 60, func(c GuildConfig) int { return c.AntiRaidWindowSeconds }},
	{"musicMaxQueueLength", 10, 500, func(c GuildConfig) int { return c.MusicMaxQueueLength }},
	{"musicAutoLeaveTimeout", 10, 300, func(c GuildConfig) int { return c.MusicAutoLeaveSeconds }},
	{"minAccountAge", 0, 365, func(c GuildConfig) int { return c.MinAccountAgeDays }},
}

// Validate chequea los rangos de c.
func (c GuildConfig) Validate() error {
	if n := len(strings.TrimSpace(c.Prefix)); n < 1 || n > 5 {
		return &ValidationError{Field: "prefix", Reason: "must be 1-5 characters"}
	}
	for _, r := range configRanges {
		if v := r.get(c); v < r.min || v > r.max {
			return &ValidationError{Field: r.field, Reason: fmt.Sprintf("%d outside %d-%d", v, r.min, r.max)}
		}
	}
	return nil
}
