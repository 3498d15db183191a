package discord

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

type dataOption = discordgo.ApplicationCommandInteractionDataOption

// cmdOptions devuelve las opciones del comando o, si hay subcomando, las del subcomando.
func cmdOptions(ic *discordgo.InteractionCreate) []*dataOption {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return nil
	}
	opts := ic.ApplicationCommandData().Options
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return opts[0].Options
	}
	return opts
}

func subcmdName(ic *discordgo.InteractionCreate) (string, bool) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return "", false
	}
	for _, o := range ic.ApplicationCommandData().Options {
		if o.Type == discordgo.ApplicationCommandOptionSubCommand {
			return o.Name, true
		}
	}
	return "", false
}

func findOpt(opts []*dataOption, name string, t discordgo.ApplicationCommandOptionType) (*dataOption, bool) {
	for _, o := range opts {
		if o.Name == name && o.Type == t {
			return o, true
		}
	}
	return nil, false
}

func optStr(opts []*dataOption, name string) (string, bool) {
	if o, ok := findOpt(opts, name, discordgo.ApplicationCommandOptionString); ok {
		return o.StringValue(), true
	}
	return "", false
}

func optBool(opts []*dataOption, name string) (bool, bool) {
	if o, ok := findOpt(opts, name, discordgo.ApplicationCommandOptionBoolean); ok {
		return o.BoolValue(), true
	}
	return false, false
}

func optInt(opts []*dataOption, name string) (int, bool) {
	if o, ok := findOpt(opts, name, discordgo.ApplicationCommandOptionInteger); ok {
		return int(o.IntValue()), true
	}
	return 0, false
}

// optID: canales y roles llegan como snowflake en Value.
func optID(opts []*dataOption, name string, t discordgo.ApplicationCommandOptionType) (string, bool) {
	if o, ok := findOpt(opts, name, t); ok {
		id, _ := o.Value.(string)
		return id, id != ""
	}
	return "", false
}

// parseList: "a.com, b.com" -> [a.com b.com]; "-" vacía la lista.
func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "-" {
		return []string{}
	}
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// patchFromOptions arma el ConfigPatch con lo que vino en /config set.
func patchFromOptions(opts []*dataOption) domain.ConfigPatch {
	var p domain.ConfigPatch
	str := func(name string, dst **string) {
		if v, ok := optStr(opts, name); ok {
			*dst = &v
		}
	}
	id := func(name string, t discordgo.ApplicationCommandOptionType, dst **string) {
		if v, ok := optID(opts, name, t); ok {
			*dst = &v
		}
	}
	flag := func(name string, dst **bool) {
		if v, ok := optBool(opts, name); ok {
			*dst = &v
		}
	}
	num := func(name string, dst **int) {
		if v, ok := optInt(opts, name); ok {
			*dst = &v
		}
	}
	list := func(name string, dst **[]string) {
		if v, ok := optStr(opts, name); ok {
			l := parseList(v)
			*dst = &l
		}
	}
	channel, role := discordgo.ApplicationCommandOptionChannel, discordgo.ApplicationCommandOptionRole

	str("prefix", &p.Prefix)
	id("welcome_channel", channel, &p.WelcomeChannelID)
	str("welcome_message", &p.WelcomeMessage)
	id("welcome_role", role, &p.WelcomeRoleID)
	id("log_channel", channel, &p.LogChannelID)
	id("modlog_channel", channel, &p.ModLogChannelID)
	flag("anti_spam", &p.AntiSpamEnabled)
	num("spam_threshold", &p.AntiSpamThreshold)
	num("spam_window", &p.AntiSpamWindowSeconds)
	flag("anti_raid", &p.AntiRaidEnabled)
	num("raid_joins", &p.AntiRaidJoinThreshold)
	num("raid_window", &p.AntiRaidWindowSeconds)
	flag("link_filter", &p.LinkFilterEnabled)
	list("link_allow", &p.LinkAllowlist)
	list("link_deny", &p.LinkDenylist)
	num("music_max_queue", &p.MusicMaxQueueLength)
	num("music_auto_leave", &p.MusicAutoLeaveSeconds)
	flag("verification", &p.VerificationEnabled)
	id("verification_role", role, &p.VerificationRoleID)
	id("verification_channel", channel, &p.VerificationChannelID)
	num("min_account_age", &p.MinAccountAgeDays)
	return p
}

func fmtDuration(d time.Duration) string {
	if d <= 0 {
		return "?:??"
	}
	s := int(d.Round(time.Second).Seconds())
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// userMessage traduce errores de los servicios a algo mostrable.
func userMessage(err error) string {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("⚠️ Valor inválido para `%s`: %s", verr.Field, verr.Reason)
	case errors.Is(err, domain.ErrShuttingDown):
		return "⏳ El bot se está reiniciando, probá de nuevo en un rato."
	case errors.Is(err, domain.ErrResolutionFailed):
		return "🔎 No encontré nada para reproducir con eso."
	case errors.Is(err, domain.ErrQueueFull):
		return "📜 La cola está llena."
	case errors.Is(err, domain.ErrNotOwner):
		return "🔒 Solo quien inició la sesión puede detener la música."
	case errors.Is(err, domain.ErrNoSession):
		return "ℹ️ No hay música sonando."
	case errors.Is(err, domain.ErrNotFound):
		return "ℹ️ No hay nada sonando ahora."
	case errors.Is(err, domain.ErrConnectivity):
		return "🌐 Un servicio externo no responde, probá de nuevo."
	}
	return "❌ Ocurrió un error inesperado."
}

const defaultWelcome = "¡Bienvenido {user}!"

func welcomeText(tmpl, userID, guildName string, memberCount int) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultWelcome
	}
	return strings.NewReplacer(
		"{user}", "<@"+userID+">",
		"{guild}", guildName,
		"{memberCount}", fmt.Sprint(memberCount),
	).Replace(tmpl)
}

func onOff(b bool) string {
	if b {
		return "✅"
	}
	return "❌"
}

func channelRef(id string) string {
	if id == "" {
		return "—"
	}
	return "<#" + id + ">"
}

func roleRef(id string) string {
	if id == "" {
		return "—"
	}
	return "<@&" + id + ">"
}

func listRef(l []string) string {
	if len(l) == 0 {
		return "—"
	}
	return "`" + strings.Join(l, "`, `") + "`"
}

func describeConfig(c domain.GuildConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Prefijo:** `%s`\n", c.Prefix)
	fmt.Fprintf(&b, "**Bienvenida:** %s · rol %s\n", channelRef(c.WelcomeChannelID), roleRef(c.WelcomeRoleID))
	if c.WelcomeMessage != "" {
		fmt.Fprintf(&b, "> %s\n", c.WelcomeMessage)
	}
	fmt.Fprintf(&b, "**Logs:** %s · **Casos:** %s\n", channelRef(c.LogChannelID), channelRef(c.ModLogChannelID))
	fmt.Fprintf(&b, "**Anti-spam:** %s %d msgs / %ds\n", onOff(c.AntiSpamEnabled), c.AntiSpamThreshold, c.AntiSpamWindowSeconds)
	fmt.Fprintf(&b, "**Anti-raid:** %s %d ingresos / %ds\n", onOff(c.AntiRaidEnabled), c.AntiRaidJoinThreshold, c.AntiRaidWindowSeconds)
	fmt.Fprintf(&b, "**Filtro de links:** %s permitidos %s · bloqueados %s\n", onOff(c.LinkFilterEnabled), listRef(c.LinkAllowlist), listRef(c.LinkDenylist))
	fmt.Fprintf(&b, "**Música:** cola máx %d · sale tras %ds sin música\n", c.MusicMaxQueueLength, c.MusicAutoLeaveSeconds)
	fmt.Fprintf(&b, "**Verificación:** %s cuenta de %d+ días · rol %s · canal %s", onOff(c.VerificationEnabled), c.MinAccountAgeDays, roleRef(c.VerificationRoleID), channelRef(c.VerificationChannelID))
	return b.String()
}
