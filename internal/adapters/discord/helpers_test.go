package discord

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

func opt(name string, t discordgo.ApplicationCommandOptionType, v any) *dataOption {
	return &dataOption{Name: name, Type: t, Value: v}
}

func TestPatchFromOptions(t *testing.T) {
	opts := []*dataOption{
		opt("prefix", discordgo.ApplicationCommandOptionString, "?"),
		opt("welcome_channel", discordgo.ApplicationCommandOptionChannel, "123"),
		opt("anti_spam", discordgo.ApplicationCommandOptionBoolean, false),
		opt("spam_threshold", discordgo.ApplicationCommandOptionInteger, float64(8)),
		opt("link_deny", discordgo.ApplicationCommandOptionString, " Bad.example, ,spam.io "),
		opt("verification_role", discordgo.ApplicationCommandOptionRole, "999"),
	}
	p := patchFromOptions(opts)

	require.NotNil(t, p.Prefix)
	assert.Equal(t, "?", *p.Prefix)
	require.NotNil(t, p.WelcomeChannelID)
	assert.Equal(t, "123", *p.WelcomeChannelID)
	require.NotNil(t, p.AntiSpamEnabled)
	assert.False(t, *p.AntiSpamEnabled)
	require.NotNil(t, p.AntiSpamThreshold)
	assert.Equal(t, 8, *p.AntiSpamThreshold)
	require.NotNil(t, p.LinkDenylist)
	assert.Equal(t, []string{"bad.example", "spam.io"}, *p.LinkDenylist)
	require.NotNil(t, p.VerificationRoleID)
	assert.Equal(t, "999", *p.VerificationRoleID)

	assert.Nil(t, p.AntiRaidEnabled)
	assert.Nil(t, p.LinkAllowlist)
	assert.Equal(t, []string{"prefix", "welcomeChannelId", "antiSpamEnabled", "antiSpamThreshold", "linkBlacklist", "verificationRoleId"}, p.ChangedFields())
}

func TestPatchFromOptionsEmpty(t *testing.T) {
	assert.True(t, patchFromOptions(nil).IsEmpty())
}

func TestParseListDashClears(t *testing.T) {
	assert.Equal(t, []string{}, parseList("-"))
	assert.Equal(t, []string{}, parseList(" , "))
	assert.Equal(t, []string{"a.com", "b.com"}, parseList("A.com,b.com"))
}

func TestWelcomeText(t *testing.T) {
	got := welcomeText("Hola {user}, bienvenido a {guild}! Somos {memberCount}. {user}", "42", "Kodari", 1337)
	assert.Equal(t, "Hola <@42>, bienvenido a Kodari! Somos 1337. <@42>", got)
	assert.Equal(t, "¡Bienvenido <@42>!", welcomeText("  ", "42", "Kodari", 1))
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrNoSession, "ℹ️ No hay música sonando."},
		{fmt.Errorf("nothing playing: %w", domain.ErrNotFound), "ℹ️ No hay nada sonando ahora."},
		{domain.ErrNotOwner, "🔒 Solo quien inició la sesión puede detener la música."},
		{fmt.Errorf("x: %w", domain.ErrResolutionFailed), "🔎 No encontré nada para reproducir con eso."},
		{&domain.ValidationError{Field: "volume", Reason: "300 outside 0-200"}, "⚠️ Valor inválido para `volume`: 300 outside 0-200"},
		{fmt.Errorf("boom"), "❌ Ocurrió un error inesperado."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, userMessage(tc.err), tc.err.Error())
	}
}

func TestFmtDuration(t *testing.T) {
	assert.Equal(t, "3:05", fmtDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "1:00:02", fmtDuration(time.Hour+2*time.Second))
	assert.Equal(t, "?:??", fmtDuration(0))
}

func TestHasAnyRole(t *testing.T) {
	assert.True(t, hasAnyRole([]string{"a", "b"}, []string{"c", "b"}))
	assert.False(t, hasAnyRole([]string{"a"}, nil))
	assert.False(t, hasAnyRole(nil, []string{"a"}))
}
