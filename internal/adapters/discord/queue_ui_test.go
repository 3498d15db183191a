package discord

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

func buttons(t *testing.T, row discordgo.ActionsRow) []discordgo.Button {
	t.Helper()
	out := make([]discordgo.Button, 0, len(row.Components))
	for _, c := range row.Components {
		b, ok := c.(discordgo.Button)
		require.True(t, ok)
		out = append(out, b)
	}
	return out
}

func TestRenderQueueEmbed(t *testing.T) {
	cur := domain.Track{Title: "X", Artist: "A", URL: "https://yt/x", Duration: 2 * time.Minute, RequesterID: "u1", Thumbnail: "https://img/x"}
	snap := domain.SessionSnapshot{
		GuildID: "g1",
		Current: &cur,
		Queue:   []domain.Track{{Title: "Y", Artist: "B", Duration: time.Minute}},
		Volume:  80,
	}
	embed, row := renderQueueEmbed(snap)

	assert.Contains(t, embed.Description, "[X](https://yt/x) — A `2:00`")
	assert.Contains(t, embed.Description, "pedido por <@u1>")
	assert.Contains(t, embed.Description, "1) Y — B `1:00`")
	assert.Equal(t, "Volumen 80% · 1 en cola", embed.Footer.Text)
	require.NotNil(t, embed.Thumbnail)

	bs := buttons(t, row)
	require.Len(t, bs, 4)
	assert.Equal(t, string(keyPause), bs[0].CustomID)
	assert.False(t, bs[1].Disabled)
}

func TestRenderQueueEmbedPausedAndLong(t *testing.T) {
	cur := domain.Track{Title: "X"}
	snap := domain.SessionSnapshot{Current: &cur, Paused: true, Volume: 100}
	for i := 0; i < 15; i++ {
		snap.Queue = append(snap.Queue, domain.Track{Title: fmt.Sprintf("T%d", i)})
	}
	embed, row := renderQueueEmbed(snap)

	assert.Contains(t, embed.Description, "10) T9")
	assert.NotContains(t, embed.Description, "T10")
	assert.Contains(t, embed.Description, "… y 5 más")
	assert.True(t, strings.HasPrefix(embed.Footer.Text, "⏸️ Pausado"))
	assert.Equal(t, string(keyResume), buttons(t, row)[0].CustomID)
}

func TestRenderQueueEmbedIdle(t *testing.T) {
	embed, row := renderQueueEmbed(domain.SessionSnapshot{Volume: 100})
	assert.Contains(t, embed.Description, "Nada sonando.")
	bs := buttons(t, row)
	assert.True(t, bs[0].Disabled)
	assert.True(t, bs[1].Disabled)
	assert.False(t, bs[2].Disabled)
}
