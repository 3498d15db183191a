package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

// cuántos temas de la cola se listan en el embed
const queuePreview = 10

// Render del embed + botones de la sesión de música
func renderQueueEmbed(snap domain.SessionSnapshot) (*discordgo.MessageEmbed, discordgo.ActionsRow) {
	var b strings.Builder
	if cur := snap.Current; cur != nil {
		fmt.Fprintf(&b, "🎶 **%s**\n%s\n", trackLine(*cur), requester(*cur))
	} else {
		b.WriteString("Nada sonando.\n")
	}

	if len(snap.Queue) > 0 {
		b.WriteString("\n**En cola:**\n")
		for i, t := range snap.Queue {
			if i == queuePreview {
				fmt.Fprintf(&b, "… y %d más\n", len(snap.Queue)-queuePreview)
				break
			}
			fmt.Fprintf(&b, "%d) %s\n", i+1, trackLine(t))
		}
	}

	status := fmt.Sprintf("Volumen %d%% · %d en cola", snap.Volume, len(snap.Queue))
	if snap.Paused {
		status = "⏸️ Pausado · " + status
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Música",
		Description: b.String(),
		Footer:      &discordgo.MessageEmbedFooter{Text: status},
	}
	if !snap.UpdatedAt.IsZero() {
		embed.Timestamp = snap.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if cur := snap.Current; cur != nil && cur.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: cur.Thumbnail}
	}

	toggle := discordgo.Button{Style: discordgo.SecondaryButton, Label: "Pausa", CustomID: string(keyPause), Emoji: &discordgo.ComponentEmoji{Name: "⏸️"}}
	if snap.Paused {
		toggle = discordgo.Button{Style: discordgo.SuccessButton, Label: "Seguir", CustomID: string(keyResume), Emoji: &discordgo.ComponentEmoji{Name: "▶️"}}
	}
	idle := snap.Current == nil
	toggle.Disabled = idle
	row := discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			toggle,
			discordgo.Button{Style: discordgo.PrimaryButton, Label: "Saltear", CustomID: string(keySkip), Emoji: &discordgo.ComponentEmoji{Name: "⏭️"}, Disabled: idle},
			discordgo.Button{Style: discordgo.DangerButton, Label: "Parar", CustomID: string(keyStop), Emoji: &discordgo.ComponentEmoji{Name: "⏹️"}},
			discordgo.Button{Style: discordgo.SecondaryButton, Label: "Actualizar", CustomID: string(keyRefresh), Emoji: &discordgo.ComponentEmoji{Name: "🔄"}},
		},
	}
	return embed, row
}

func trackLine(t domain.Track) string {
	title := t.Title
	if t.URL != "" {
		title = fmt.Sprintf("[%s](%s)", t.Title, t.URL)
	}
	return fmt.Sprintf("%s — %s `%s`", title, t.Artist, fmtDuration(t.Duration))
}

func requester(t domain.Track) string {
	if t.RequesterID == "" {
		return ""
	}
	return "pedido por <@" + t.RequesterID + ">"
}
