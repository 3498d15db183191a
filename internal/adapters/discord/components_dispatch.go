package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/kodari-bot/internal/domain"
)

func (r *Router) handleMessageComponent(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.MessageComponentData()
	c := r.newCtx(s, ic)

	defer func() {
		if rec := recover(); rec != nil {
			c.Log.Error("panic in component", "id", data.CustomID, "panic", rec)
		}
	}()

	_ = DeferEphemeral(s, ic)
	if !r.clickLimiter.Allow(c.UserID) {
		c.Reply("⏳ Esperá un segundo…")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	defer step(c.Log, "component."+data.CustomID)()

	var (
		msg string
		err error
	)
	switch ComponentKey(data.CustomID) {
	case keySkip:
		var t domain.Track
		if t, err = r.music.Skip(ctx, c.GuildID); err == nil {
			msg = "⏭️ Salteado: **" + t.Title + "**"
		}
	case keyPause:
		if err = r.music.Pause(ctx, c.GuildID); err == nil {
			msg = "⏸️ Pausado."
		}
	case keyResume:
		if err = r.music.Resume(ctx, c.GuildID); err == nil {
			msg = "▶️ Reanudado."
		}
	case keyStop:
		if err = r.music.Stop(ctx, c.GuildID, c.UserID); err == nil {
			msg = "⏹️ Música detenida."
		}
	case keyRefresh:
		msg = "🔄 Actualizado."
	default:
		return
	}
	if err != nil {
		c.Log.Info("component rejected", "id", data.CustomID, "err", err)
		msg = userMessage(err)
	}
	c.Reply(msg)

	if ic.Message != nil {
		r.refreshQueueMessage(c, ic.Message.ID)
	}
}

// refreshQueueMessage re-renderiza el embed de /queue donde se hizo click.
func (r *Router) refreshQueueMessage(c *Ctx, messageID string) {
	snap, ok := r.music.Session(c.GuildID)
	if !ok {
		snap = domain.SessionSnapshot{GuildID: c.GuildID}
	}
	embed, row := renderQueueEmbed(snap)
	em := []*discordgo.MessageEmbed{embed}
	cc := []discordgo.MessageComponent{row}
	_, err := c.Session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    c.ChannelID,
		ID:         messageID,
		Embeds:     &em,
		Components: &cc,
	})
	if err != nil {
		c.Log.Debug("queue message edit failed", "err", err)
	}
}
