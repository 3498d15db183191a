// esta es la logica de InteractionApplicationCommand de discordgo
// aqui solo manejamos la interaccion del usuario y despachamos a los servicios
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/kodari-bot/internal/app/service"
	"github.com/jose-valero/kodari-bot/internal/domain"
)

const defaultCommandTimeout = 12 * time.Second

func (r *Router) handleSlashCommand(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.ApplicationCommandData()
	cmd, ok := r.commands[data.Name]
	if !ok {
		return
	}
	c := r.newCtx(s, ic)
	c.Log.Info("slash", "cmd", data.Name)

	defer func() {
		if rec := recover(); rec != nil {
			c.Log.Error("panic in slash command", "cmd", data.Name, "panic", rec)
			ReplyEphemeral(s, ic, "❌ Ocurrió un error inesperado procesando el comando. Contacta con un administrador.")
		}
	}()

	if cmd.Public {
		_ = DeferPublic(s, ic)
	} else {
		_ = DeferEphemeral(s, ic)
	}
	if cmd.AdminOnly && !r.requireAdminOrRoles(s, ic) {
		c.Reply("⛔ Necesitás permisos de administrador para este comando.")
		return
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	defer step(c.Log, "cmd."+data.Name)()

	if err := cmd.Handler(ctx, c); err != nil {
		c.Log.Warn("command failed", "cmd", data.Name, "err", err)
		c.Reply(userMessage(err))
	}
}

func (r *Router) cmdPing(_ context.Context, c *Ctx) error {
	c.Reply("🏓 Pong!")
	return nil
}

//--> música

func (r *Router) cmdPlay(ctx context.Context, c *Ctx) error {
	query, _ := optStr(cmdOptions(c.Event), "query")
	voiceID, ok := r.userVoiceChannel(c.GuildID, c.UserID)
	if !ok {
		c.Reply("🎧 Tenés que estar en un canal de voz.")
		return nil
	}
	t, err := r.music.Play(ctx, service.PlayRequest{
		GuildID:        c.GuildID,
		VoiceChannelID: voiceID,
		TextChannelID:  c.ChannelID,
		Query:          query,
		RequesterID:    c.UserID,
	})
	if err != nil {
		return err
	}
	c.Reply(fmt.Sprintf("🎵 **%s** agregado a la cola.\nArtista: %s · `%s`", t.Title, t.Artist, fmtDuration(t.Duration)))
	return nil
}

func (r *Router) cmdSkip(ctx context.Context, c *Ctx) error {
	t, err := r.music.Skip(ctx, c.GuildID)
	if err != nil {
		return err
	}
	c.Reply("⏭️ Salteado: **" + t.Title + "**")
	return nil
}

func (r *Router) cmdPause(ctx context.Context, c *Ctx) error {
	if err := r.music.Pause(ctx, c.GuildID); err != nil {
		return err
	}
	c.Reply("⏸️ Pausado.")
	return nil
}

func (r *Router) cmdResume(ctx context.Context, c *Ctx) error {
	if err := r.music.Resume(ctx, c.GuildID); err != nil {
		return err
	}
	c.Reply("▶️ Reanudado.")
	return nil
}

func (r *Router) cmdStop(ctx context.Context, c *Ctx) error {
	if err := r.music.Stop(ctx, c.GuildID, c.UserID); err != nil {
		return err
	}
	c.Reply("⏹️ Música detenida.")
	return nil
}

func (r *Router) cmdLeave(ctx context.Context, c *Ctx) error {
	if err := r.music.Disconnect(ctx, c.GuildID); err != nil {
		return err
	}
	c.Reply("👋 Salí del canal de voz.")
	return nil
}

func (r *Router) cmdVolume(ctx context.Context, c *Ctx) error {
	level, _ := optInt(cmdOptions(c.Event), "level")
	if err := r.music.SetVolume(ctx, c.GuildID, level); err != nil {
		return err
	}
	c.Reply(fmt.Sprintf("🔊 Volumen en %d%% (aplica desde la próxima canción).", level))
	return nil
}

func (r *Router) cmdQueue(_ context.Context, c *Ctx) error {
	snap, ok := r.music.Session(c.GuildID)
	if !ok {
		return domain.ErrNoSession
	}
	embed, row := renderQueueEmbed(snap)
	Reply(c.Session, c.Event, &discordgo.WebhookParams{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{row},
	})
	return nil
}

//--> configuración

func (r *Router) cmdConfig(ctx context.Context, c *Ctx) error {
	sub, _ := subcmdName(c.Event)
	switch sub {
	case "show":
		cfg, err := r.configs.GetConfig(ctx, c.GuildID)
		if err != nil {
			return err
		}
		c.Reply("", &discordgo.MessageEmbed{Title: "⚙️ Configuración", Description: describeConfig(cfg)})
	case "set":
		patch := patchFromOptions(cmdOptions(c.Event))
		if patch.IsEmpty() {
			c.Reply("Pasá al menos una opción para cambiar.")
			return nil
		}
		cfg, err := r.configs.UpdateConfig(ctx, c.GuildID, patch)
		if err != nil {
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				c.Log.Error("config update failed", "err", err)
			}
			return err
		}
		c.Reply("✅ Configuración actualizada: `"+strings.Join(patch.ChangedFields(), "`, `")+"`",
			&discordgo.MessageEmbed{Title: "⚙️ Configuración", Description: describeConfig(cfg)})
	default:
		c.Reply("Usá `/config show` o `/config set`.")
	}
	return nil
}
