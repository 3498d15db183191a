package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

var (
	minZero    = 0.0
	minOne     = 1.0
	minFive    = 5.0
	minTen     = 10.0
	adminPerms = int64(discordgo.PermissionManageServer)
)

func (r *Router) commandTable() []Command {
	return []Command{
		{
			Def:     &discordgo.ApplicationCommand{Name: "ping", Description: "¿Está vivo el bot?"},
			Handler: r.cmdPing,
		},
		{
			Def: &discordgo.ApplicationCommand{
				Name:        "play",
				Description: "Reproduce una canción o la agrega a la cola",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL de YouTube, URL de Spotify o búsqueda",
					Required:    true,
				}},
			},
			Public:  true,
			Timeout: 25 * time.Second,
			Handler: r.cmdPlay,
		},
		{
			Def:     &discordgo.ApplicationCommand{Name: "skip", Description: "Saltea la canción actual"},
			Public:  true,
			Handler: r.cmdSkip,
		},
		{
			Def:     &discordgo.ApplicationCommand{Name: "pause", Description: "Pausa la música"},
			Public:  true,
			Handler: r.cmdPause,
		},
		{
			Def:     &discordgo.ApplicationCommand{Name: "resume", Description: "Reanuda la música"},
			Public:  true,
			Handler: r.cmdResume,
		},
		{
			Def:     &discordgo.ApplicationCommand{Name: "stop", Description: "Detiene la música y sale del canal de voz"},
			Public:  true,
			Handler: r.cmdStop,
		},
		{
			Def: &discordgo.ApplicationCommand{Name: "queue", Description: "Muestra lo que está sonando y la cola"},
			// público: los botones editan este mensaje
			Public:  true,
			Handler: r.cmdQueue,
		},
		{
			Def: &discordgo.ApplicationCommand{
				Name:        "volume",
				Description: "Cambia el volumen (aplica desde la próxima canción)",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "level",
					Description: "0 a 200",
					Required:    true,
					MinValue:    &minZero,
					MaxValue:    200,
				}},
			},
			Handler: r.cmdVolume,
		},
		{
			Def: &discordgo.ApplicationCommand{
				Name:                     "leave",
				Description:              "Saca al bot del canal de voz (admins)",
				DefaultMemberPermissions: &adminPerms,
			},
			AdminOnly: true,
			Handler:   r.cmdLeave,
		},
		{
			Def:       configCommand(),
			AdminOnly: true,
			Handler:   r.cmdConfig,
		},
	}
}

func configCommand() *discordgo.ApplicationCommand {
	str := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: desc}
	}
	flag := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionBoolean, Name: name, Description: desc}
	}
	num := func(name, desc string, min *float64, max float64) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: name, Description: desc, MinValue: min, MaxValue: max}
	}
	channel := func(name, desc string, types ...discordgo.ChannelType) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionChannel, Name: name, Description: desc, ChannelTypes: types}
	}
	role := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionRole, Name: name, Description: desc}
	}
	text := discordgo.ChannelTypeGuildText

	return &discordgo.ApplicationCommand{
		Name:                     "config",
		Description:              "Ver o cambiar la configuración del servidor (admins)",
		DefaultMemberPermissions: &adminPerms,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Ver configuración"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Actualizar configuración (sólo lo que pases)",
				Options: []*discordgo.ApplicationCommandOption{
					str("prefix", "Prefijo de comandos (1 a 5 caracteres)"),
					channel("welcome_channel", "Canal de bienvenida", text),
					str("welcome_message", "Mensaje de bienvenida ({user}, {guild}, {memberCount})"),
					role("welcome_role", "Rol al entrar (si pasa la verificación)"),
					channel("log_channel", "Canal de logs", text),
					channel("modlog_channel", "Canal de casos de moderación", text),
					flag("anti_spam", "Anti-spam activo"),
					num("spam_threshold", "Mensajes permitidos por ventana", &minOne, 20),
					num("spam_window", "Ventana anti-spam en segundos", &minOne, 60),
					flag("anti_raid", "Anti-raid activo"),
					num("raid_joins", "Ingresos que disparan el anti-raid", &minFive, 50),
					num("raid_window", "Ventana anti-raid en segundos", &minFive, 60),
					flag("link_filter", "Filtro de links activo"),
					str("link_allow", "Dominios permitidos, separados por coma (\"-\" para vaciar)"),
					str("link_deny", "Dominios bloqueados, separados por coma (\"-\" para vaciar)"),
					num("music_max_queue", "Largo máximo de la cola", &minTen, 500),
					num("music_auto_leave", "Segundos sin música antes de salir del canal", &minTen, 300),
					flag("verification", "Verificación por antigüedad de cuenta"),
					role("verification_role", "Rol de verificado"),
					channel("verification_channel", "Canal de verificación", text),
					num("min_account_age", "Antigüedad mínima de la cuenta en días", &minZero, 365),
				},
			},
		},
	}
}
