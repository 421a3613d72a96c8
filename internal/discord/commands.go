package discord

import (
	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/internal/command/core"
	"github.com/keshon/citron/internal/command/lookup"
	"github.com/keshon/citron/internal/command/music"
	"github.com/keshon/citron/internal/middleware"
	"github.com/keshon/citron/pkg/cmd"
)

// registerCommands wires every chat command with its middleware.
func (b *Bot) registerCommands(deps Deps) error {
	cooldown := middleware.NewCooldown(b.cfg.CommandCooldown)
	logged := middleware.WithCommandLogger(b.log)
	guarded := []cmd.Middleware{middleware.WithGuildOnly(), middleware.WithCooldown(cooldown), logged}

	cmds := []command.DiscordCommand{
		music.NewPlay(b),
		music.NewStop(b),
		music.NewPause(b),
		music.NewResume(b),
		music.NewList(b),
		music.NewLeave(b),
		&core.NameCommand{Nick: b, BotName: b.cfg.BotName},
		&core.ByeCommand{Voice: b, Lifecycle: b, Logger: b.log},
	}
	if deps.Images != nil {
		cmds = append(cmds, &lookup.SearchCommand{Images: deps.Images})
	}
	if deps.Profiles != nil {
		cmds = append(cmds, &lookup.ProfileCommand{Profiles: deps.Profiles})
	}
	for _, c := range cmds {
		if err := command.RegisterCommand(b.registry, c, guarded...); err != nil {
			return err
		}
	}

	open := []command.DiscordCommand{
		&core.HelpCommand{Registry: b.registry, Prefix: b.cfg.CommandPrefix},
		&core.YuzuCommand{},
	}
	for _, c := range open {
		if err := command.RegisterCommand(b.registry, c, logged); err != nil {
			return err
		}
	}
	return nil
}
