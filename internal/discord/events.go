package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sourcegraph/conc/panics"

	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/pkg/cmd"
)

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("Discord bot is running",
		slog.String("user", r.User.Username),
		slog.Int("guilds", len(r.Guilds)),
		slog.String("prefix", b.cfg.CommandPrefix),
	)
}

// onMessageCreate is called when a message is created
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if s.State != nil && s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
		return
	}
	b.handleMessage(s, m)
}

// handleMessage parses a chat message and runs the command it names on the
// worker pool. Unknown commands are ignored.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	name, args, ok := command.Parse(m.Content, b.cfg.CommandPrefix)
	if !ok {
		return
	}
	c := b.registry.Get(name)
	if c == nil {
		return
	}

	reply := b.replier(m.ChannelID)
	mc := &command.MessageContext{
		Session: s,
		Event:   m,
		Storage: b.storage,
		Args:    args,
		Reply:   reply,
	}
	inv := &cmd.Invocation{Name: name, Args: args, Data: mc}

	b.workersMu.RLock()
	defer b.workersMu.RUnlock()
	if b.draining {
		return
	}
	b.workers.Go(func() {
		var err error
		var pc panics.Catcher
		pc.Try(func() { err = c.Run(b.ctx, inv) })

		if r := pc.Recovered(); r != nil {
			b.log.Error("Command panicked",
				slog.String("command", c.Name()),
				slog.Any("panic", r.Value),
				slog.String("stack", string(r.Stack)),
			)
			err = r.AsError()
		}
		if err == nil {
			return
		}

		b.log.Error("Error running command", slog.String("command", c.Name()), slog.Any("error", err))
		if e := reply.SendEmbed(&discordgo.MessageEmbed{
			Title:       "Oops",
			Description: fmt.Sprintf("Something went wrong with `%s`: %v", c.Name(), err),
		}); e != nil {
			b.log.Warn("Failed to send error reply", slog.Any("error", e))
		}
	})
}
