package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/citron/internal/storage"
	"github.com/keshon/citron/pkg/cmd"
)

const EmbedColor = 0xf5d033

// Replier sends answers back to where the command came from.
type Replier interface {
	Send(content string) error
	SendEmbed(embed *discordgo.MessageEmbed) error
}

// MessageContext is what the runtime passes to a command triggered by a chat message.
type MessageContext struct {
	Session *discordgo.Session
	Event   *discordgo.MessageCreate
	Storage *storage.Storage
	Args    []string
	Reply   Replier
}

func (c *MessageContext) GuildID() string   { return c.Event.GuildID }
func (c *MessageContext) ChannelID() string { return c.Event.ChannelID }

func (c *MessageContext) AuthorID() string {
	if c.Event.Author == nil {
		return ""
	}
	return c.Event.Author.ID
}

func (c *MessageContext) AuthorName() string {
	if c.Event.Author == nil {
		return "unknown"
	}
	return c.Event.Author.Username
}

// Input returns the arguments joined back into one string.
func (c *MessageContext) Input() string {
	return strings.Join(c.Args, " ")
}

// DiscordCommand is what individual chat commands implement.
type DiscordCommand interface {
	Name() string
	Description() string
	Category() string
	Run(ctx context.Context, mc *MessageContext) error
}

// Usager is implemented by commands that take arguments.
type Usager interface {
	Usage() string
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the
// universal registry.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string        { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }
func (a *DiscordAdapter) Category() string    { return a.Cmd.Category() }

func (a *DiscordAdapter) Aliases() []string {
	if al, ok := a.Cmd.(cmd.Aliased); ok {
		return al.Aliases()
	}
	return nil
}

func (a *DiscordAdapter) Usage() string {
	if u, ok := a.Cmd.(Usager); ok {
		return u.Usage()
	}
	return ""
}

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, ok := inv.Data.(*MessageContext)
	if !ok {
		return fmt.Errorf("command %s: unsupported context %T", a.Cmd.Name(), inv.Data)
	}
	return a.Cmd.Run(ctx, mc)
}

// RegisterCommand registers a Discord command with reg and applies middlewares.
func RegisterCommand(reg *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) error {
	c := cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...)
	return reg.Register(c)
}

// Parse splits a chat message into a command name and its arguments. It reports
// false when the message does not start with prefix or names nothing.
func Parse(content, prefix string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// UsageOf returns the usage line of a registered command, or just its name.
func UsageOf(prefix string, c cmd.Command) string {
	if u, ok := cmd.Root(c).(Usager); ok && u.Usage() != "" {
		return prefix + c.Name() + " " + u.Usage()
	}
	return prefix + c.Name()
}

// ChannelReplier replies with plain channel messages.
type ChannelReplier struct {
	Session   *discordgo.Session
	ChannelID string
}

func (r *ChannelReplier) Send(content string) error {
	_, err := r.Session.ChannelMessageSend(r.ChannelID, content)
	return err
}

func (r *ChannelReplier) SendEmbed(embed *discordgo.MessageEmbed) error {
	if embed.Color == 0 {
		embed.Color = EmbedColor
	}
	_, err := r.Session.ChannelMessageSendEmbed(r.ChannelID, embed)
	return err
}
