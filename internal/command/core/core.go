package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/citron/internal/bot"
	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/internal/config"
	"github.com/keshon/citron/internal/music/sequencer"
	"github.com/keshon/citron/pkg/cmd"
)

const category = "🍋 General"

type HelpCommand struct {
	Registry *cmd.Registry
	Prefix   string
}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "List what I can do" }
func (c *HelpCommand) Category() string    { return category }

func (c *HelpCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	groups := map[string][]string{}
	for _, entry := range c.Registry.GetAll() {
		line := fmt.Sprintf("`%s` : %s", command.UsageOf(c.Prefix, entry), entry.Description())
		if aliases := cmd.AliasesOf(entry); len(aliases) > 0 {
			line += fmt.Sprintf(" (also `%s%s`)", c.Prefix, strings.Join(aliases, "`, `"+c.Prefix))
		}
		cat := cmd.CategoryOf(entry)
		groups[cat] = append(groups[cat], line)
	}

	cats := make([]string, 0, len(groups))
	for cat := range groups {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := config.CategoryWeight(cats[i]), config.CategoryWeight(cats[j])
		if wi != wj {
			return wi < wj
		}
		return cats[i] < cats[j]
	})

	embed := &discordgo.MessageEmbed{Title: "Here's how to use me ♪"}
	for _, cat := range cats {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  cat,
			Value: strings.Join(groups[cat], "\n"),
		})
	}
	return mc.Reply.SendEmbed(embed)
}

type YuzuCommand struct{}

func (c *YuzuCommand) Name() string        { return "yuzu" }
func (c *YuzuCommand) Description() string { return "Say hi" }
func (c *YuzuCommand) Category() string    { return category }

func (c *YuzuCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	return mc.Reply.Send("Hm? You want to talk with Yuzu?")
}

// Nicknamer renames the bot inside a guild.
type Nicknamer interface {
	SetNickname(guildID, nickname string) error
}

type NameCommand struct {
	Nick    Nicknamer
	BotName string
}

func (c *NameCommand) Name() string        { return "name" }
func (c *NameCommand) Description() string { return "Reset my nickname in this server" }
func (c *NameCommand) Category() string    { return category }

func (c *NameCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	if err := c.Nick.SetNickname(mc.GuildID(), c.BotName); err != nil {
		return fmt.Errorf("failed to set nickname: %w", err)
	}
	return mc.Reply.Send(fmt.Sprintf("Call me **%s**!", c.BotName))
}

type ByeCommand struct {
	Voice     bot.BotVoice
	Lifecycle bot.Lifecycle
	Logger    *slog.Logger
}

func (c *ByeCommand) Name() string        { return "bye" }
func (c *ByeCommand) Description() string { return "Leave voice and log off" }
func (c *ByeCommand) Category() string    { return category }

func (c *ByeCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	if err := mc.Reply.Send("Bye-bye ♪"); err != nil {
		return err
	}

	err := c.Voice.GetOrCreatePlayer(mc.GuildID()).Leave()
	if err != nil && !errors.Is(err, sequencer.ErrNotConnected) {
		c.logger().Warn("Failed to leave voice channel", slog.Any("error", err))
	}

	c.logger().Info("Logging off", slog.String("requested_by", mc.AuthorName()))
	c.Lifecycle.Shutdown()
	return nil
}

func (c *ByeCommand) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
