// Package music holds the playback commands.
package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/citron/internal/bot"
	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/internal/music/player"
	"github.com/keshon/citron/internal/music/sequencer"
	"github.com/keshon/citron/internal/music/source_resolver"
	"github.com/keshon/citron/internal/music/sources"
)

const category = "🎵 Music"

const divider = "----------------------------"

type base struct {
	Bot bot.BotVoice
}

func (base) Category() string { return category }

type PlayCommand struct{ base }

func NewPlay(b bot.BotVoice) *PlayCommand { return &PlayCommand{base{Bot: b}} }

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Play a YouTube link or a track from the shared Drive" }
func (c *PlayCommand) Usage() string       { return "<youtube link | words>" }
func (c *PlayCommand) Aliases() []string   { return []string{"p"} }

func (c *PlayCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	input := mc.Input()
	if input == "" {
		return mc.Reply.Send("Tell me what to play: `play <youtube link | words>`")
	}

	vs, err := c.Bot.FindUserVoiceState(mc.GuildID(), mc.AuthorID())
	if err != nil {
		return mc.Reply.Send("Join a voice channel first and I'll come over!")
	}

	p := c.Bot.GetOrCreatePlayer(mc.GuildID())
	notify := func() {
		_ = mc.Reply.Send("Downloading it now, wait a bit!")
	}

	res, err := p.Play(ctx, input, vs.ChannelID, notify)
	if err != nil {
		return replyPlayError(mc, err)
	}

	if res.Status == player.StatusAdded {
		return mc.Reply.Send(fmt.Sprintf("Added **%s** to the queue! (#%d)", res.Track.DisplayName(), res.Position))
	}
	return mc.Reply.Send(fmt.Sprintf("Playing **%s** now ♪", res.Track.DisplayName()))
}

func replyPlayError(mc *command.MessageContext, err error) error {
	var amb *sources.AmbiguousError
	var unavailable *sequencer.UnavailableError
	switch {
	case errors.As(err, &amb):
		var b strings.Builder
		b.WriteString("**Which one?**\n" + divider + "\n")
		for i, name := range amb.Names {
			fmt.Fprintf(&b, "**%d.** %s\n", i+1, name)
		}
		b.WriteString(divider)
		return mc.Reply.Send(b.String())
	case errors.Is(err, sources.ErrNotFound):
		return mc.Reply.Send("Looks like there's no such track.")
	case errors.Is(err, source_resolver.ErrEmptyInput):
		return mc.Reply.Send("Tell me what to play: `play <youtube link | words>`")
	case errors.As(err, &unavailable):
		return mc.Reply.Send(fmt.Sprintf("I couldn't get that track ready: %v", unavailable.Err))
	default:
		return err
	}
}

type StopCommand struct{ base }

func NewStop(b bot.BotVoice) *StopCommand { return &StopCommand{base{Bot: b}} }

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "Stop the current track and move on" }

func (c *StopCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	res, err := c.Bot.GetOrCreatePlayer(mc.GuildID()).Stop()
	if err != nil {
		return err
	}
	if res == sequencer.Stopped {
		return mc.Reply.Send("Stopping the song already?")
	}
	return mc.Reply.Send("It's already stopped, you know?")
}

type PauseCommand struct{ base }

func NewPause(b bot.BotVoice) *PauseCommand { return &PauseCommand{base{Bot: b}} }

func (c *PauseCommand) Name() string        { return "pause" }
func (c *PauseCommand) Description() string { return "Pause the current track" }

func (c *PauseCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	res, err := c.Bot.GetOrCreatePlayer(mc.GuildID()).Pause()
	if err != nil {
		return err
	}
	switch res {
	case sequencer.PausedNow:
		return mc.Reply.Send("Paused! *snip*")
	case sequencer.AlreadyPaused:
		return mc.Reply.Send("Use `resume` to carry on!")
	default:
		return mc.Reply.Send("Nothing is playing right now.")
	}
}

type ResumeCommand struct{ base }

func NewResume(b bot.BotVoice) *ResumeCommand { return &ResumeCommand{base{Bot: b}} }

func (c *ResumeCommand) Name() string        { return "resume" }
func (c *ResumeCommand) Description() string { return "Resume a paused track" }

func (c *ResumeCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	res, err := c.Bot.GetOrCreatePlayer(mc.GuildID()).Resume()
	if err != nil {
		return err
	}
	switch res {
	case sequencer.Resumed:
		return mc.Reply.Send("Resuming!")
	case sequencer.AlreadyPlaying:
		return mc.Reply.Send("It's already playing~")
	default:
		return mc.Reply.Send("Nothing is playing right now.")
	}
}

type ListCommand struct{ base }

func NewList(b bot.BotVoice) *ListCommand { return &ListCommand{base{Bot: b}} }

func (c *ListCommand) Name() string        { return "list" }
func (c *ListCommand) Description() string { return "Show the playing track and the queue" }
func (c *ListCommand) Aliases() []string   { return []string{"queue"} }

func (c *ListCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	snap := c.Bot.GetOrCreatePlayer(mc.GuildID()).Snapshot()

	names := snap.Queued
	if snap.NowPlaying != "" {
		names = append([]string{snap.NowPlaying}, names...)
	}
	if len(names) == 0 {
		return mc.Reply.Send("So quiet here~")
	}

	var b strings.Builder
	b.WriteString("Here's the playlist right now\n" + divider + "\n")
	for i, name := range names {
		fmt.Fprintf(&b, "**%d.** %s", i+1, name)
		if i == 0 && snap.NowPlaying != "" {
			fmt.Fprintf(&b, " (%s)", snap.State)
		}
		b.WriteString("\n")
	}
	b.WriteString(divider)
	return mc.Reply.Send(b.String())
}

type LeaveCommand struct{ base }

func NewLeave(b bot.BotVoice) *LeaveCommand { return &LeaveCommand{base{Bot: b}} }

func (c *LeaveCommand) Name() string        { return "leave" }
func (c *LeaveCommand) Description() string { return "Clear the queue and leave the voice channel" }

func (c *LeaveCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	err := c.Bot.GetOrCreatePlayer(mc.GuildID()).Leave()
	if errors.Is(err, sequencer.ErrNotConnected) {
		return mc.Reply.Send("I'm not in a voice channel.")
	}
	if err != nil {
		return err
	}
	return mc.Reply.Send("Leaving the voice channel, see you!")
}
