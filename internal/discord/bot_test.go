package discord

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/citron/internal/bot"
	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/internal/command/commandtest"
	"github.com/keshon/citron/internal/config"
	"github.com/keshon/citron/internal/music/player"
	"github.com/keshon/citron/internal/music/sources"
)

type scriptedCommand struct {
	mu   sync.Mutex
	args [][]string
	err  error
	boom bool
}

func (c *scriptedCommand) Name() string        { return "echo" }
func (c *scriptedCommand) Description() string { return "Echo" }
func (c *scriptedCommand) Category() string    { return "Test" }

func (c *scriptedCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	c.mu.Lock()
	c.args = append(c.args, mc.Args)
	c.mu.Unlock()
	if c.boom {
		panic("kaboom")
	}
	return c.err
}

func (c *scriptedCommand) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.args)
}

func newTestBot(t *testing.T, c command.DiscordCommand) (*Bot, *commandtest.Recorder) {
	t.Helper()
	b := newBot(Deps{Config: &config.Config{CommandPrefix: "/"}})
	rec := &commandtest.Recorder{}
	b.replier = func(string) command.Replier { return rec }
	require.NoError(t, command.RegisterCommand(b.registry, c))
	return b, rec
}

func message(content string, author *discordgo.User) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		GuildID:   "g1",
		ChannelID: "c1",
		Content:   content,
		Author:    author,
	}}
}

var human = &discordgo.User{ID: "u1", Username: "yuzu"}

func TestHandleMessage_Dispatch(t *testing.T) {
	c := &scriptedCommand{}
	b, rec := newTestBot(t, c)

	b.handleMessage(nil, message("/echo hello there", human))
	b.handleMessage(nil, message("/echoes nope", human))
	b.handleMessage(nil, message("echo nope", human))
	b.handleMessage(nil, message("/echo from a bot", &discordgo.User{ID: "b1", Bot: true}))
	b.handleMessage(nil, message("/echo nobody", nil))
	b.drainWorkers()

	require.Equal(t, 1, c.calls())
	assert.Equal(t, []string{"hello", "there"}, c.args[0])
	assert.Empty(t, rec.Embeds())
}

func TestHandleMessage_ErrorsAndPanicsReply(t *testing.T) {
	failing := &scriptedCommand{err: errors.New("no quota")}
	b, rec := newTestBot(t, failing)
	b.handleMessage(nil, message("/echo", human))
	b.drainWorkers()

	embeds := rec.Embeds()
	require.Len(t, embeds, 1)
	assert.Contains(t, embeds[0].Description, "no quota")

	panicky := &scriptedCommand{boom: true}
	b, rec = newTestBot(t, panicky)
	b.handleMessage(nil, message("/echo", human))
	b.drainWorkers()

	embeds = rec.Embeds()
	require.Len(t, embeds, 1)
	assert.Contains(t, embeds[0].Description, "kaboom")
}

func TestShutdownIsIdempotent(t *testing.T) {
	b := newBot(Deps{Config: &config.Config{}})
	b.Shutdown()
	b.Shutdown()

	select {
	case <-b.shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown channel not closed")
	}
}

func TestVoiceStateIn(t *testing.T) {
	guild := &discordgo.Guild{
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "u2", ChannelID: "v2"},
			{UserID: "u1", ChannelID: "v1"},
		},
		Channels: []*discordgo.Channel{
			{ID: "t1", Type: discordgo.ChannelTypeGuildText},
			{ID: "v0", Type: discordgo.ChannelTypeGuildVoice},
		},
	}

	vs, err := voiceStateIn(guild, "u1")
	require.NoError(t, err)
	assert.Equal(t, "v1", vs.ChannelID)

	vs, err = voiceStateIn(guild, "u9")
	require.NoError(t, err)
	assert.Equal(t, "v0", vs.ChannelID)

	_, err = voiceStateIn(&discordgo.Guild{}, "u1")
	assert.ErrorIs(t, err, bot.ErrNoVoiceChannel)
}

func TestRegisterCommands(t *testing.T) {
	b := newBot(Deps{Config: &config.Config{CommandPrefix: "/", BotName: "DJ_Citron", CommandCooldown: time.Second}})
	require.NoError(t, b.registerCommands(Deps{}))

	for _, name := range []string{"play", "p", "stop", "pause", "resume", "list", "queue", "leave", "name", "bye", "help", "yuzu"} {
		assert.NotNil(t, b.registry.Get(name), name)
	}
	assert.Nil(t, b.registry.Get("search"))
	assert.Nil(t, b.registry.Get("profile"))
}

func TestHandleMessage_IgnoredWhileDraining(t *testing.T) {
	c := &scriptedCommand{}
	b, _ := newTestBot(t, c)
	b.drainWorkers()

	b.handleMessage(nil, message("/echo late", human))
	assert.Equal(t, 0, c.calls())
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type missingFetcher struct{}

func (missingFetcher) Fetch(ctx context.Context, req sources.Request) (*sources.Result, error) {
	return nil, sources.ErrNotFound
}

func TestWatchPlayer_LogsUntilClosed(t *testing.T) {
	var out lockedBuffer
	b := newBot(Deps{
		Config: &config.Config{CommandPrefix: "/"},
		Logger: slog.New(slog.NewTextHandler(&out, nil)),
	})
	p := player.New("g1", missingFetcher{}, nil, player.Options{})

	_, err := p.Play(context.Background(), "lemon", "voice", nil)
	require.ErrorIs(t, err, sources.ErrNotFound)

	done := make(chan struct{})
	go func() {
		b.watchPlayer("g1", p)
		close(done)
	}()
	p.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after the player closed")
	}
	assert.Contains(t, out.String(), "status=Error")
	assert.Contains(t, out.String(), "guild=g1")
}
