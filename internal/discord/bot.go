package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sourcegraph/conc/pool"

	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/internal/command/lookup"
	"github.com/keshon/citron/internal/config"
	"github.com/keshon/citron/internal/music/player"
	"github.com/keshon/citron/internal/storage"
	"github.com/keshon/citron/pkg/cmd"
)

const maxConcurrentCommands = 16

// Deps are the services the bot hands to its commands.
type Deps struct {
	Config   *config.Config
	Storage  *storage.Storage
	Fetcher  player.Fetcher
	Images   lookup.ImageSearcher
	Profiles lookup.ProfileFinder
	Logger   *slog.Logger
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	fetcher  player.Fetcher
	registry *cmd.Registry
	log      *slog.Logger

	ctx     context.Context
	replier func(channelID string) command.Replier

	// workers may not take new tasks once draining is set
	workersMu sync.RWMutex
	workers   *pool.Pool
	draining  bool

	mu      sync.Mutex
	players map[string]*player.Player

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New creates the session and registers every command.
func New(deps Deps) (*Bot, error) {
	dg, err := discordgo.New("Bot " + deps.Config.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	b := newBot(deps)
	b.dg = dg
	b.replier = func(channelID string) command.Replier {
		return &command.ChannelReplier{Session: dg, ChannelID: channelID}
	}

	if err := b.registerCommands(deps); err != nil {
		return nil, err
	}
	return b, nil
}

func newBot(deps Deps) *Bot {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		cfg:      deps.Config,
		storage:  deps.Storage,
		fetcher:  deps.Fetcher,
		registry: cmd.NewRegistry(),
		log:      logger.With(slog.String("component", "discord")),
		ctx:      context.Background(),
		workers:  pool.New().WithMaxGoroutines(maxConcurrentCommands),
		players:  make(map[string]*player.Player),
		shutdown: make(chan struct{}),
	}
}

// Run opens the gateway connection and blocks until ctx ends or a command asks
// the bot to log off.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	b.configureIntents()
	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onMessageCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	select {
	case <-ctx.Done():
		b.log.Info("Shutdown signal received, cleaning up")
	case <-b.shutdown:
		b.log.Info("Logging off on request, cleaning up")
	}

	b.drainWorkers()
	b.closePlayers()
	if err := b.dg.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

func (b *Bot) drainWorkers() {
	b.workersMu.Lock()
	b.draining = true
	b.workersMu.Unlock()
	b.workers.Wait()
}

// Shutdown asks Run to return.
func (b *Bot) Shutdown() {
	b.shutdownOnce.Do(func() { close(b.shutdown) })
}

// SetNickname renames the bot inside a guild.
func (b *Bot) SetNickname(guildID, nickname string) error {
	return b.dg.GuildMemberNickname(guildID, "@me", nickname)
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
}
