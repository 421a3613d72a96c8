package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/citron/internal/bot"
	"github.com/keshon/citron/internal/music/player"
	"github.com/keshon/citron/internal/music/sequencer"
	"github.com/keshon/citron/internal/music/voice"
)

// GetOrCreatePlayer gets or creates the player of a guild
func (b *Bot) GetOrCreatePlayer(guildID string) *player.Player {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.players[guildID]; ok {
		return p
	}

	p := player.New(guildID, b.fetcher, b.transport(guildID), player.Options{
		ConnectTimeout:  b.cfg.VoiceConnectTimeout,
		DownloadTimeout: b.cfg.DownloadTimeout,
		Logger:          b.log,
	})
	b.players[guildID] = p
	go b.watchPlayer(guildID, p)
	return p
}

// watchPlayer logs the status changes of a guild player until it is closed.
func (b *Bot) watchPlayer(guildID string, p *player.Player) {
	log := b.log.With(slog.String("guild", guildID))
	for status := range p.PlayerStatus {
		attrs := []any{slog.String("status", string(status))}
		if status == player.StatusPlaying {
			attrs = append(attrs, slog.String("track", p.Snapshot().NowPlaying))
		}
		log.Info(status.StringEmoji()+" Player status", attrs...)
	}
	log.Debug("Player closed")
}

func (b *Bot) transport(guildID string) sequencer.Transport {
	return voice.NewTransport(b.dg, guildID, voice.EncodeOptions{
		Bitrate: b.cfg.AudioBitrate,
		Volume:  b.cfg.AudioVolume,
	}, b.log)
}

func (b *Bot) closePlayers() {
	b.mu.Lock()
	players := b.players
	b.players = make(map[string]*player.Player)
	b.mu.Unlock()

	for _, p := range players {
		p.Close()
	}
}

// FindUserVoiceState finds the voice channel of a user. When the user is not in
// one, the first voice channel of the guild is used.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}
	return voiceStateIn(guild, userID)
}

func voiceStateIn(guild *discordgo.Guild, userID string) (*bot.VoiceState, error) {
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &bot.VoiceState{ChannelID: vs.ChannelID, UserID: vs.UserID}, nil
		}
	}
	for _, ch := range guild.Channels {
		if ch.Type == discordgo.ChannelTypeGuildVoice {
			return &bot.VoiceState{ChannelID: ch.ID, UserID: userID}, nil
		}
	}
	return nil, bot.ErrNoVoiceChannel
}
