package bot

import (
	"errors"

	"github.com/keshon/citron/internal/music/player"
)

var ErrNoVoiceChannel = errors.New("no voice channel to join")

// BotVoice is what the Discord bot provides to music commands.
type BotVoice interface {
	GetOrCreatePlayer(guildID string) *player.Player
	FindUserVoiceState(guildID, userID string) (*VoiceState, error)
}

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// Lifecycle lets commands end the process.
type Lifecycle interface {
	Shutdown()
}
