// Package commandtest provides helpers for testing chat commands without Discord.
package commandtest

import (
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/citron/internal/command"
)

// Recorder is a command.Replier that keeps every reply.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	embeds   []*discordgo.MessageEmbed
}

func (r *Recorder) Send(content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, content)
	return nil
}

func (r *Recorder) SendEmbed(embed *discordgo.MessageEmbed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeds = append(r.embeds, embed)
	return nil
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *Recorder) Embeds() []*discordgo.MessageEmbed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*discordgo.MessageEmbed(nil), r.embeds...)
}

// Last returns the most recent plain reply, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

// NewContext builds a message context for a user in a guild channel.
func NewContext(guildID, channelID, userID string, args ...string) (*command.MessageContext, *Recorder) {
	rec := &Recorder{}
	return &command.MessageContext{
		Event: &discordgo.MessageCreate{Message: &discordgo.Message{
			GuildID:   guildID,
			ChannelID: channelID,
			Author:    &discordgo.User{ID: userID, Username: "user-" + userID},
		}},
		Args:  args,
		Reply: rec,
	}, rec
}
