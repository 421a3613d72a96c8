// Package lookup holds the commands that fetch things for the chat: pictures and
// member profiles.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/citron/internal/command"
	"github.com/keshon/citron/internal/imagesearch"
	"github.com/keshon/citron/internal/profile"
)

const category = "🔎 Lookup"

// ImageSearcher finds image links.
type ImageSearcher interface {
	Search(ctx context.Context, query string, n int) ([]string, error)
}

type SearchCommand struct {
	Images ImageSearcher
}

func (c *SearchCommand) Name() string        { return "search" }
func (c *SearchCommand) Description() string { return "Search the web for pictures" }
func (c *SearchCommand) Category() string    { return category }
func (c *SearchCommand) Usage() string       { return "[1-5] <words>" }
func (c *SearchCommand) Aliases() []string   { return []string{"img"} }

func (c *SearchCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	query, n := imagesearch.ParseArgs(mc.Args)
	if strings.TrimSpace(query) == "" {
		return mc.Reply.Send("What should I look for? `search [1-5] <words>`")
	}

	if err := mc.Reply.Send(fmt.Sprintf("Looking for %d picture(s)!", n)); err != nil {
		return err
	}

	links, err := c.Images.Search(ctx, query, n)
	if errors.Is(err, imagesearch.ErrNoResults) {
		return mc.Reply.Send("I couldn't find any pictures of that.")
	}
	if err != nil {
		return fmt.Errorf("image search: %w", err)
	}

	for _, link := range links {
		if err := mc.Reply.Send(link); err != nil {
			return err
		}
	}
	return nil
}

// ProfileFinder looks up member profiles by name.
type ProfileFinder interface {
	FindByName(ctx context.Context, name string) (*profile.Profile, error)
}

type ProfileCommand struct {
	Profiles ProfileFinder
}

func (c *ProfileCommand) Name() string        { return "profile" }
func (c *ProfileCommand) Description() string { return "Show a member profile" }
func (c *ProfileCommand) Category() string    { return category }
func (c *ProfileCommand) Usage() string       { return "<name>" }

func (c *ProfileCommand) Run(ctx context.Context, mc *command.MessageContext) error {
	name := mc.Input()
	if name == "" {
		return mc.Reply.Send("Whose profile? `profile <name>`")
	}

	p, err := c.Profiles.FindByName(ctx, name)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return mc.Reply.Send(fmt.Sprintf("I don't know anyone called **%s**.", name))
	case errors.Is(err, profile.ErrDisabled):
		return mc.Reply.Send("Profiles aren't set up here yet.")
	case err != nil:
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title:       p.DisplayName,
		Description: p.Bio,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Name", Value: p.Name, Inline: true},
		},
	}
	if embed.Title == "" {
		embed.Title = p.Name
	}
	if p.FavoriteTrack != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Favorite track", Value: p.FavoriteTrack, Inline: true,
		})
	}
	if !p.UpdatedAt.IsZero() {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Updated " + p.UpdatedAt.Format("2006-01-02")}
	}
	return mc.Reply.SendEmbed(embed)
}
