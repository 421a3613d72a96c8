package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/citron/internal/command/commandtest"
	"github.com/keshon/citron/internal/imagesearch"
	"github.com/keshon/citron/internal/profile"
)

type fakeImages struct {
	query string
	n     int
	links []string
	err   error
}

func (f *fakeImages) Search(ctx context.Context, query string, n int) ([]string, error) {
	f.query, f.n = query, n
	if f.err != nil {
		return nil, f.err
	}
	return f.links[:min(n, len(f.links))], nil
}

type fakeProfiles map[string]*profile.Profile

func (f fakeProfiles) FindByName(ctx context.Context, name string) (*profile.Profile, error) {
	if f == nil {
		return nil, profile.ErrDisabled
	}
	p, ok := f[name]
	if !ok {
		return nil, profile.ErrNotFound
	}
	return p, nil
}

func TestSearch(t *testing.T) {
	images := &fakeImages{links: []string{"http://a/1.png", "http://a/2.png", "http://a/3.png"}}
	c := &SearchCommand{Images: images}

	mc, rec := commandtest.NewContext("g1", "c1", "u1", "2", "red", "panda")
	require.NoError(t, c.Run(context.Background(), mc))
	assert.Equal(t, "red panda", images.query)
	assert.Equal(t, 2, images.n)
	assert.Equal(t, []string{"Looking for 2 picture(s)!", "http://a/1.png", "http://a/2.png"}, rec.Messages())

	mc, rec = commandtest.NewContext("g1", "c1", "u1")
	require.NoError(t, c.Run(context.Background(), mc))
	assert.Contains(t, rec.Last(), "What should I look for?")
}

func TestSearch_Errors(t *testing.T) {
	c := &SearchCommand{Images: &fakeImages{err: imagesearch.ErrNoResults}}
	mc, rec := commandtest.NewContext("g1", "c1", "u1", "owl")
	require.NoError(t, c.Run(context.Background(), mc))
	assert.Equal(t, "I couldn't find any pictures of that.", rec.Last())

	c = &SearchCommand{Images: &fakeImages{err: errors.New("status 503")}}
	mc, _ = commandtest.NewContext("g1", "c1", "u1", "owl")
	assert.ErrorContains(t, c.Run(context.Background(), mc), "status 503")
}

func TestProfile(t *testing.T) {
	c := &ProfileCommand{Profiles: fakeProfiles{
		"yuzu": {Name: "yuzu", DisplayName: "Yuzu", Bio: "Citrus DJ", FavoriteTrack: "Lemon", UpdatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}}

	mc, rec := commandtest.NewContext("g1", "c1", "u1", "yuzu")
	require.NoError(t, c.Run(context.Background(), mc))
	embeds := rec.Embeds()
	require.Len(t, embeds, 1)
	assert.Equal(t, "Yuzu", embeds[0].Title)
	assert.Equal(t, "Citrus DJ", embeds[0].Description)
	require.Len(t, embeds[0].Fields, 2)
	assert.Equal(t, "Lemon", embeds[0].Fields[1].Value)
	assert.Equal(t, "Updated 2024-05-01", embeds[0].Footer.Text)

	mc, rec = commandtest.NewContext("g1", "c1", "u1", "kabosu")
	require.NoError(t, c.Run(context.Background(), mc))
	assert.Equal(t, "I don't know anyone called **kabosu**.", rec.Last())

	mc, rec = commandtest.NewContext("g1", "c1", "u1")
	require.NoError(t, c.Run(context.Background(), mc))
	assert.Contains(t, rec.Last(), "Whose profile?")

	disabled := &ProfileCommand{Profiles: fakeProfiles(nil)}
	mc, rec = commandtest.NewContext("g1", "c1", "u1", "yuzu")
	require.NoError(t, disabled.Run(context.Background(), mc))
	assert.Equal(t, "Profiles aren't set up here yet.", rec.Last())
}
