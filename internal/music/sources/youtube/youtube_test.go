package youtube

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/citron/internal/music/sources"
)

type fakeClient struct {
	title     string
	titleErr  error
	dlErr     error
	downloads []string
	urls      []string
}

func (c *fakeClient) Title(ctx context.Context, url string) (string, error) {
	c.urls = append(c.urls, url)
	return c.title, c.titleErr
}

func (c *fakeClient) DownloadAudio(ctx context.Context, url, outputBase string) error {
	c.downloads = append(c.downloads, outputBase)
	if c.dlErr != nil {
		return c.dlErr
	}
	return os.WriteFile(outputBase+".mp3", []byte("mp3"), 0o644)
}

func newSource(t *testing.T, client Client) (*YouTubeSource, *sources.Downloads) {
	t.Helper()
	dl, err := sources.NewDownloads(t.TempDir(), nil)
	require.NoError(t, err)
	return New(client, dl), dl
}

func TestSupports(t *testing.T) {
	src, _ := newSource(t, &fakeClient{})
	assert.True(t, src.Supports("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.True(t, src.Supports("https://youtu.be/dQw4w9WgXcQ"))
	assert.True(t, src.Supports("  https://music.youtube.com/watch?v=abc  "))
	assert.False(t, src.Supports("lemon song"))
	assert.False(t, src.Supports("https://example.com/watch?v=abc"))
	assert.Equal(t, sources.SourceYouTube, src.Name())
}

func TestCleanVideoURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.youtube.com/watch?v=abc&list=PL1&t=10", "https://www.youtube.com/watch?v=abc"},
		{"https://youtu.be/abc?t=42", "https://youtu.be/abc"},
		{"https://www.youtube.com/playlist?list=PL1", "https://www.youtube.com/playlist?list=PL1"},
		{"https://example.com/x", "https://example.com/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanVideoURL(tt.in), tt.in)
	}
}

func TestFetch_DownloadsOnce(t *testing.T) {
	client := &fakeClient{title: "Lemon"}
	src, dl := newSource(t, client)

	notified := 0
	res, err := src.Fetch(context.Background(), sources.Request{Input: "https://www.youtube.com/watch?v=abc&list=x", Scope: "g1", Notify: func() { notified++ }})
	require.NoError(t, err)
	assert.True(t, res.Downloaded)
	assert.Equal(t, dl.Path("g1", "Lemon.mp3"), res.Track.Path)
	assert.Equal(t, "Lemon", res.Track.Title)
	assert.Equal(t, 1, notified)
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=abc"}, client.urls)

	res, err = src.Fetch(context.Background(), sources.Request{Input: "https://www.youtube.com/watch?v=abc", Scope: "g1", Notify: func() { notified++ }})
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
	assert.Equal(t, 1, notified)
	assert.Len(t, client.downloads, 1)
}

func TestFetch_Errors(t *testing.T) {
	src, _ := newSource(t, &fakeClient{titleErr: errors.New("video unavailable")})
	_, err := src.Fetch(context.Background(), sources.Request{Input: "https://youtu.be/abc"})
	require.Error(t, err)

	src, _ = newSource(t, &fakeClient{title: "  "})
	_, err = src.Fetch(context.Background(), sources.Request{Input: "https://youtu.be/abc"})
	assert.ErrorIs(t, err, sources.ErrNotFound)

	boom := errors.New("ffmpeg failed")
	src, _ = newSource(t, &fakeClient{title: "Song", dlErr: boom})
	_, err = src.Fetch(context.Background(), sources.Request{Input: "https://youtu.be/abc"})
	assert.ErrorIs(t, err, boom)
}
