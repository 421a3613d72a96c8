// Package youtube downloads the audio of YouTube videos with yt-dlp.
package youtube

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/keshon/citron/internal/music/sequencer"
	"github.com/keshon/citron/internal/music/sources"
)

// Client is the yt-dlp surface the source needs.
type Client interface {
	// Title returns the video title without downloading anything.
	Title(ctx context.Context, url string) (string, error)
	// DownloadAudio extracts the audio track into outputBase + ".mp3".
	DownloadAudio(ctx context.Context, url, outputBase string) error
}

type YouTubeSource struct {
	client    Client
	downloads *sources.Downloads
}

func New(client Client, downloads *sources.Downloads) *YouTubeSource {
	if client == nil {
		client = NewYTDLPClient()
	}
	return &YouTubeSource{client: client, downloads: downloads}
}

func (y *YouTubeSource) Name() string {
	return sources.SourceYouTube
}

func (y *YouTubeSource) Supports(input string) bool {
	return isYouTubeURL(strings.TrimSpace(input))
}

func (y *YouTubeSource) Fetch(ctx context.Context, req sources.Request) (*sources.Result, error) {
	url := CleanVideoURL(strings.TrimSpace(req.Input))

	title, err := y.client.Title(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to read video title: %w", err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, sources.ErrNotFound
	}

	path := y.downloads.Path(req.Scope, title+".mp3")
	downloaded, err := y.downloads.Ensure(ctx, path, req.Notify, func(ctx context.Context, tmp string) error {
		// yt-dlp appends the extension itself
		return y.client.DownloadAudio(ctx, url, strings.TrimSuffix(tmp, ".mp3"))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %q: %w", title, err)
	}

	return &sources.Result{
		Track: sequencer.Track{
			Title: sources.Describe(path, title),
			Path:  path,
		},
		SourceName: sources.SourceYouTube,
		Downloaded: downloaded,
	}, nil
}

// YTDLPClient runs the yt-dlp binary.
type YTDLPClient struct{}

func NewYTDLPClient() *YTDLPClient {
	return &YTDLPClient{}
}

func (c *YTDLPClient) Title(ctx context.Context, url string) (string, error) {
	res, err := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		SkipDownload().
		Print("%(title)s").
		Run(ctx, url)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (c *YTDLPClient) DownloadAudio(ctx context.Context, url, outputBase string) error {
	_, err := ytdlp.New().
		Quiet().
		NoWarnings().
		NoPlaylist().
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("192K").
		EmbedMetadata().
		Output(outputBase + ".%(ext)s").
		Run(ctx, url)
	return err
}
