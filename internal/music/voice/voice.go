// Package voice plays local audio files into Discord voice channels using ffmpeg
// through dca.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"

	"github.com/keshon/citron/internal/music/sequencer"
)

const (
	sendTimeout     = time.Second
	shutdownTimeout = 2 * time.Second
)

var ErrBusy = errors.New("voice connection is already playing")

// EncodeOptions holds the ffmpeg encoding settings.
type EncodeOptions struct {
	Bitrate int
	Volume  int
}

// frameSource is the part of *dca.EncodeSession the playback loop reads from.
type frameSource interface {
	OpusFrame() ([]byte, error)
	Cleanup()
}

type encodeFunc func(path string, opts EncodeOptions) (frameSource, error)

func encodeWithDCA(path string, opts EncodeOptions) (frameSource, error) {
	o := *dca.StdEncodeOptions
	o.Application = dca.AudioApplicationAudio
	if opts.Bitrate > 0 {
		o.Bitrate = opts.Bitrate
	}
	if opts.Volume > 0 {
		o.Volume = opts.Volume
	}
	enc, err := dca.EncodeFile(path, &o)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// Transport joins voice channels of one guild.
type Transport struct {
	session *discordgo.Session
	guildID string
	opts    EncodeOptions
	log     *slog.Logger
}

func NewTransport(session *discordgo.Session, guildID string, opts EncodeOptions, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		session: session,
		guildID: guildID,
		opts:    opts,
		log:     logger.With(slog.String("component", "voice"), slog.String("guild", guildID)),
	}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Connect joins channelID. The join itself cannot be cancelled, so on ctx expiry it
// is abandoned and a late connection is closed.
func (t *Transport) Connect(ctx context.Context, channelID string) (sequencer.Connection, error) {
	res := make(chan joinResult, 1)
	go func() {
		vc, err := t.session.ChannelVoiceJoin(t.guildID, channelID, false, true)
		res <- joinResult{vc: vc, err: err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			return nil, fmt.Errorf("failed to join voice channel: %w", r.err)
		}
		t.log.Info("Joined voice channel", slog.String("channel", channelID))
		return newConnection(r.vc.OpusSend, r.vc.Speaking, r.vc.Disconnect, encodeWithDCA, t.opts, t.log), nil
	case <-ctx.Done():
		go func() {
			if r := <-res; r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// Connection streams one track at a time into a voice connection.
type Connection struct {
	opus       chan<- []byte
	speaking   func(bool) error
	disconnect func() error
	encode     encodeFunc
	opts       EncodeOptions
	log        *slog.Logger

	mu      sync.Mutex
	current *playback
}

func newConnection(opus chan<- []byte, speaking func(bool) error, disconnect func() error, encode encodeFunc, opts EncodeOptions, logger *slog.Logger) *Connection {
	return &Connection{
		opus:       opus,
		speaking:   speaking,
		disconnect: disconnect,
		encode:     encode,
		opts:       opts,
		log:        logger,
	}
}

type playback struct {
	track    sequencer.Track
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	paused   bool
	resume   chan struct{}
}

func (p *playback) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Play starts streaming track and calls onFinished once when it ends.
func (c *Connection) Play(track sequencer.Track, onFinished func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return ErrBusy
	}

	src, err := c.encode(track.Path, c.opts)
	if err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	if err := c.speaking(true); err != nil {
		c.log.Warn("Failed to set speaking state", slog.Any("error", err))
	}

	p := &playback{
		track: track,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	c.current = p
	go c.stream(p, src, onFinished)
	return nil
}

func (c *Connection) stream(p *playback, src frameSource, onFinished func()) {
	err := c.pump(p, src)
	src.Cleanup()

	if err := c.speaking(false); err != nil {
		c.log.Debug("Failed to clear speaking state", slog.Any("error", err))
	}
	if err != nil {
		c.log.Warn("Playback ended with error", slog.String("track", p.track.DisplayName()), slog.Any("error", err))
	}

	c.mu.Lock()
	if c.current == p {
		c.current = nil
	}
	c.mu.Unlock()

	if onFinished != nil {
		onFinished()
	}
	close(p.done)
}

func (c *Connection) pump(p *playback, src frameSource) error {
	for {
		c.mu.Lock()
		wait := p.resume
		c.mu.Unlock()
		if wait != nil {
			select {
			case <-wait:
				continue
			case <-p.stop:
				return nil
			}
		}

		select {
		case <-p.stop:
			return nil
		default:
		}

		frame, err := src.OpusFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read opus frame: %w", err)
		}

		select {
		case c.opus <- frame:
		case <-p.stop:
			return nil
		case <-time.After(sendTimeout):
			return errors.New("timed out sending opus frame")
		}
	}
}

// Stop ends the current track. The completion callback runs on the stream goroutine.
func (c *Connection) Stop() {
	c.mu.Lock()
	p := c.current
	c.mu.Unlock()
	if p != nil {
		p.halt()
	}
}

func (c *Connection) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && !c.current.paused {
		c.current.paused = true
		c.current.resume = make(chan struct{})
	}
}

func (c *Connection) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.paused {
		c.current.paused = false
		close(c.current.resume)
		c.current.resume = nil
	}
}

func (c *Connection) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && !c.current.paused
}

func (c *Connection) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil && c.current.paused
}

// Disconnect stops playback, waits briefly for the stream to wind down and leaves the channel.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	p := c.current
	c.mu.Unlock()

	if p != nil {
		p.halt()
		select {
		case <-p.done:
		case <-time.After(shutdownTimeout):
			c.log.Warn("Stream did not stop in time", slog.String("track", p.track.DisplayName()))
		}
	}

	if err := c.disconnect(); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	c.log.Info("Left voice channel")
	return nil
}
