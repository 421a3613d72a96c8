package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/keshon/citron/internal/music/sequencer"
	"github.com/keshon/citron/internal/music/source_resolver"
	"github.com/keshon/citron/internal/music/sources"
)

type PlayerStatus string

const (
	StatusPlaying      PlayerStatus = "Playing"
	StatusAdded        PlayerStatus = "Track Added"
	StatusStopped      PlayerStatus = "Playback Stopped"
	StatusPaused       PlayerStatus = "Playback Paused"
	StatusResumed      PlayerStatus = "Playback Resumed"
	StatusDisconnected PlayerStatus = "Disconnected"
	StatusError        PlayerStatus = "Error"
)

func (status PlayerStatus) StringEmoji() string {
	m := map[PlayerStatus]string{
		StatusPlaying:      "▶️",
		StatusAdded:        "🎶",
		StatusStopped:      "⏹",
		StatusPaused:       "⏸",
		StatusResumed:      "▶️",
		StatusDisconnected: "👋",
		StatusError:        "❌",
	}
	return m[status]
}

const defaultDownloadTimeout = 5 * time.Minute

// Fetcher turns /play input into a local track.
type Fetcher interface {
	Fetch(ctx context.Context, req sources.Request) (*sources.Result, error)
}

type Options struct {
	ConnectTimeout  time.Duration
	DownloadTimeout time.Duration
	// Remove deletes finished files; nil means os.Remove.
	Remove func(string) error
	Logger *slog.Logger
}

// Player is the music facade of a single guild.
type Player struct {
	guildID         string
	fetcher         Fetcher
	seq             *sequencer.Sequencer
	downloadTimeout time.Duration
	log             *slog.Logger

	// PlayerStatus is closed by Close.
	PlayerStatus chan PlayerStatus
	statusMu     sync.Mutex
	statusClosed bool
	closeOnce    sync.Once
}

type PlayResult struct {
	Status     PlayerStatus
	Track      sequencer.Track
	Position   int
	SourceName string
	Downloaded bool
}

// New creates a new Player instance
func New(guildID string, fetcher Fetcher, transport sequencer.Transport, opts Options) *Player {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = defaultDownloadTimeout
	}
	guildLog := opts.Logger.With(slog.String("guild", guildID))

	return &Player{
		guildID: guildID,
		fetcher: fetcher,
		seq: sequencer.New(transport, sequencer.Options{
			ConnectTimeout: opts.ConnectTimeout,
			Remove:         opts.Remove,
			Logger:         guildLog,
		}),
		downloadTimeout: opts.DownloadTimeout,
		log:             guildLog.With(slog.String("component", "player")),
		PlayerStatus:    make(chan PlayerStatus, 10), // buffered to reduce drops
	}
}

// Play fetches input and hands it to the sequencer for channelID.
func (p *Player) Play(ctx context.Context, input, channelID string, notify func()) (*PlayResult, error) {
	p.log.Info("Play requested", slog.String("input", input), slog.String("channel", channelID))

	fetchCtx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
	res, err := p.fetcher.Fetch(fetchCtx, sources.Request{
		Input:  input,
		Scope:  p.guildID,
		Notify: notify,
	})
	cancel()
	if err != nil {
		p.emitStatus(StatusError)
		if isLookupError(err) {
			return nil, err
		}
		p.log.Warn("Failed to fetch track", slog.String("input", input), slog.Any("error", err))
		return nil, sequencer.Unavailable("fetch", err)
	}

	out, err := p.seq.RequestPlay(ctx, channelID, res.Track)
	if err != nil {
		p.emitStatus(StatusError)
		return nil, err
	}

	status := StatusPlaying
	if out.Branch == sequencer.Deferred {
		status = StatusAdded
	}
	p.emitStatus(status)

	return &PlayResult{
		Status:     status,
		Track:      out.Track,
		Position:   out.Position,
		SourceName: res.SourceName,
		Downloaded: res.Downloaded,
	}, nil
}

// isLookupError reports errors that describe the search result rather than a failure.
func isLookupError(err error) bool {
	var amb *sources.AmbiguousError
	return errors.Is(err, sources.ErrNotFound) ||
		errors.Is(err, source_resolver.ErrEmptyInput) ||
		errors.As(err, &amb)
}

func (p *Player) Stop() (sequencer.ControlResult, error) {
	return p.control(p.seq.Stop, StatusStopped)
}

func (p *Player) Pause() (sequencer.ControlResult, error) {
	return p.control(p.seq.Pause, StatusPaused)
}

func (p *Player) Resume() (sequencer.ControlResult, error) {
	return p.control(p.seq.Resume, StatusResumed)
}

func (p *Player) control(fn func() (sequencer.ControlResult, error), status PlayerStatus) (sequencer.ControlResult, error) {
	res, err := fn()
	if err != nil {
		return res, err
	}
	if res.Changed() {
		p.emitStatus(status)
	}
	p.log.Debug("Control request", slog.String("result", res.String()))
	return res, nil
}

func (p *Player) Snapshot() sequencer.Snapshot {
	return p.seq.Snapshot()
}

// Leave stops playback, drops the queue and disconnects from voice.
func (p *Player) Leave() error {
	if err := p.seq.Disconnect(); err != nil {
		return err
	}
	p.emitStatus(StatusDisconnected)
	return nil
}

// Close releases the player for good.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.seq.Close()

		p.statusMu.Lock()
		p.statusClosed = true
		close(p.PlayerStatus)
		p.statusMu.Unlock()
	})
}

// emitStatus safely sends player status
func (p *Player) emitStatus(status PlayerStatus) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	if p.statusClosed {
		return
	}
	select {
	case p.PlayerStatus <- status:
	default:
		p.log.Debug("Player status signal dropped (channel full)", slog.String("status", string(status)))
	}
}
