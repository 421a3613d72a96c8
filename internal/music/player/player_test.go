package player

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/citron/internal/music/sequencer"
	"github.com/keshon/citron/internal/music/sources"
)

type stubFetcher struct {
	err error
}

func (f *stubFetcher) Fetch(ctx context.Context, req sources.Request) (*sources.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if req.Notify != nil {
		req.Notify()
	}
	return &sources.Result{
		Track:      sequencer.Track{Title: req.Input, Path: "/music/" + req.Input + ".mp3"},
		SourceName: sources.SourceDrive,
		Downloaded: true,
	}, nil
}

type stubConn struct {
	mu       sync.Mutex
	playing  bool
	paused   bool
	finished func()
}

func (c *stubConn) Play(track sequencer.Track, onFinished func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing, c.paused, c.finished = true, false, onFinished
	return nil
}

func (c *stubConn) Stop() {
	c.mu.Lock()
	cb := c.finished
	c.playing, c.paused, c.finished = false, false, nil
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *stubConn) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *stubConn) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *stubConn) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing && !c.paused
}

func (c *stubConn) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *stubConn) Disconnect() error { return nil }

type stubTransport struct {
	err error
}

func (t *stubTransport) Connect(ctx context.Context, channelID string) (sequencer.Connection, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &stubConn{}, nil
}

func newPlayer(t *testing.T, f Fetcher, tr sequencer.Transport) *Player {
	t.Helper()
	p := New("guild", f, tr, Options{
		ConnectTimeout: time.Second,
		Remove:         func(string) error { return nil },
	})
	t.Cleanup(p.Close)
	return p
}

func drainStatuses(p *Player) []PlayerStatus {
	var out []PlayerStatus
	for {
		select {
		case s, ok := <-p.PlayerStatus:
			if !ok {
				return out
			}
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestPlayer_PlayThenQueue(t *testing.T) {
	p := newPlayer(t, &stubFetcher{}, &stubTransport{})
	ctx := context.Background()

	notified := 0
	res, err := p.Play(ctx, "lemon", "voice", func() { notified++ })
	require.NoError(t, err)
	assert.Equal(t, StatusPlaying, res.Status)
	assert.Equal(t, "lemon", res.Track.Title)
	assert.Equal(t, 1, notified)

	res, err = p.Play(ctx, "orange", "voice", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAdded, res.Status)
	assert.Equal(t, 1, res.Position)

	snap := p.Snapshot()
	assert.Equal(t, sequencer.Playing, snap.State)
	assert.Equal(t, "lemon", snap.NowPlaying)
	assert.Equal(t, []string{"orange"}, snap.Queued)
	assert.Equal(t, []PlayerStatus{StatusPlaying, StatusAdded}, drainStatuses(p))
}

func TestPlayer_LookupErrorsPassThrough(t *testing.T) {
	p := newPlayer(t, &stubFetcher{err: sources.ErrNotFound}, &stubTransport{})
	_, err := p.Play(context.Background(), "nothing", "voice", nil)
	assert.ErrorIs(t, err, sources.ErrNotFound)
	var ue *sequencer.UnavailableError
	assert.False(t, errors.As(err, &ue))

	amb := &sources.AmbiguousError{Query: "love", Names: []string{"a", "b"}}
	p = newPlayer(t, &stubFetcher{err: amb}, &stubTransport{})
	_, err = p.Play(context.Background(), "love", "voice", nil)
	var got *sources.AmbiguousError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, sequencer.Disconnected, p.Snapshot().State)
}

func TestPlayer_FetchFailureIsUnavailable(t *testing.T) {
	p := newPlayer(t, &stubFetcher{err: errors.New("quota exceeded")}, &stubTransport{})
	_, err := p.Play(context.Background(), "x", "voice", nil)
	var ue *sequencer.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "fetch", ue.Op)
	assert.Equal(t, sequencer.Disconnected, p.Snapshot().State)
	assert.Equal(t, []PlayerStatus{StatusError}, drainStatuses(p))
}

func TestPlayer_ConnectFailure(t *testing.T) {
	p := newPlayer(t, &stubFetcher{}, &stubTransport{err: errors.New("no voice")})
	_, err := p.Play(context.Background(), "x", "voice", nil)
	var ue *sequencer.UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "connect", ue.Op)
}

func TestPlayer_ControlsAndLeave(t *testing.T) {
	p := newPlayer(t, &stubFetcher{}, &stubTransport{})
	_, err := p.Play(context.Background(), "lemon", "voice", nil)
	require.NoError(t, err)
	drainStatuses(p)

	res, err := p.Pause()
	require.NoError(t, err)
	assert.Equal(t, sequencer.PausedNow, res)
	res, err = p.Pause()
	require.NoError(t, err)
	assert.Equal(t, sequencer.AlreadyPaused, res)
	res, err = p.Resume()
	require.NoError(t, err)
	assert.Equal(t, sequencer.Resumed, res)
	res, err = p.Stop()
	require.NoError(t, err)
	assert.Equal(t, sequencer.Stopped, res)
	assert.Equal(t, []PlayerStatus{StatusPaused, StatusResumed, StatusStopped}, drainStatuses(p))

	require.NoError(t, p.Leave())
	assert.Equal(t, sequencer.Disconnected, p.Snapshot().State)
	assert.ErrorIs(t, p.Leave(), sequencer.ErrNotConnected)
}

func TestPlayerStatus_StringEmoji(t *testing.T) {
	assert.Equal(t, "⏸", StatusPaused.StringEmoji())
	assert.Equal(t, "", PlayerStatus("unknown").StringEmoji())
}

// diskFetcher writes tracks through a shared download directory.
type diskFetcher struct {
	dl *sources.Downloads
}

func (f *diskFetcher) Fetch(ctx context.Context, req sources.Request) (*sources.Result, error) {
	path := f.dl.Path(req.Scope, req.Input+".mp3")
	downloaded, err := f.dl.Ensure(ctx, path, req.Notify, func(ctx context.Context, tmp string) error {
		return os.WriteFile(tmp, []byte(req.Input), 0o644)
	})
	if err != nil {
		return nil, err
	}
	return &sources.Result{
		Track:      sequencer.Track{Title: req.Input, Path: path},
		SourceName: sources.SourceDrive,
		Downloaded: downloaded,
	}, nil
}

func TestPlayer_GuildsDoNotShareDownloads(t *testing.T) {
	dl, err := sources.NewDownloads(t.TempDir(), nil)
	require.NoError(t, err)
	fetcher := &diskFetcher{dl: dl}

	newGuildPlayer := func(guildID string) *Player {
		p := New(guildID, fetcher, &stubTransport{}, Options{ConnectTimeout: time.Second})
		t.Cleanup(p.Close)
		return p
	}
	a := newGuildPlayer("guildA")
	b := newGuildPlayer("guildB")
	ctx := context.Background()

	resA, err := a.Play(ctx, "hit", "voice", nil)
	require.NoError(t, err)
	_, err = b.Play(ctx, "other", "voice", nil)
	require.NoError(t, err)
	resB, err := b.Play(ctx, "hit", "voice", nil)
	require.NoError(t, err)
	require.Equal(t, StatusAdded, resB.Status)
	assert.NotEqual(t, resA.Track.Path, resB.Track.Path)

	_, err = a.Stop()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := os.Stat(resA.Track.Path)
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond)

	assert.FileExists(t, resB.Track.Path)
	assert.Equal(t, []string{"hit"}, b.Snapshot().Queued)

	_, err = b.Stop()
	require.NoError(t, err)
	require.Eventually(t, func() bool { return b.Snapshot().NowPlaying == "hit" }, time.Second, 5*time.Millisecond)
	assert.FileExists(t, resB.Track.Path)
}

func TestPlayer_CloseEndsStatusStream(t *testing.T) {
	p := New("guild", &stubFetcher{}, &stubTransport{}, Options{
		ConnectTimeout: time.Second,
		Remove:         func(string) error { return nil },
	})
	_, err := p.Play(context.Background(), "lemon", "voice", nil)
	require.NoError(t, err)

	p.Close()
	p.Close()
	assert.Equal(t, []PlayerStatus{StatusPlaying}, drainStatuses(p))

	_, err = p.Stop()
	assert.ErrorIs(t, err, sequencer.ErrClosed)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPlayer_LogLinesCarryOneComponent(t *testing.T) {
	var out lockedBuffer
	p := New("guildA", &stubFetcher{}, &stubTransport{}, Options{
		ConnectTimeout: time.Second,
		Remove:         func(string) error { return nil },
		Logger:         slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	t.Cleanup(p.Close)

	_, err := p.Play(context.Background(), "lemon", "voice", nil)
	require.NoError(t, err)
	_ = p.Snapshot()

	var sequencerLines int
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		assert.LessOrEqual(t, strings.Count(line, "component="), 1, line)
		assert.Equal(t, 1, strings.Count(line, "guild=guildA"), line)
		if strings.Contains(line, "component=sequencer") {
			sequencerLines++
		}
	}
	assert.Positive(t, sequencerLines)
}
