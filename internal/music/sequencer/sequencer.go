// Package sequencer serializes play requests for one voice connection into a single
// active stream plus a FIFO backlog, and removes each downloaded file once its
// playback has finished.
//
// All state is owned by one goroutine. Public methods and transport callbacks are
// delivered to it as messages, so two concurrent RequestPlay calls can never both
// take the immediate path.
package sequencer

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"
)

const defaultConnectTimeout = 15 * time.Second

// Options configures a Sequencer.
type Options struct {
	// ConnectTimeout bounds a single voice connection attempt.
	ConnectTimeout time.Duration
	// Remove deletes a finished track's file. Defaults to os.Remove.
	Remove func(path string) error
	Logger *slog.Logger
}

type playReply struct {
	outcome PlayOutcome
	err     error
}

type playRequest struct {
	channelID string
	track     Track
	reply     chan playReply
}

// Sequencer is the playback sequencer of a single voice connection.
type Sequencer struct {
	transport      Transport
	remove         func(string) error
	connectTimeout time.Duration
	log            *slog.Logger

	inbox     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the actor goroutine
	conn       Connection
	connecting bool
	// set by a disconnect that arrives while connecting
	leavePending bool
	waiting    []playRequest
	current    *Track
	queue      []Track
	history    []string
	generation uint64
}

// New starts a sequencer bound to transport.
func New(transport Transport, opts Options) *Sequencer {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.Remove == nil {
		opts.Remove = os.Remove
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Sequencer{
		transport:      transport,
		remove:         opts.Remove,
		connectTimeout: opts.ConnectTimeout,
		log:            opts.Logger.With(slog.String("component", "sequencer")),
		inbox:          make(chan func()),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Sequencer) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.quit:
			s.shutdown()
			return
		}
	}
}

// call runs fn on the actor goroutine and waits for it.
func (s *Sequencer) call(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.inbox <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// post delivers fn to the actor without waiting for it to run.
func (s *Sequencer) post(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// RequestPlay plays track now if nothing is playing, paused or queued, and queues it
// otherwise. The first request establishes the voice connection to channelID.
//
// ctx only bounds handing the request over; once accepted, the request runs to
// completion. Connection failures are reported as *UnavailableError and leave the
// queue and history untouched.
func (s *Sequencer) RequestPlay(ctx context.Context, channelID string, track Track) (PlayOutcome, error) {
	req := playRequest{
		channelID: channelID,
		track:     track,
		reply:     make(chan playReply, 1),
	}

	select {
	case s.inbox <- func() { s.handlePlay(req) }:
	case <-ctx.Done():
		return PlayOutcome{}, ctx.Err()
	case <-s.done:
		return PlayOutcome{}, ErrClosed
	}

	select {
	case r := <-req.reply:
		return r.outcome, r.err
	case <-s.done:
		return PlayOutcome{}, ErrClosed
	}
}

func (s *Sequencer) handlePlay(req playRequest) {
	switch {
	case s.conn != nil:
		s.admit(req)
	case s.connecting:
		// a new play overrides a pending leave
		s.leavePending = false
		s.waiting = append(s.waiting, req)
	default:
		s.connecting = true
		s.waiting = append(s.waiting, req)
		go s.connect(req.channelID)
	}
}

func (s *Sequencer) connect(channelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout)
	defer cancel()

	s.log.Info("Joining voice channel", slog.String("channel", channelID))
	conn, err := s.transport.Connect(ctx, channelID)

	delivered := s.post(func() { s.handleConnected(conn, err) })
	if !delivered && conn != nil {
		_ = conn.Disconnect()
	}
}

func (s *Sequencer) handleConnected(conn Connection, err error) {
	waiting := s.waiting
	s.waiting = nil
	s.connecting = false

	if s.leavePending {
		s.leavePending = false
		if conn != nil {
			if derr := conn.Disconnect(); derr != nil {
				s.log.Warn("Disconnect after cancelled join failed", slog.Any("error", derr))
			}
		}
		s.log.Info("Join cancelled by disconnect")
		return
	}

	if err != nil {
		s.log.Warn("Voice connection failed", slog.Any("error", err), slog.Int("waiting", len(waiting)))
		replyAll(waiting, Unavailable("connect", err))
		return
	}

	s.conn = conn
	s.log.Info("Voice connection established", slog.Int("waiting", len(waiting)))
	for _, req := range waiting {
		s.admit(req)
	}
}

func (s *Sequencer) failWaiting(err error) {
	replyAll(s.waiting, err)
	s.waiting = nil
}

func replyAll(reqs []playRequest, err error) {
	for _, req := range reqs {
		req.reply <- playReply{err: err}
	}
}

// admit records the track and chooses the immediate or deferred path.
func (s *Sequencer) admit(req playRequest) {
	s.history = append(s.history, req.track.Path)

	if s.current == nil && len(s.queue) == 0 && !s.conn.IsPlaying() && !s.conn.IsPaused() {
		if err := s.start(req.track); err != nil {
			s.history = s.history[:len(s.history)-1]
			req.reply <- playReply{err: Unavailable("play", err)}
			return
		}
		req.reply <- playReply{outcome: PlayOutcome{Branch: Immediate, Track: req.track}}
		return
	}

	s.queue = append(s.queue, req.track)
	s.log.Info("Track queued", slog.String("track", req.track.DisplayName()), slog.Int("queue_len", len(s.queue)))
	req.reply <- playReply{outcome: PlayOutcome{Branch: Deferred, Track: req.track, Position: len(s.queue)}}
}

func (s *Sequencer) start(track Track) error {
	s.generation++
	gen := s.generation

	err := s.conn.Play(track, func() {
		// The transport may call back from inside Stop while the actor is busy.
		go s.post(func() { s.handleFinished(gen) })
	})
	if err != nil {
		s.log.Warn("Failed to start track", slog.String("track", track.DisplayName()), slog.Any("error", err))
		return err
	}

	s.current = &track
	s.log.Info("Now playing", slog.String("track", track.DisplayName()), slog.Int("queue_len", len(s.queue)))
	return nil
}

func (s *Sequencer) handleFinished(gen uint64) {
	if gen != s.generation || s.current == nil {
		s.log.Debug("Ignoring stale completion", slog.Uint64("generation", gen))
		return
	}
	s.log.Info("Track finished", slog.String("track", s.current.DisplayName()))
	s.current = nil
	s.trackFinished()
}

// trackFinished removes the oldest downloaded file and starts the next queued track.
func (s *Sequencer) trackFinished() {
	s.removeOldest()
	s.advance()
}

func (s *Sequencer) advance() {
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if err := s.start(next); err != nil {
			// its history entry is now the oldest one
			s.removeOldest()
			continue
		}
		return
	}
	s.log.Info("Queue drained, idle")
}

func (s *Sequencer) removeOldest() {
	if len(s.history) == 0 {
		return
	}
	path := s.history[0]
	s.history = s.history[1:]

	if slices.Contains(s.history, path) {
		s.log.Debug("File still queued, keeping it", slog.String("path", path))
		return
	}
	s.removeFile(path)
}

func (s *Sequencer) removeFile(path string) {
	if err := s.remove(path); err != nil {
		s.log.Warn("Failed to remove finished track", slog.String("path", path), slog.Any("error", err))
		return
	}
	s.log.Debug("Removed finished track", slog.String("path", path))
}

// Stop halts the active track. The transport reports the stop as a completion, so
// the track's file is removed and the next queued track starts.
func (s *Sequencer) Stop() (ControlResult, error) {
	var res ControlResult
	err := s.call(func() {
		if s.conn == nil || (!s.conn.IsPlaying() && !s.conn.IsPaused()) {
			res = AlreadyStopped
			return
		}
		s.conn.Stop()
		res = Stopped
	})
	return res, err
}

// Pause pauses the active track.
func (s *Sequencer) Pause() (ControlResult, error) {
	var res ControlResult
	err := s.call(func() {
		switch {
		case s.conn == nil:
			res = AlreadyStopped
		case s.conn.IsPaused():
			res = AlreadyPaused
		case !s.conn.IsPlaying():
			res = AlreadyStopped
		default:
			s.conn.Pause()
			res = PausedNow
		}
	})
	return res, err
}

// Resume resumes a paused track.
func (s *Sequencer) Resume() (ControlResult, error) {
	var res ControlResult
	err := s.call(func() {
		switch {
		case s.conn == nil:
			res = AlreadyStopped
		case s.conn.IsPaused():
			s.conn.Resume()
			res = Resumed
		case s.conn.IsPlaying():
			res = AlreadyPlaying
		default:
			res = AlreadyStopped
		}
	})
	return res, err
}

// ListQueued returns the display names of queued tracks in play order.
func (s *Sequencer) ListQueued() []string {
	var names []string
	_ = s.call(func() { names = s.queuedNames() })
	return names
}

func (s *Sequencer) queuedNames() []string {
	names := make([]string, len(s.queue))
	for i, t := range s.queue {
		names[i] = t.DisplayName()
	}
	return names
}

// Snapshot returns the current state, the playing track and the queue.
func (s *Sequencer) Snapshot() Snapshot {
	snap := Snapshot{State: Disconnected}
	_ = s.call(func() {
		snap.State = s.state()
		if s.current != nil {
			snap.NowPlaying = s.current.DisplayName()
		}
		snap.Queued = s.queuedNames()
		snap.History = slices.Clone(s.history)
	})
	return snap
}

func (s *Sequencer) state() State {
	switch {
	case s.conn == nil && s.connecting:
		return Connecting
	case s.conn == nil:
		return Disconnected
	case s.current == nil:
		return Idle
	case s.conn.IsPaused():
		return Paused
	default:
		return Playing
	}
}

// Disconnect stops playback, drops the queue, deletes every downloaded file and
// closes the voice connection. The next RequestPlay reconnects. A disconnect during
// a join drops the connection as soon as the join completes.
func (s *Sequencer) Disconnect() error {
	var err error
	callErr := s.call(func() { err = s.teardown() })
	if callErr != nil {
		return callErr
	}
	return err
}

func (s *Sequencer) teardown() error {
	if s.conn == nil && s.connecting {
		s.leavePending = true
		s.failWaiting(Unavailable("connect", ErrLeft))
		s.log.Info("Disconnect requested while joining")
		return nil
	}
	if s.conn == nil {
		return ErrNotConnected
	}

	// invalidate the completion of the track being stopped
	s.generation++
	if s.conn.IsPlaying() || s.conn.IsPaused() {
		s.conn.Stop()
	}
	err := s.conn.Disconnect()

	seen := make(map[string]struct{}, len(s.history))
	for _, path := range s.history {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		s.removeFile(path)
	}

	s.conn = nil
	s.current = nil
	s.queue = nil
	s.history = nil
	s.log.Info("Disconnected from voice channel")
	return err
}

// Close disconnects and stops the sequencer. Further calls return ErrClosed.
func (s *Sequencer) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Sequencer) shutdown() {
	s.failWaiting(ErrClosed)
	if s.conn != nil {
		if err := s.teardown(); err != nil {
			s.log.Warn("Disconnect on close failed", slog.Any("error", err))
		}
	}
}
