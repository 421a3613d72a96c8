package sequencer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// Track is a ready-to-play handle to a downloaded media file.
type Track struct {
	Title string
	Path  string
}

// DisplayName returns the title, or the file name when the title is unknown.
func (t Track) DisplayName() string {
	if t.Title != "" {
		return t.Title
	}
	return filepath.Base(t.Path)
}

// Transport establishes voice connections.
type Transport interface {
	// Connect blocks until the voice connection is ready or ctx expires.
	Connect(ctx context.Context, channelID string) (Connection, error)
}

// Connection is a single established voice connection.
//
// Play hands a track to the active-playback slot. If Play returns nil, onFinished is
// invoked exactly once when playback ends for any reason (completion, failure or Stop),
// possibly from another goroutine and possibly before Stop returns. If Play returns an
// error, onFinished is never invoked.
type Connection interface {
	Play(track Track, onFinished func()) error
	Stop()
	Pause()
	Resume()
	IsPlaying() bool
	IsPaused() bool
	Disconnect() error
}

// State of a sequencer's voice connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Idle
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Branch tells which path a play request took.
type Branch int

const (
	// Immediate means the track started playing right away.
	Immediate Branch = iota
	// Deferred means the track was appended to the queue.
	Deferred
)

func (b Branch) String() string {
	if b == Immediate {
		return "immediate"
	}
	return "deferred"
}

// PlayOutcome is the result of a successful RequestPlay.
type PlayOutcome struct {
	Branch Branch
	Track  Track
	// Position is the 1-based queue position for deferred tracks, 0 otherwise.
	Position int
}

// ControlResult is the outcome of a transport control request.
type ControlResult int

const (
	Stopped ControlResult = iota
	PausedNow
	Resumed
	AlreadyStopped
	AlreadyPaused
	AlreadyPlaying
)

// Changed reports whether the control request altered playback.
func (r ControlResult) Changed() bool {
	return r == Stopped || r == PausedNow || r == Resumed
}

func (r ControlResult) String() string {
	switch r {
	case Stopped:
		return "stopped"
	case PausedNow:
		return "paused"
	case Resumed:
		return "resumed"
	case AlreadyStopped:
		return "already stopped"
	case AlreadyPaused:
		return "already paused"
	case AlreadyPlaying:
		return "already playing"
	default:
		return fmt.Sprintf("ControlResult(%d)", int(r))
	}
}

// Snapshot is a read-only view of the sequencer.
type Snapshot struct {
	State      State
	NowPlaying string
	Queued     []string
	History    []string
}

var (
	ErrClosed       = errors.New("sequencer is closed")
	ErrNotConnected = errors.New("not connected to a voice channel")
	// ErrLeft is reported to plays that were waiting on a connection when a
	// disconnect was requested.
	ErrLeft = errors.New("left before the voice connection was ready")
)

// UnavailableError reports that a track never became playable, either because it
// could not be fetched or because the voice connection could not be established.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: track unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps err in an *UnavailableError unless it already is one.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}
