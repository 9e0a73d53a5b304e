// Package media models the capture-device surface: streams of tracks that
// can be enabled, disabled and stopped independently of the peer connection
// that sends them.
package media

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Capture failures carry a specific reason so callers can surface an
// actionable message. Acquisition failures are fatal to a session attempt.
var (
	ErrPermissionDenied       = errors.New("media permission denied")
	ErrDeviceNotFound         = errors.New("media device not found")
	ErrDeviceBusy             = errors.New("media device is busy")
	ErrUnsupported            = errors.New("media capture unsupported")
	ErrScreenShareUnavailable = errors.New("screen capture unavailable")
)

type Constraints struct {
	Width            int
	Height           int
	FrameRate        int
	EchoCancellation bool
	NoiseSuppression bool
	FacingMode       string
}

func DefaultConstraints() Constraints {
	return Constraints{
		Width:            1280,
		Height:           720,
		FrameRate:        30,
		EchoCancellation: true,
		NoiseSuppression: true,
		FacingMode:       "user",
	}
}

// Device acquires media. Implementations: the synthetic generator in this
// package, test stubs.
type Device interface {
	CaptureUserMedia(ctx context.Context, c Constraints) (*Stream, error)
	CaptureDisplay(ctx context.Context) (*Stream, error)
}

// Track wraps a local track the engine can send. Disabling a track keeps it
// alive (identity preserved, no renegotiation); stopping releases the
// underlying capture.
type Track struct {
	kind  Kind
	label string
	local webrtc.TrackLocal

	mu      sync.Mutex
	enabled bool
	stopped bool
	onEnded func()
	release func()
}

func NewTrack(kind Kind, label string, local webrtc.TrackLocal, release func()) *Track {
	return &Track{
		kind:    kind,
		label:   label,
		local:   local,
		enabled: true,
		release: release,
	}
}

func (t *Track) ID() string {
	return t.local.ID()
}

func (t *Track) Kind() Kind {
	return t.kind
}

func (t *Track) Label() string {
	return t.label
}

// Local exposes the engine-level track for attaching and sender replacement.
func (t *Track) Local() webrtc.TrackLocal {
	return t.local
}

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.enabled = enabled
}

// Stop releases the capture resource. Safe to call repeatedly.
func (t *Track) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.enabled = false
	release := t.release
	t.mu.Unlock()

	if release != nil {
		release()
	}
}

func (t *Track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// OnEnded registers a callback fired when the platform ends the capture on
// its own, e.g. the user stops a screen share from the native control.
func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// EndedByPlatform is invoked by the owning device when capture stops outside
// the application's control.
func (t *Track) EndedByPlatform() {
	t.mu.Lock()
	fn := t.onEnded
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stream groups the tracks produced by one capture request.
type Stream struct {
	id     string
	mu     sync.RWMutex
	tracks []*Track
}

func NewStream(id string, tracks ...*Track) *Stream {
	return &Stream{id: id, tracks: tracks}
}

func (s *Stream) ID() string {
	return s.id
}

func (s *Stream) Tracks() []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) AudioTracks() []*Track {
	return s.tracksOfKind(KindAudio)
}

func (s *Stream) VideoTracks() []*Track {
	return s.tracksOfKind(KindVideo)
}

func (s *Stream) tracksOfKind(kind Kind) []*Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if t.kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// Stop stops every track in the stream.
func (s *Stream) Stop() {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
