package session

import (
	"context"
	"errors"
	"fmt"

	"connectmeet/internal/media"
	"connectmeet/lib/logger/sl"
)

var ErrSessionClosed = errors.New("session closed")

// SetMicrophoneEnabled toggles the enabled flag on local audio tracks.
// No-op without a local stream; never renegotiates.
func (m *Manager) SetMicrophoneEnabled(enabled bool) {
	m.mu.Lock()
	local := m.local
	m.mu.Unlock()
	if local == nil {
		return
	}

	for _, t := range local.AudioTracks() {
		t.SetEnabled(enabled)
	}
}

// SetCameraEnabled toggles the enabled flag on local video tracks. The
// track identity is preserved across toggles.
func (m *Manager) SetCameraEnabled(enabled bool) {
	m.mu.Lock()
	local := m.local
	m.mu.Unlock()
	if local == nil {
		return
	}

	for _, t := range local.VideoTracks() {
		t.SetEnabled(enabled)
	}
}

// StartScreenShare captures the display, replaces the outgoing video track
// on the live connection and swaps the local preview to the screen stream.
// If the platform ends the share on its own, the camera is restored
// automatically. Failure is non-fatal to the session.
func (m *Manager) StartScreenShare(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrSessionClosed
	}
	if m.screen != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	stream, err := m.device.CaptureDisplay(ctx)
	if err != nil {
		if errors.Is(err, media.ErrScreenShareUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", media.ErrScreenShareUnavailable, err)
	}

	videos := stream.VideoTracks()
	if len(videos) == 0 {
		stream.Stop()
		return media.ErrScreenShareUnavailable
	}
	screenTrack := videos[0]

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		stream.Stop()
		return ErrSessionClosed
	}
	if m.screen != nil {
		// another share won while capture was in flight
		m.mu.Unlock()
		stream.Stop()
		return nil
	}
	m.screen = stream
	m.preview = stream
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		if sender, ok := conn.VideoSender(); ok {
			if err := sender.ReplaceTrack(screenTrack); err != nil {
				m.log.Warn("failed to switch sender to screen track", sl.Err(err))
			}
		}
	}

	screenTrack.OnEnded(func() {
		m.StopScreenShare()
	})

	return nil
}

// StopScreenShare restores the camera track on the connection and the local
// preview. No-op when no share is active.
func (m *Manager) StopScreenShare() {
	m.mu.Lock()
	screen := m.screen
	if screen == nil {
		m.mu.Unlock()
		return
	}
	m.screen = nil
	m.preview = m.local
	local := m.local
	conn := m.conn
	m.mu.Unlock()

	if conn != nil && local != nil {
		if videos := local.VideoTracks(); len(videos) > 0 {
			if sender, ok := conn.VideoSender(); ok {
				if err := sender.ReplaceTrack(videos[0]); err != nil {
					m.log.Warn("failed to restore camera track", sl.Err(err))
				}
			}
		}
	}

	screen.Stop()
}

// IsScreenSharing reports whether a display stream is active.
func (m *Manager) IsScreenSharing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screen != nil
}
