// Package rtc wraps the native peer-connection engine behind a small
// interface: create a connection with an ICE server list, attach local
// tracks, exchange descriptions, trickle candidates, replace sender tracks
// and receive remote tracks.
package rtc

import (
	"connectmeet/internal/domain"
	"connectmeet/internal/media"
)

type Config struct {
	ICEServers []string
}

type Engine interface {
	NewConnection(cfg Config) (Connection, error)
}

type Connection interface {
	AddTrack(t *media.Track) (Sender, error)
	CreateOffer() (domain.Description, error)
	// CreateAnswer requires the remote offer to be applied first.
	CreateAnswer() (domain.Description, error)
	SetLocalDescription(d domain.Description) error
	SetRemoteDescription(d domain.Description) error
	HasRemoteDescription() bool
	// AddRemoteCandidate fails if no remote description is set; callers
	// buffer early candidates.
	AddRemoteCandidate(c domain.Candidate) error
	OnLocalCandidate(fn func(c domain.Candidate))
	OnRemoteTrack(fn func(t RemoteTrack))
	// VideoSender returns the sender carrying the outgoing video track, if
	// one is attached.
	VideoSender() (Sender, bool)
	// Close is idempotent.
	Close() error
}

// Sender is the outgoing half of one attached track. ReplaceTrack swaps the
// transmitted track without renegotiation.
type Sender interface {
	Kind() media.Kind
	ReplaceTrack(t *media.Track) error
}

type RemoteTrack interface {
	ID() string
	Kind() media.Kind
	StreamID() string
}
