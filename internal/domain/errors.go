package domain

import "errors"

var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMeetingEnded    = errors.New("meeting has ended")

	// ErrSignalingUnavailable covers rejected reads/writes against the
	// signaling store. Not retried automatically.
	ErrSignalingUnavailable = errors.New("signaling storage unavailable")
)
