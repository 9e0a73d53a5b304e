package domain

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const meetingCodeLength = 10
const meetingCodeChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Participant is an entry inside a meeting record. It exists only as part of
// the owning meeting and is identified by the user id.
type Participant struct {
	UserID   uuid.UUID `json:"uid"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Meeting is the shared meeting record. It is created on "new meeting",
// mutated on join/leave and flagged inactive on an explicit end. Records are
// never hard-deleted by this service.
type Meeting struct {
	ID           string        `json:"id"`
	CreatedBy    uuid.UUID     `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	IsActive     bool          `json:"is_active"`
	Participants []Participant `json:"participants"`
}

func NewMeeting(id string, createdBy uuid.UUID, creatorName string) *Meeting {
	now := time.Now().UTC()
	return &Meeting{
		ID:        id,
		CreatedBy: createdBy,
		CreatedAt: now,
		IsActive:  true,
		Participants: []Participant{
			{UserID: createdBy, Name: creatorName, JoinedAt: now},
		},
	}
}

func (m *Meeting) HasParticipant(userID uuid.UUID) bool {
	for _, p := range m.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// AddParticipant appends a participant entry. Adding an id that is already
// present is a no-op; the participant list never holds duplicates.
func (m *Meeting) AddParticipant(p Participant) bool {
	if m.HasParticipant(p.UserID) {
		return false
	}
	m.Participants = append(m.Participants, p)
	return true
}

// RemoveParticipant deletes the entry for userID. Removal of an absent id is
// a no-op.
func (m *Meeting) RemoveParticipant(userID uuid.UUID) bool {
	for i, p := range m.Participants {
		if p.UserID == userID {
			m.Participants = append(m.Participants[:i], m.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// NewMeetingID generates a short shareable room code.
func NewMeetingID() string {
	code := make([]byte, meetingCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(meetingCodeChars))))
		code[i] = meetingCodeChars[n.Int64()]
	}
	return string(code)
}
