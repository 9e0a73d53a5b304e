package converter

import (
	"time"

	"github.com/google/uuid"

	"connectmeet/internal/domain"
)

type MeetingResponse struct {
	ID           string                `json:"id"`
	CreatedBy    uuid.UUID             `json:"created_by"`
	CreatedAt    time.Time             `json:"created_at"`
	IsActive     bool                  `json:"is_active"`
	Participants []ParticipantResponse `json:"participants"`
}

type ParticipantResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	IsGuest   bool      `json:"is_guest"`
	CreatedAt time.Time `json:"created_at"`
}

func MeetingToApi(m *domain.Meeting) *MeetingResponse {
	participants := make([]ParticipantResponse, 0, len(m.Participants))
	for _, p := range m.Participants {
		participants = append(participants, ParticipantToApi(p))
	}

	return &MeetingResponse{
		ID:           m.ID,
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
		IsActive:     m.IsActive,
		Participants: participants,
	}
}

func ParticipantToApi(p domain.Participant) ParticipantResponse {
	return ParticipantResponse{
		UserID:   p.UserID,
		Name:     p.Name,
		JoinedAt: p.JoinedAt,
	}
}

func UserToApi(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsGuest:   u.IsGuest,
		CreatedAt: u.CreatedAt,
	}
}
