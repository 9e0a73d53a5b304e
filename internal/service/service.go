package service

import (
	"context"

	"github.com/google/uuid"

	"connectmeet/internal/domain"
)

type UserInteractor interface {
	Register(ctx context.Context, name string, email string, password string) (*domain.User, string, error)
	Login(ctx context.Context, email string, password string) (*domain.User, string, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	EnsureGuest(ctx context.Context, name string) (*domain.User, string, error)
}

type MeetingInteractor interface {
	CreateMeeting(ctx context.Context, userID uuid.UUID) (*domain.Meeting, error)
	GetMeeting(ctx context.Context, meetingID string) (*domain.Meeting, error)
	CheckMeeting(ctx context.Context, meetingID string) (bool, error)
	JoinMeeting(ctx context.Context, meetingID string, userID uuid.UUID) (*domain.Meeting, error)
	LeaveMeeting(ctx context.Context, meetingID string, userID uuid.UUID) error
	EndMeeting(ctx context.Context, meetingID string, userID uuid.UUID) error
	ListParticipants(ctx context.Context, meetingID string) ([]domain.Participant, error)
}
