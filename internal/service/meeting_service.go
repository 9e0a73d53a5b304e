package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"connectmeet/internal/domain"
	"connectmeet/internal/meeting"
	"connectmeet/internal/repository"
	"connectmeet/lib/logger/sl"
)

var ErrNotMeetingOwner = errors.New("only the meeting creator can end it")

type MeetingService struct {
	meetings *meeting.Service
	users    repository.UserRepository
	log      *slog.Logger
}

func NewMeetingService(meetings *meeting.Service, users repository.UserRepository, log *slog.Logger) *MeetingService {
	if log == nil {
		log = slog.Default()
	}
	return &MeetingService{meetings: meetings, users: users, log: log}
}

// CreateMeeting mints a fresh meeting code and writes the record with the
// caller as creator and first participant.
func (s *MeetingService) CreateMeeting(ctx context.Context, userID uuid.UUID) (*domain.Meeting, error) {
	const op = "service.meeting.create"
	log := s.log.With(slog.String("op", op), slog.String("user_id", userID.String()))

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Error("failed to resolve creator", sl.Err(err))
		return nil, err
	}

	for {
		meetingID := domain.NewMeetingID()
		exists, err := s.meetings.Exists(ctx, meetingID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		m, err := s.meetings.Create(ctx, meetingID, user.ID, user.Name)
		if err != nil {
			return nil, err
		}

		log.Info("meeting created", slog.String("meeting_id", m.ID))
		return m, nil
	}
}

func (s *MeetingService) GetMeeting(ctx context.Context, meetingID string) (*domain.Meeting, error) {
	return s.meetings.Get(ctx, meetingID)
}

// CheckMeeting reports whether the code names a joinable meeting.
func (s *MeetingService) CheckMeeting(ctx context.Context, meetingID string) (bool, error) {
	return s.meetings.Exists(ctx, meetingID)
}

func (s *MeetingService) JoinMeeting(ctx context.Context, meetingID string, userID uuid.UUID) (*domain.Meeting, error) {
	const op = "service.meeting.join"
	log := s.log.With(slog.String("op", op), slog.String("meeting_id", meetingID), slog.String("user_id", userID.String()))

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Error("failed to resolve user", sl.Err(err))
		return nil, err
	}

	if err := s.meetings.Join(ctx, meetingID, user.ID, user.Name); err != nil {
		return nil, err
	}

	return s.meetings.Get(ctx, meetingID)
}

func (s *MeetingService) LeaveMeeting(ctx context.Context, meetingID string, userID uuid.UUID) error {
	return s.meetings.Leave(ctx, meetingID, userID)
}

func (s *MeetingService) EndMeeting(ctx context.Context, meetingID string, userID uuid.UUID) error {
	const op = "service.meeting.end"
	log := s.log.With(slog.String("op", op), slog.String("meeting_id", meetingID))

	m, err := s.meetings.Get(ctx, meetingID)
	if err != nil {
		return err
	}
	if m.CreatedBy != userID {
		return ErrNotMeetingOwner
	}

	if err := s.meetings.End(ctx, meetingID); err != nil {
		log.Error("failed to end meeting", sl.Err(err))
		return err
	}

	log.Info("meeting ended")
	return nil
}

func (s *MeetingService) ListParticipants(ctx context.Context, meetingID string) ([]domain.Participant, error) {
	m, err := s.meetings.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return m.Participants, nil
}
