// Package meeting manages the shared meeting records: creation, membership,
// the active flag and live subscriptions. Records are mutated in place and
// flagged inactive on end, never hard-deleted by this service.
package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"connectmeet/internal/domain"
	"connectmeet/internal/store"
	"connectmeet/lib/logger/sl"
)

const meetingCollection = "meetings"

type Service struct {
	store store.Store
	log   *slog.Logger
}

func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, log: log}
}

// Create writes a new meeting record with the creator as the first
// participant.
func (s *Service) Create(ctx context.Context, meetingID string, userID uuid.UUID, userName string) (*domain.Meeting, error) {
	const op = "meeting.create"

	m := domain.NewMeeting(meetingID, userID, userName)
	doc, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, meetingCollection, meetingID, doc); err != nil {
		s.log.Error("failed to create meeting", slog.String("op", op), slog.String("meeting_id", meetingID), sl.Err(err))
		return nil, err
	}

	s.log.Info("meeting created", slog.String("op", op), slog.String("meeting_id", meetingID))
	return m, nil
}

// Exists reports whether an active meeting record exists for the id.
func (s *Service) Exists(ctx context.Context, meetingID string) (bool, error) {
	m, err := s.Get(ctx, meetingID)
	if err != nil {
		if errors.Is(err, domain.ErrMeetingNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.IsActive, nil
}

func (s *Service) Get(ctx context.Context, meetingID string) (*domain.Meeting, error) {
	doc, err := s.store.Get(ctx, meetingCollection, meetingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrMeetingNotFound
		}
		return nil, err
	}

	var m domain.Meeting
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Join adds the participant to the record. Re-joining with the same user id
// is a no-op success.
func (s *Service) Join(ctx context.Context, meetingID string, userID uuid.UUID, name string) error {
	const op = "meeting.join"
	log := s.log.With(slog.String("op", op), slog.String("meeting_id", meetingID), slog.String("user_id", userID.String()))

	err := s.store.Update(ctx, meetingCollection, meetingID, func(doc []byte) ([]byte, error) {
		var m domain.Meeting
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		if !m.IsActive {
			return nil, domain.ErrMeetingEnded
		}
		m.AddParticipant(domain.Participant{
			UserID:   userID,
			Name:     name,
			JoinedAt: time.Now().UTC(),
		})
		return json.Marshal(&m)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrMeetingNotFound
		}
		if !errors.Is(err, domain.ErrMeetingEnded) {
			log.Error("join failed", sl.Err(err))
		}
		return err
	}

	log.Info("participant joined")
	return nil
}

// Leave removes the participant entry. Removing an absent participant, or
// leaving a meeting that no longer exists, is a no-op.
func (s *Service) Leave(ctx context.Context, meetingID string, userID uuid.UUID) error {
	const op = "meeting.leave"
	log := s.log.With(slog.String("op", op), slog.String("meeting_id", meetingID), slog.String("user_id", userID.String()))

	err := s.store.Update(ctx, meetingCollection, meetingID, func(doc []byte) ([]byte, error) {
		var m domain.Meeting
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		m.RemoveParticipant(userID)
		return json.Marshal(&m)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		log.Error("leave failed", sl.Err(err))
		return err
	}

	log.Info("participant left")
	return nil
}

// End flips the active flag. The record stays in the store.
func (s *Service) End(ctx context.Context, meetingID string) error {
	err := s.store.Update(ctx, meetingCollection, meetingID, func(doc []byte) ([]byte, error) {
		var m domain.Meeting
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		m.IsActive = false
		return json.Marshal(&m)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrMeetingNotFound
		}
		return err
	}
	return nil
}

// Subscribe delivers the meeting record on every change; nil when the
// record does not exist or disappears.
func (s *Service) Subscribe(ctx context.Context, meetingID string, onUpdate func(m *domain.Meeting)) (store.Subscription, error) {
	return s.store.Subscribe(ctx, meetingCollection, meetingID, func(doc []byte, exists bool) {
		if !exists {
			onUpdate(nil)
			return
		}
		var m domain.Meeting
		if err := json.Unmarshal(doc, &m); err != nil {
			s.log.Error("malformed meeting record", slog.String("meeting_id", meetingID))
			return
		}
		onUpdate(&m)
	})
}
