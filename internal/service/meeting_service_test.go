package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"connectmeet/internal/domain"
	"connectmeet/internal/meeting"
	"connectmeet/internal/repository"
	"connectmeet/internal/store"
)

func newTestMeetingService(t *testing.T) (*MeetingService, *domain.User) {
	t.Helper()
	users := repository.NewInMemoryUserRepository()

	creator := domain.NewUser("Alice", "alice@example.com", []byte("hash"))
	require.NoError(t, users.Create(context.Background(), creator))

	records := meeting.NewService(store.NewMemoryStore(), testLogger())
	return NewMeetingService(records, users, testLogger()), creator
}

func TestCreateMeetingMintsCode(t *testing.T) {
	svc, creator := newTestMeetingService(t)

	m, err := svc.CreateMeeting(context.Background(), creator.ID)
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^[a-z0-9]{10}$`), m.ID)
	require.Equal(t, creator.ID, m.CreatedBy)
	require.Len(t, m.Participants, 1)
	require.Equal(t, "Alice", m.Participants[0].Name)
}

func TestCreateMeetingUnknownUser(t *testing.T) {
	svc, _ := newTestMeetingService(t)

	_, err := svc.CreateMeeting(context.Background(), uuid.New())
	require.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestCheckMeeting(t *testing.T) {
	svc, creator := newTestMeetingService(t)
	ctx := context.Background()

	exists, err := svc.CheckMeeting(ctx, "nosuchroom")
	require.NoError(t, err)
	require.False(t, exists)

	m, err := svc.CreateMeeting(ctx, creator.ID)
	require.NoError(t, err)

	exists, err = svc.CheckMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestJoinMeetingResolvesName(t *testing.T) {
	svc, creator := newTestMeetingService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, creator.ID)
	require.NoError(t, err)

	guest := domain.NewGuestUser("Bob")
	require.NoError(t, svc.users.Create(ctx, guest))

	joined, err := svc.JoinMeeting(ctx, m.ID, guest.ID)
	require.NoError(t, err)
	require.Len(t, joined.Participants, 2)
	require.Equal(t, "Bob", joined.Participants[1].Name)
}

func TestEndMeetingOwnerOnly(t *testing.T) {
	svc, creator := newTestMeetingService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, creator.ID)
	require.NoError(t, err)

	guest := domain.NewGuestUser("Bob")
	require.NoError(t, svc.users.Create(ctx, guest))

	require.ErrorIs(t, svc.EndMeeting(ctx, m.ID, guest.ID), ErrNotMeetingOwner)
	require.NoError(t, svc.EndMeeting(ctx, m.ID, creator.ID))

	got, err := svc.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}
