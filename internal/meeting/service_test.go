package meeting

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"connectmeet/internal/domain"
	"connectmeet/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() *Service {
	return NewService(store.NewMemoryStore(), testLogger())
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	creator := uuid.New()

	m, err := svc.Create(ctx, "abc123defg", creator, "Alice")
	require.NoError(t, err)
	require.Equal(t, "abc123defg", m.ID)
	require.True(t, m.IsActive)
	require.Len(t, m.Participants, 1)
	require.Equal(t, creator, m.Participants[0].UserID)

	got, err := svc.Get(ctx, "abc123defg")
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)
	require.Equal(t, creator, got.CreatedBy)
}

func TestGetMissing(t *testing.T) {
	svc := newTestService()

	_, err := svc.Get(context.Background(), "nosuchroom")
	require.ErrorIs(t, err, domain.ErrMeetingNotFound)
}

func TestExists(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	exists, err := svc.Exists(ctx, "abc123defg")
	require.NoError(t, err)
	require.False(t, exists)

	_, err = svc.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	exists, err = svc.Exists(ctx, "abc123defg")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, svc.End(ctx, "abc123defg"))

	// ended meetings are not joinable, so they do not count as existing
	exists, err = svc.Exists(ctx, "abc123defg")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestJoinIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	guest := uuid.New()

	_, err := svc.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	require.NoError(t, svc.Join(ctx, "abc123defg", guest, "Bob"))
	require.NoError(t, svc.Join(ctx, "abc123defg", guest, "Bob"))

	m, err := svc.Get(ctx, "abc123defg")
	require.NoError(t, err)
	require.Len(t, m.Participants, 2)
}

func TestJoinMissingMeeting(t *testing.T) {
	svc := newTestService()

	err := svc.Join(context.Background(), "nosuchroom", uuid.New(), "Bob")
	require.ErrorIs(t, err, domain.ErrMeetingNotFound)
}

func TestJoinEndedMeeting(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.End(ctx, "abc123defg"))

	err = svc.Join(ctx, "abc123defg", uuid.New(), "Bob")
	require.ErrorIs(t, err, domain.ErrMeetingEnded)
}

func TestLeaveIsIdempotent(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	guest := uuid.New()

	_, err := svc.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.Join(ctx, "abc123defg", guest, "Bob"))

	require.NoError(t, svc.Leave(ctx, "abc123defg", guest))
	require.NoError(t, svc.Leave(ctx, "abc123defg", guest))

	m, err := svc.Get(ctx, "abc123defg")
	require.NoError(t, err)
	require.Len(t, m.Participants, 1)
	require.False(t, m.HasParticipant(guest))
}

func TestLeaveMissingMeetingIsNoop(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.Leave(context.Background(), "nosuchroom", uuid.New()))
}

func TestEndKeepsRecord(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	creator := uuid.New()

	_, err := svc.Create(ctx, "abc123defg", creator, "Alice")
	require.NoError(t, err)
	require.NoError(t, svc.End(ctx, "abc123defg"))

	m, err := svc.Get(ctx, "abc123defg")
	require.NoError(t, err)
	require.False(t, m.IsActive)
	require.Len(t, m.Participants, 1)
}

func TestSubscribeSeesMembershipChanges(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	guest := uuid.New()

	_, err := svc.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	var mu sync.Mutex
	var snapshots []*domain.Meeting
	sub, err := svc.Subscribe(ctx, "abc123defg", func(m *domain.Meeting) {
		mu.Lock()
		snapshots = append(snapshots, m)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, svc.Join(ctx, "abc123defg", guest, "Bob"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, m := range snapshots {
			if m != nil && m.HasParticipant(guest) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
