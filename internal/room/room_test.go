package room

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"connectmeet/internal/domain"
	"connectmeet/internal/media"
	"connectmeet/internal/meeting"
	"connectmeet/internal/rtc"
	"connectmeet/internal/session"
	"connectmeet/internal/signal"
	"connectmeet/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testRig struct {
	store    *store.MemoryStore
	meetings *meeting.Service
	signals  *signal.Adapter
}

func newTestRig() *testRig {
	st := store.NewMemoryStore()
	return &testRig{
		store:    st,
		meetings: meeting.NewService(st, testLogger()),
		signals:  signal.NewAdapter(st, testLogger()),
	}
}

func (r *testRig) newRoom() (*Room, *session.Manager) {
	sess := session.NewManager(r.signals, rtc.NewFakeEngine(), media.NewSyntheticDevice(), nil, testLogger())
	return NewRoom(r.meetings, sess, testLogger()), sess
}

func TestJoinRegistersParticipant(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	guest := uuid.New()

	_, err := rig.meetings.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	r, _ := rig.newRoom()
	require.NoError(t, r.Join(ctx, "abc123defg", guest, "Bob"))
	require.Equal(t, StateJoined, r.State())

	m, err := rig.meetings.Get(ctx, "abc123defg")
	require.NoError(t, err)
	require.True(t, m.HasParticipant(guest))
}

func TestJoinMissingMeetingFails(t *testing.T) {
	rig := newTestRig()

	r, _ := rig.newRoom()
	err := r.Join(context.Background(), "nosuchroom", uuid.New(), "Bob")
	require.ErrorIs(t, err, domain.ErrMeetingNotFound)
	require.Equal(t, StateJoinFailed, r.State())
}

func TestParticipantSnapshotTracksMembership(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	other := uuid.New()

	_, err := rig.meetings.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	r, _ := rig.newRoom()
	require.NoError(t, r.Join(ctx, "abc123defg", uuid.New(), "Bob"))

	require.NoError(t, rig.meetings.Join(ctx, "abc123defg", other, "Carol"))
	require.Eventually(t, func() bool {
		return len(r.Participants()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, rig.meetings.Leave(ctx, "abc123defg", other))
	require.Eventually(t, func() bool {
		return len(r.Participants()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecordDisappearanceForcesLeave(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	_, err := rig.meetings.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	r, sess := rig.newRoom()

	var ended atomic.Bool
	r.OnEnded(func() { ended.Store(true) })

	require.NoError(t, r.Join(ctx, "abc123defg", uuid.New(), "Bob"))
	require.NoError(t, r.StartCall(ctx))

	require.NoError(t, rig.store.Delete(ctx, "meetings", "abc123defg"))

	require.Eventually(t, func() bool {
		return r.State() == StateLeft
	}, 2*time.Second, 10*time.Millisecond)
	require.True(t, ended.Load())
	require.Equal(t, session.StateClosed, sess.State())
}

func TestLeaveIsIdempotentAndStopsSession(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()
	guest := uuid.New()

	_, err := rig.meetings.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	r, sess := rig.newRoom()
	require.NoError(t, r.Join(ctx, "abc123defg", guest, "Bob"))
	require.NoError(t, r.StartCall(ctx))

	local := sess.LocalStream()
	require.NotNil(t, local)

	require.NoError(t, r.Leave(ctx))
	require.NoError(t, r.Leave(ctx))
	require.Equal(t, StateLeft, r.State())
	require.Equal(t, session.StateClosed, sess.State())
	for _, track := range local.Tracks() {
		require.True(t, track.Stopped())
	}

	m, err := rig.meetings.Get(ctx, "abc123defg")
	require.NoError(t, err)
	require.False(t, m.HasParticipant(guest))
}

func TestStartCallPublishesOffer(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	_, err := rig.meetings.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	r, sess := rig.newRoom()
	require.NoError(t, r.Join(ctx, "abc123defg", uuid.New(), "Bob"))
	require.NoError(t, r.StartCall(ctx))

	require.Equal(t, session.StateOffering, sess.State())

	rec, err := rig.signals.ReadCall(ctx, "abc123defg")
	require.NoError(t, err)
	require.NotNil(t, rec.Offer)
}

func TestChatIsRoomLocal(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	_, err := rig.meetings.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	r, _ := rig.newRoom()
	require.NoError(t, r.Join(ctx, "abc123defg", uuid.New(), "Bob"))

	first := r.SendChat("hello")
	second := r.SendChat("anyone here?")
	require.NotEqual(t, first.ID, second.ID)

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "anyone here?", msgs[1].Content)
	require.Equal(t, "Bob", msgs[0].Sender)
}

func TestReactions(t *testing.T) {
	rig := newTestRig()
	ctx := context.Background()

	_, err := rig.meetings.Create(ctx, "abc123defg", uuid.New(), "Alice")
	require.NoError(t, err)

	r, _ := rig.newRoom()
	require.NoError(t, r.Join(ctx, "abc123defg", uuid.New(), "Bob"))

	r.AddReaction("👍")
	reactions := r.Reactions()
	require.Len(t, reactions, 1)
	require.Equal(t, "👍", reactions[0].Emoji)
	require.Equal(t, "Bob", reactions[0].UserName)
}
