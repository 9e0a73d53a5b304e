// Package room glues the meeting record to the peer session for one
// participant: joining, the live participant snapshot, leaving, and the
// render-local chat and reaction state.
package room

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"connectmeet/internal/domain"
	"connectmeet/internal/meeting"
	"connectmeet/internal/session"
	"connectmeet/internal/store"
	"connectmeet/lib/logger/sl"
)

type State string

const (
	StateJoining    State = "joining"
	StateJoined     State = "joined"
	StateLeaving    State = "leaving"
	StateLeft       State = "left"
	StateJoinFailed State = "join_failed"
)

const reactionTTL = 3 * time.Second

// Room is one participant's view of a meeting. It owns the subscription to
// the meeting record and drives when the peer session starts and stops.
type Room struct {
	meetings *meeting.Service
	session  *session.Manager
	log      *slog.Logger

	mu           sync.Mutex
	state        State
	roomID       string
	userID       uuid.UUID
	userName     string
	participants []domain.Participant
	sub          store.Subscription
	chat         []domain.ChatMessage
	reactions    []domain.Reaction
	onEnded      func()
	endedOnce    sync.Once
}

func NewRoom(meetings *meeting.Service, sess *session.Manager, log *slog.Logger) *Room {
	if log == nil {
		log = slog.Default()
	}
	return &Room{
		meetings: meetings,
		session:  sess,
		log:      log,
		state:    StateJoining,
	}
}

// OnEnded registers a callback fired once if the meeting ends or its record
// disappears while joined. Register before Join.
func (r *Room) OnEnded(fn func()) {
	r.mu.Lock()
	r.onEnded = fn
	r.mu.Unlock()
}

// Join registers the participant on the meeting record and begins the live
// subscription. Re-joining with the same user id is a no-op success on the
// record side.
func (r *Room) Join(ctx context.Context, roomID string, userID uuid.UUID, name string) error {
	const op = "room.join"
	log := r.log.With(slog.String("op", op), slog.String("room_id", roomID))

	r.mu.Lock()
	if r.state != StateJoining {
		r.mu.Unlock()
		return nil
	}
	r.roomID = roomID
	r.userID = userID
	r.userName = name
	r.mu.Unlock()

	if err := r.meetings.Join(ctx, roomID, userID, name); err != nil {
		r.mu.Lock()
		r.state = StateJoinFailed
		r.mu.Unlock()
		return err
	}

	sub, err := r.meetings.Subscribe(ctx, roomID, r.handleMeetingUpdate)
	if err != nil {
		// Joined but without live updates; the room still works.
		log.Warn("meeting subscription failed", sl.Err(err))
	}

	r.mu.Lock()
	r.sub = sub
	r.state = StateJoined
	r.mu.Unlock()

	log.Info("joined meeting")
	return nil
}

// StartCall starts the peer session for this room.
func (r *Room) StartCall(ctx context.Context) error {
	r.mu.Lock()
	roomID := r.roomID
	r.mu.Unlock()
	return r.session.Start(ctx, roomID)
}

// handleMeetingUpdate replaces the local participant list wholesale with
// each snapshot. A missing record is treated as the meeting having ended
// and forces a leave.
func (r *Room) handleMeetingUpdate(m *domain.Meeting) {
	r.mu.Lock()
	if r.state != StateJoined {
		r.mu.Unlock()
		return
	}

	if m == nil {
		onEnded := r.onEnded
		roomID := r.roomID
		r.mu.Unlock()

		r.endedOnce.Do(func() {
			r.log.Info("meeting record gone, leaving", slog.String("room_id", roomID))
			if onEnded != nil {
				onEnded()
			}
			if err := r.Leave(context.Background()); err != nil {
				r.log.Warn("forced leave failed", sl.Err(err))
			}
		})
		return
	}

	r.participants = m.Participants
	r.mu.Unlock()
}

// Leave removes the participant entry and always stops the peer session and
// media capture, even when the record write fails. Safe to call repeatedly
// and concurrently.
func (r *Room) Leave(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateLeaving || r.state == StateLeft {
		r.mu.Unlock()
		return nil
	}
	r.state = StateLeaving
	sub := r.sub
	r.sub = nil
	roomID := r.roomID
	userID := r.userID
	r.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}

	removeErr := r.meetings.Leave(ctx, roomID, userID)

	// Local resources are released regardless of the remote outcome.
	r.session.HangUp()

	r.mu.Lock()
	r.state = StateLeft
	r.mu.Unlock()

	if removeErr != nil {
		r.log.Warn("failed to remove participant entry", slog.String("room_id", roomID), sl.Err(removeErr))
	}
	return removeErr
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Participants returns the latest snapshot from the meeting subscription.
func (r *Room) Participants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// SendChat appends a message to the room-local transcript. Messages are not
// propagated to other participants.
func (r *Room) SendChat(content string) *domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := domain.NewChatMessage(r.roomID, r.userID, r.userName, content)
	r.chat = append(r.chat, *msg)
	return msg
}

// Messages returns the transcript in insertion order.
func (r *Room) Messages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.chat))
	copy(out, r.chat)
	return out
}

// AddReaction records a short-lived emoji reaction.
func (r *Room) AddReaction(emoji string) *domain.Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	re := domain.NewReaction(emoji, r.userID, r.userName)
	r.reactions = append(r.reactions, *re)
	return re
}

// Reactions returns reactions still within their display window and drops
// expired ones.
func (r *Room) Reactions() []domain.Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-reactionTTL)
	fresh := r.reactions[:0]
	for _, re := range r.reactions {
		if re.At.After(cutoff) {
			fresh = append(fresh, re)
		}
	}
	r.reactions = fresh

	out := make([]domain.Reaction, len(fresh))
	copy(out, fresh)
	return out
}
