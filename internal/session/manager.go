// Package session owns the single active peer connection for a room: the
// offer-or-answer role decision, description and candidate exchange through
// the signaling adapter, local capture, and teardown.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"connectmeet/internal/domain"
	"connectmeet/internal/media"
	"connectmeet/internal/rtc"
	"connectmeet/internal/signal"
	"connectmeet/internal/store"
	"connectmeet/lib/logger/sl"
)

type State string

const (
	StateIdle           State = "idle"
	StateAcquiringMedia State = "acquiring_media"
	StateOffering       State = "offering"
	StateAnswering      State = "answering"
	StateConnected      State = "connected"
	StateClosed         State = "closed"
	StateFailed         State = "failed"
)

type Role string

const (
	RoleNone   Role = ""
	RoleOffer  Role = "offer"
	RoleAnswer Role = "answer"
)

var ErrAlreadyStarted = errors.New("session already started")

// RemoteStream accumulates remote tracks arriving on the connection into a
// single handle exposed for rendering.
type RemoteStream struct {
	mu     sync.RWMutex
	tracks []rtc.RemoteTrack
}

func (s *RemoteStream) add(t rtc.RemoteTrack) {
	s.mu.Lock()
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()
}

func (s *RemoteStream) Tracks() []rtc.RemoteTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rtc.RemoteTrack, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// Manager drives one peer session. The connection and local stream are
// exclusively owned here; other components mutate them only through the
// exposed toggle and replace operations.
type Manager struct {
	signals     *signal.Adapter
	engine      rtc.Engine
	device      media.Device
	log         *slog.Logger
	iceServers  []string
	constraints media.Constraints

	mu            sync.Mutex
	state         State
	role          Role
	roomID        string
	conn          rtc.Connection
	local         *media.Stream
	screen        *media.Stream
	preview       *media.Stream
	remote        *RemoteStream
	answerApplied bool
	pending       []domain.Candidate
	subs          []store.Subscription
	closed        bool
}

func NewManager(signals *signal.Adapter, engine rtc.Engine, device media.Device, iceServers []string, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		signals:     signals,
		engine:      engine,
		device:      device,
		log:         log,
		iceServers:  iceServers,
		constraints: media.DefaultConstraints(),
		state:       StateIdle,
		remote:      &RemoteStream{},
	}
}

// Start acquires camera and microphone, then joins the room's call if one
// exists or creates it otherwise. Media acquisition failures are fatal to
// the attempt and returned with their typed reason; signaling failures
// after successful capture are logged and the local preview keeps working.
func (m *Manager) Start(ctx context.Context, roomID string) error {
	const op = "session.start"
	log := m.log.With(slog.String("op", op), slog.String("room_id", roomID))

	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.state = StateAcquiringMedia
	m.roomID = roomID
	m.mu.Unlock()

	stream, err := m.device.CaptureUserMedia(ctx, m.constraints)
	if err != nil {
		m.mu.Lock()
		m.state = StateFailed
		m.mu.Unlock()
		log.Error("media acquisition failed", sl.Err(err))
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		stream.Stop()
		return nil
	}
	m.local = stream
	m.preview = stream
	m.mu.Unlock()

	// Probe for an existing offer, then branch. A storage failure here is
	// non-fatal: capture already succeeded.
	rec, err := m.signals.ReadCall(ctx, roomID)
	switch {
	case err == nil:
		return m.answerCall(ctx, roomID, rec, log)
	case errors.Is(err, signal.ErrNoCall):
		return m.createCall(ctx, roomID, log)
	default:
		log.Warn("call probe failed, continuing with local preview only", sl.Err(err))
		return nil
	}
}

// createCall runs the offering role: publish an offer, wait for the first
// answer, apply the answering side's candidates.
func (m *Manager) createCall(ctx context.Context, roomID string, log *slog.Logger) error {
	m.mu.Lock()
	m.state = StateOffering
	m.role = RoleOffer
	m.mu.Unlock()

	conn, ok := m.setupConnection(roomID, signal.SideOffer, log)
	if !ok {
		return nil
	}

	offer, err := conn.CreateOffer()
	if err != nil {
		log.Warn("offer creation failed, local preview only", sl.Err(err))
		return nil
	}
	if err := conn.SetLocalDescription(offer); err != nil {
		log.Warn("failed to set local offer, local preview only", sl.Err(err))
		return nil
	}

	if err := m.signals.PublishOffer(ctx, roomID, offer); err != nil {
		if errors.Is(err, signal.ErrCallExists) {
			// Lost the creation race: best-effort path, never fatal once
			// capture has succeeded.
			log.Info("another participant created the call first")
		} else {
			log.Warn("failed to publish offer, local preview only", sl.Err(err))
		}
		return nil
	}

	callSub, err := m.signals.SubscribeCall(ctx, roomID, func(rec *domain.CallRecord) {
		m.handleCallUpdate(rec, log)
	})
	if err != nil {
		log.Warn("call subscription failed", sl.Err(err))
		return nil
	}
	m.keepSub(callSub)

	candSub, err := m.signals.SubscribeCandidates(ctx, roomID, signal.SideAnswer, m.handleRemoteCandidate)
	if err != nil {
		log.Warn("candidate subscription failed", sl.Err(err))
		return nil
	}
	m.keepSub(candSub)

	return nil
}

// answerCall runs the answering role against an existing offer.
func (m *Manager) answerCall(ctx context.Context, roomID string, rec *domain.CallRecord, log *slog.Logger) error {
	m.mu.Lock()
	m.state = StateAnswering
	m.role = RoleAnswer
	m.mu.Unlock()

	conn, ok := m.setupConnection(roomID, signal.SideAnswer, log)
	if !ok {
		return nil
	}

	if err := conn.SetRemoteDescription(*rec.Offer); err != nil {
		log.Warn("failed to apply remote offer, local preview only", sl.Err(err))
		return nil
	}

	answer, err := conn.CreateAnswer()
	if err != nil {
		log.Warn("answer creation failed, local preview only", sl.Err(err))
		return nil
	}
	if err := conn.SetLocalDescription(answer); err != nil {
		log.Warn("failed to set local answer, local preview only", sl.Err(err))
		return nil
	}

	if err := m.signals.PublishAnswer(ctx, roomID, answer); err != nil {
		log.Warn("failed to publish answer, local preview only", sl.Err(err))
		return nil
	}

	candSub, err := m.signals.SubscribeCandidates(ctx, roomID, signal.SideOffer, m.handleRemoteCandidate)
	if err != nil {
		log.Warn("candidate subscription failed", sl.Err(err))
		return nil
	}
	m.keepSub(candSub)

	m.mu.Lock()
	if !m.closed && m.state == StateAnswering {
		m.state = StateConnected
	}
	m.mu.Unlock()

	return nil
}

// setupConnection creates the engine connection, attaches all local tracks
// and wires candidate/track events. Failures degrade to local preview.
func (m *Manager) setupConnection(roomID string, side signal.Side, log *slog.Logger) (rtc.Connection, bool) {
	conn, err := m.engine.NewConnection(rtc.Config{ICEServers: m.iceServers})
	if err != nil {
		log.Warn("peer connection setup failed, local preview only", sl.Err(err))
		return nil, false
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, false
	}
	local := m.local
	m.conn = conn
	m.mu.Unlock()

	for _, t := range local.Tracks() {
		if _, err := conn.AddTrack(t); err != nil {
			log.Warn("failed to attach local track", slog.String("kind", string(t.Kind())), sl.Err(err))
		}
	}

	conn.OnRemoteTrack(m.handleRemoteTrack)
	conn.OnLocalCandidate(func(c domain.Candidate) {
		m.trickle(roomID, side, c)
	})

	return conn, true
}

// handleCallUpdate applies the first answer observed on the call record.
// Repeated snapshots carrying the same answer are ignored.
func (m *Manager) handleCallUpdate(rec *domain.CallRecord, log *slog.Logger) {
	m.mu.Lock()
	if m.closed || rec == nil || rec.Answer == nil || m.answerApplied {
		m.mu.Unlock()
		return
	}
	m.answerApplied = true
	conn := m.conn
	answer := *rec.Answer
	m.mu.Unlock()

	if err := conn.SetRemoteDescription(answer); err != nil {
		log.Warn("failed to apply answer", sl.Err(err))
		return
	}

	m.flushPending(log)

	m.mu.Lock()
	if !m.closed && m.state == StateOffering {
		m.state = StateConnected
	}
	m.mu.Unlock()
}

// handleRemoteCandidate applies a trickled candidate, buffering it when the
// remote description has not been set yet.
func (m *Manager) handleRemoteCandidate(c domain.Candidate) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	conn := m.conn
	if conn == nil || !conn.HasRemoteDescription() {
		m.pending = append(m.pending, c)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := conn.AddRemoteCandidate(c); err != nil {
		m.log.Warn("failed to apply remote candidate", sl.Err(err))
	}
}

func (m *Manager) flushPending(log *slog.Logger) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	conn := m.conn
	m.mu.Unlock()

	for _, c := range pending {
		if err := conn.AddRemoteCandidate(c); err != nil {
			log.Warn("failed to apply buffered candidate", sl.Err(err))
		}
	}
}

func (m *Manager) handleRemoteTrack(t rtc.RemoteTrack) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	remote := m.remote
	m.mu.Unlock()

	remote.add(t)
}

// trickle publishes one locally-discovered candidate. Fire and forget;
// failures are logged, never fatal.
func (m *Manager) trickle(roomID string, side signal.Side, c domain.Candidate) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	if err := m.signals.AppendCandidate(context.Background(), roomID, side, c); err != nil {
		m.log.Warn("failed to trickle candidate", slog.String("room_id", roomID), sl.Err(err))
	}
}

func (m *Manager) keepSub(sub store.Subscription) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.Cancel()
		return
	}
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
}

// HangUp cancels subscriptions, stops all local media tracks and closes the
// connection. Safe to call any number of times, including concurrently.
func (m *Manager) HangUp() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := m.subs
	m.subs = nil
	conn := m.conn
	local := m.local
	screen := m.screen
	if m.state != StateFailed {
		m.state = StateClosed
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if screen != nil {
		screen.Stop()
	}
	if local != nil {
		local.Stop()
	}
	if conn != nil {
		conn.Close()
	}
}

// Stop is an alias for HangUp.
func (m *Manager) Stop() {
	m.HangUp()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.role
}

func (m *Manager) LocalStream() *media.Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.local
}

// PreviewStream is what the local UI renders: the camera stream, or the
// screen stream while sharing.
func (m *Manager) PreviewStream() *media.Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preview
}

func (m *Manager) RemoteStream() *RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remote
}
