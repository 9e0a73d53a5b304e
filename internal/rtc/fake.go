package rtc

import (
	"errors"
	"fmt"
	"sync"

	"connectmeet/internal/domain"
	"connectmeet/internal/media"
)

// FakeEngine is an in-process engine for tests: descriptions are synthetic,
// no packets flow, and candidate/track events are emitted by the test.
type FakeEngine struct {
	mu    sync.Mutex
	conns []*FakeConnection
	seq   int
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

func (e *FakeEngine) NewConnection(cfg Config) (Connection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	conn := &FakeConnection{id: e.seq, iceServers: cfg.ICEServers}
	e.conns = append(e.conns, conn)
	return conn, nil
}

func (e *FakeEngine) Connections() []*FakeConnection {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*FakeConnection, len(e.conns))
	copy(out, e.conns)
	return out
}

type FakeConnection struct {
	id         int
	iceServers []string

	mu               sync.Mutex
	localDesc        *domain.Description
	remoteDesc       *domain.Description
	setRemoteCalls   int
	remoteCandidates []domain.Candidate
	senders          []*FakeSender
	onLocalCandidate func(domain.Candidate)
	onRemoteTrack    func(RemoteTrack)
	closed           bool
	closeCalls       int
}

func (c *FakeConnection) AddTrack(t *media.Track) (Sender, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("connection closed")
	}
	s := &FakeSender{kind: t.Kind(), track: t}
	c.senders = append(c.senders, s)
	return s, nil
}

func (c *FakeConnection) CreateOffer() (domain.Description, error) {
	return domain.Description{Type: "offer", SDP: fmt.Sprintf("v=0 fake-offer-%d", c.id)}, nil
}

func (c *FakeConnection) CreateAnswer() (domain.Description, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteDesc == nil {
		return domain.Description{}, errors.New("no remote description")
	}
	return domain.Description{Type: "answer", SDP: fmt.Sprintf("v=0 fake-answer-%d", c.id)}, nil
}

func (c *FakeConnection) SetLocalDescription(d domain.Description) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.localDesc = &d
	return nil
}

func (c *FakeConnection) SetRemoteDescription(d domain.Description) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.remoteDesc = &d
	c.setRemoteCalls++
	return nil
}

func (c *FakeConnection) HasRemoteDescription() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteDesc != nil
}

func (c *FakeConnection) AddRemoteCandidate(cand domain.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remoteDesc == nil {
		return errors.New("remote description not set")
	}
	c.remoteCandidates = append(c.remoteCandidates, cand)
	return nil
}

func (c *FakeConnection) OnLocalCandidate(fn func(domain.Candidate)) {
	c.mu.Lock()
	c.onLocalCandidate = fn
	c.mu.Unlock()
}

func (c *FakeConnection) OnRemoteTrack(fn func(RemoteTrack)) {
	c.mu.Lock()
	c.onRemoteTrack = fn
	c.mu.Unlock()
}

func (c *FakeConnection) VideoSender() (Sender, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.senders {
		if s.kind == media.KindVideo {
			return s, true
		}
	}
	return nil, false
}

func (c *FakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCalls++
	return nil
}

// EmitLocalCandidate simulates the engine discovering a local candidate.
func (c *FakeConnection) EmitLocalCandidate(cand domain.Candidate) {
	c.mu.Lock()
	fn := c.onLocalCandidate
	c.mu.Unlock()
	if fn != nil {
		fn(cand)
	}
}

// EmitRemoteTrack simulates a remote track arriving on the connection.
func (c *FakeConnection) EmitRemoteTrack(t RemoteTrack) {
	c.mu.Lock()
	fn := c.onRemoteTrack
	c.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

func (c *FakeConnection) LocalDescription() *domain.Description {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localDesc
}

func (c *FakeConnection) RemoteDescription() *domain.Description {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteDesc
}

func (c *FakeConnection) SetRemoteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setRemoteCalls
}

func (c *FakeConnection) RemoteCandidates() []domain.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Candidate, len(c.remoteCandidates))
	copy(out, c.remoteCandidates)
	return out
}

func (c *FakeConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeConnection) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

type FakeSender struct {
	mu    sync.Mutex
	kind  media.Kind
	track *media.Track
}

func (s *FakeSender) Kind() media.Kind {
	return s.kind
}

func (s *FakeSender) ReplaceTrack(t *media.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = t
	return nil
}

// CurrentTrack returns the track the sender is transmitting.
func (s *FakeSender) CurrentTrack() *media.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

// FakeRemoteTrack is a RemoteTrack value tests can emit.
type FakeRemoteTrack struct {
	TrackID   string
	TrackKind media.Kind
	Stream    string
}

func (t FakeRemoteTrack) ID() string       { return t.TrackID }
func (t FakeRemoteTrack) Kind() media.Kind { return t.TrackKind }
func (t FakeRemoteTrack) StreamID() string { return t.Stream }
