package rtc

import (
	"sync"

	"github.com/pion/webrtc/v3"

	"connectmeet/internal/domain"
	"connectmeet/internal/media"
)

// PionEngine implements Engine on pion/webrtc.
type PionEngine struct{}

func NewPionEngine() *PionEngine {
	return &PionEngine{}
}

func (e *PionEngine) NewConnection(cfg Config) (Connection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: cfg.ICEServers}},
	})
	if err != nil {
		return nil, err
	}
	return &pionConnection{pc: pc}, nil
}

type pionConnection struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	senders []*pionSender
	closed  bool
}

func (c *pionConnection) AddTrack(t *media.Track) (Sender, error) {
	rtpSender, err := c.pc.AddTrack(t.Local())
	if err != nil {
		return nil, err
	}

	s := &pionSender{sender: rtpSender, kind: t.Kind()}
	c.mu.Lock()
	c.senders = append(c.senders, s)
	c.mu.Unlock()
	return s, nil
}

func (c *pionConnection) CreateOffer() (domain.Description, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return domain.Description{}, err
	}
	return fromPionDescription(offer), nil
}

func (c *pionConnection) CreateAnswer() (domain.Description, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return domain.Description{}, err
	}
	return fromPionDescription(answer), nil
}

func (c *pionConnection) SetLocalDescription(d domain.Description) error {
	return c.pc.SetLocalDescription(toPionDescription(d))
}

func (c *pionConnection) SetRemoteDescription(d domain.Description) error {
	return c.pc.SetRemoteDescription(toPionDescription(d))
}

func (c *pionConnection) HasRemoteDescription() bool {
	return c.pc.RemoteDescription() != nil
}

func (c *pionConnection) AddRemoteCandidate(cand domain.Candidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        cand.Candidate,
		SDPMid:           cand.SDPMid,
		SDPMLineIndex:    cand.SDPMLineIndex,
		UsernameFragment: cand.UsernameFragment,
	})
}

func (c *pionConnection) OnLocalCandidate(fn func(cand domain.Candidate)) {
	c.pc.OnICECandidate(func(ic *webrtc.ICECandidate) {
		if ic == nil {
			return
		}
		init := ic.ToJSON()
		fn(domain.Candidate{
			Candidate:        init.Candidate,
			SDPMid:           init.SDPMid,
			SDPMLineIndex:    init.SDPMLineIndex,
			UsernameFragment: init.UsernameFragment,
		})
	})
}

func (c *pionConnection) OnRemoteTrack(fn func(t RemoteTrack)) {
	c.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(&pionRemoteTrack{tr: tr})
	})
}

func (c *pionConnection) VideoSender() (Sender, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.senders {
		if s.kind == media.KindVideo {
			return s, true
		}
	}
	return nil, false
}

func (c *pionConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.pc.Close()
}

type pionSender struct {
	sender *webrtc.RTPSender
	kind   media.Kind
}

func (s *pionSender) Kind() media.Kind {
	return s.kind
}

func (s *pionSender) ReplaceTrack(t *media.Track) error {
	return s.sender.ReplaceTrack(t.Local())
}

type pionRemoteTrack struct {
	tr *webrtc.TrackRemote
}

func (t *pionRemoteTrack) ID() string {
	return t.tr.ID()
}

func (t *pionRemoteTrack) Kind() media.Kind {
	if t.tr.Kind() == webrtc.RTPCodecTypeAudio {
		return media.KindAudio
	}
	return media.KindVideo
}

func (t *pionRemoteTrack) StreamID() string {
	return t.tr.StreamID()
}

func fromPionDescription(d webrtc.SessionDescription) domain.Description {
	return domain.Description{Type: d.Type.String(), SDP: d.SDP}
}

func toPionDescription(d domain.Description) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
}
