package domain

// Description is a session description produced by the peer-connection
// engine. It is passed through the signaling store unmodified.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is a trickled connectivity candidate. The fields mirror what the
// engine emits; the store treats the value as opaque.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// CallRecord is the shared call document for one room: the offering side's
// description and, once produced, the answering side's. Candidates live in
// two append-only sub-lists keyed by side, not on the record itself.
type CallRecord struct {
	Offer  *Description `json:"offer,omitempty"`
	Answer *Description `json:"answer,omitempty"`
}
