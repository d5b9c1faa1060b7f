package live

import "time"

// SignalType identifies signaling message variants. Exactly one payload
// field is meaningful per variant: SDP for offer/answer, Candidate for
// candidate, neither for kicked.
type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
	SignalKicked    SignalType = "kicked"
)

func (t SignalType) Valid() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalCandidate, SignalKicked:
		return true
	}
	return false
}

// SignalMessage is an immutable, append-only relay record. Seq and
// Timestamp are assigned by the server on append; ordering is FIFO per
// recipient within a session, nothing more. Payloads are relayed as-is,
// malformed SDP or candidate blobs included.
type SignalMessage struct {
	SessionID string     `json:"session_id"`
	Seq       int64      `json:"seq"`
	Type      SignalType `json:"type"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	SDP       string     `json:"sdp,omitempty"`
	Candidate string     `json:"candidate,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
