// Package peer implements the client-side signaling state machine: one
// connection per remote peer, driven entirely by relayed signal
// messages. It owns no media; the negotiated peer-to-peer path runs
// outside this control plane.
package peer

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/alexwynter/wavelength/internal/live"
)

// State is the per-remote-peer connection lifecycle.
type State int

const (
	StateNew State = iota
	StateNegotiating
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// PeerConnection is the narrow surface the orchestrators need from a
// real peer connection. The production implementation wraps pion; tests
// substitute a fake.
type PeerConnection interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(cand webrtc.ICECandidateInit) error
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	Close() error
}

// Factory creates a fresh peer connection per remote peer.
type Factory func() (PeerConnection, error)

// SignalSender relays a signaling message to the control plane.
type SignalSender interface {
	Send(ctx context.Context, msg live.SignalMessage) error
}

func encodeCandidate(c webrtc.ICECandidateInit) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeCandidate(s string) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	err := json.Unmarshal([]byte(s), &c)
	return c, err
}

func stateOf(s webrtc.PeerConnectionState) State {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return StateNegotiating
	case webrtc.PeerConnectionStateConnected:
		return StateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return StateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return StateFailed
	case webrtc.PeerConnectionStateClosed:
		return StateClosed
	}
	return StateNew
}
