package peer

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/alexwynter/wavelength/internal/live"
)

// Viewer is the audience side: it opens the negotiation with an offer
// and applies whatever the host relays back. A kicked signal addressed
// to it tears the connection down regardless of local intent.
type Viewer struct {
	sessionID string
	viewerID  string
	hostID    string
	send      SignalSender

	mu        sync.Mutex
	conn      PeerConnection
	state     State
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func NewViewer(sessionID, viewerID, hostID string, factory Factory, send SignalSender) (*Viewer, error) {
	conn, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	v := &Viewer{
		sessionID: sessionID,
		viewerID:  viewerID,
		hostID:    hostID,
		send:      send,
		conn:      conn,
		state:     StateNew,
	}
	conn.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		msg := live.SignalMessage{
			SessionID: sessionID,
			Type:      live.SignalCandidate,
			From:      viewerID,
			To:        hostID,
			Candidate: encodeCandidate(cand),
		}
		if err := send.Send(context.Background(), msg); err != nil {
			log.Printf("trickle to host failed: %v", err)
		}
	})
	conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		v.mu.Lock()
		defer v.mu.Unlock()
		if v.state == StateClosed {
			return
		}
		// Failures stay local. Recovery means a fresh JoinAsViewer and a
		// fresh offer; nothing reconnects automatically.
		v.state = stateOf(s)
	})
	return v, nil
}

// Start issues the initial offer toward the host.
func (v *Viewer) Start(ctx context.Context) error {
	offer, err := v.conn.CreateOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := v.conn.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	v.mu.Lock()
	v.state = StateNegotiating
	v.mu.Unlock()
	return v.send.Send(ctx, live.SignalMessage{
		SessionID: v.sessionID,
		Type:      live.SignalOffer,
		From:      v.viewerID,
		To:        v.hostID,
		SDP:       offer.SDP,
	})
}

// HandleSignal dispatches one relayed message.
func (v *Viewer) HandleSignal(_ context.Context, msg live.SignalMessage) error {
	switch msg.Type {
	case live.SignalAnswer:
		return v.applyAnswer(msg)
	case live.SignalCandidate:
		return v.applyCandidate(msg)
	case live.SignalKicked:
		if msg.To == v.viewerID {
			return v.Close()
		}
		return nil
	case live.SignalOffer:
		// Viewers offer, they never receive offers.
		return nil
	}
	return fmt.Errorf("unknown signal type %q", msg.Type)
}

func (v *Viewer) applyAnswer(msg live.SignalMessage) error {
	if err := v.conn.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  msg.SDP,
	}); err != nil {
		return fmt.Errorf("apply answer: %w", err)
	}
	v.mu.Lock()
	v.remoteSet = true
	pending := v.pending
	v.pending = nil
	v.mu.Unlock()
	for _, cand := range pending {
		if err := v.conn.AddICECandidate(cand); err != nil {
			log.Printf("buffered candidate rejected: %v", err)
		}
	}
	return nil
}

// applyCandidate buffers candidates that arrive before the answer; the
// remote description must be in place before any candidate is usable.
// Order among candidates themselves does not matter.
func (v *Viewer) applyCandidate(msg live.SignalMessage) error {
	cand, err := decodeCandidate(msg.Candidate)
	if err != nil {
		log.Printf("discarding malformed candidate from %s: %v", msg.From, err)
		return nil
	}
	v.mu.Lock()
	if !v.remoteSet {
		v.pending = append(v.pending, cand)
		v.mu.Unlock()
		return nil
	}
	v.mu.Unlock()
	return v.conn.AddICECandidate(cand)
}

func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Viewer) Close() error {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return nil
	}
	v.state = StateClosed
	v.mu.Unlock()
	return v.conn.Close()
}
