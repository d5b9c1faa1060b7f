package peer

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/alexwynter/wavelength/internal/live"
)

// Host is the broadcaster's side of the state machine: one peer
// connection per viewer, created when the viewer's offer arrives.
type Host struct {
	sessionID string
	hostID    string
	factory   Factory
	send      SignalSender

	mu      sync.Mutex
	peers   map[string]*hostPeer
	viewers int
}

type hostPeer struct {
	conn  PeerConnection
	state State
}

func NewHost(sessionID, hostID string, factory Factory, send SignalSender) *Host {
	return &Host{
		sessionID: sessionID,
		hostID:    hostID,
		factory:   factory,
		send:      send,
		peers:     make(map[string]*hostPeer),
	}
}

// HandleSignal dispatches one relayed message. Unknown variants error;
// variants that cannot address a host are ignored.
func (h *Host) HandleSignal(ctx context.Context, msg live.SignalMessage) error {
	switch msg.Type {
	case live.SignalOffer:
		return h.handleOffer(ctx, msg)
	case live.SignalCandidate:
		return h.handleCandidate(msg)
	case live.SignalAnswer:
		// Hosts produce answers, they never receive them.
		return nil
	case live.SignalKicked:
		// Addressed to viewers only.
		return nil
	}
	return fmt.Errorf("unknown signal type %q", msg.Type)
}

func (h *Host) handleOffer(ctx context.Context, msg live.SignalMessage) error {
	viewerID := msg.From
	conn, err := h.factory()
	if err != nil {
		return fmt.Errorf("create peer connection for %s: %w", viewerID, err)
	}

	h.mu.Lock()
	if old, ok := h.peers[viewerID]; ok {
		// A fresh offer supersedes a failed negotiation; the viewer has
		// explicitly re-joined.
		h.dropLocked(viewerID, old)
	}
	h.peers[viewerID] = &hostPeer{conn: conn, state: StateNegotiating}
	h.mu.Unlock()

	conn.OnICECandidate(func(cand webrtc.ICECandidateInit) {
		h.trickle(viewerID, cand)
	})
	conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		h.onStateChange(viewerID, stateOf(s))
	})

	if err := conn.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  msg.SDP,
	}); err != nil {
		return fmt.Errorf("apply offer from %s: %w", viewerID, err)
	}
	answer, err := conn.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer for %s: %w", viewerID, err)
	}
	if err := conn.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer for %s: %w", viewerID, err)
	}
	return h.send.Send(ctx, live.SignalMessage{
		SessionID: h.sessionID,
		Type:      live.SignalAnswer,
		From:      h.hostID,
		To:        viewerID,
		SDP:       answer.SDP,
	})
}

func (h *Host) handleCandidate(msg live.SignalMessage) error {
	h.mu.Lock()
	p, ok := h.peers[msg.From]
	h.mu.Unlock()
	if !ok {
		// Candidate for a peer we already dropped; trickle tolerates loss.
		return nil
	}
	cand, err := decodeCandidate(msg.Candidate)
	if err != nil {
		// Relayed as-is by the server; a bad blob only costs one path.
		log.Printf("discarding malformed candidate from %s: %v", msg.From, err)
		return nil
	}
	return p.conn.AddICECandidate(cand)
}

func (h *Host) trickle(viewerID string, cand webrtc.ICECandidateInit) {
	msg := live.SignalMessage{
		SessionID: h.sessionID,
		Type:      live.SignalCandidate,
		From:      h.hostID,
		To:        viewerID,
		Candidate: encodeCandidate(cand),
	}
	if err := h.send.Send(context.Background(), msg); err != nil {
		log.Printf("trickle to %s failed: %v", viewerID, err)
	}
}

// onStateChange keeps the advisory viewer counter in step with the
// authoritative connection state. It never touches the server-side
// viewer set.
func (h *Host) onStateChange(viewerID string, s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[viewerID]
	if !ok {
		return
	}
	switch s {
	case StateConnected:
		if p.state != StateConnected {
			h.viewers++
		}
		p.state = s
	case StateDisconnected, StateFailed:
		h.dropLocked(viewerID, p)
	case StateClosed:
		if p.state == StateConnected {
			h.viewers--
		}
		delete(h.peers, viewerID)
	default:
		p.state = s
	}
}

// dropLocked discards the local handle. The viewer must re-join and
// issue a fresh offer; there is no automatic reconnection.
func (h *Host) dropLocked(viewerID string, p *hostPeer) {
	if p.state == StateConnected {
		h.viewers--
	}
	_ = p.conn.Close()
	delete(h.peers, viewerID)
}

// ViewerCount is the advisory count of connected peers. The server-side
// viewer set remains the sole authority.
func (h *Host) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewers
}

func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, p := range h.peers {
		_ = p.conn.Close()
		delete(h.peers, id)
	}
	h.viewers = 0
}
