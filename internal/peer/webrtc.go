package peer

import (
	"github.com/pion/webrtc/v4"
)

// webrtcConn adapts a pion peer connection to the PeerConnection
// surface the orchestrators use.
type webrtcConn struct {
	pc *webrtc.PeerConnection
}

// NewWebRTCFactory builds production peer connections with the given
// ICE configuration.
func NewWebRTCFactory(cfg webrtc.Configuration) Factory {
	return func() (PeerConnection, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		return &webrtcConn{pc: pc}, nil
	}
}

func (c *webrtcConn) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *webrtcConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *webrtcConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *webrtcConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *webrtcConn) AddICECandidate(cand webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(cand)
}

func (c *webrtcConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			// End of gathering.
			return
		}
		fn(cand.ToJSON())
	})
}

func (c *webrtcConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *webrtcConn) Close() error {
	return c.pc.Close()
}
