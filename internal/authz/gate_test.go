package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexwynter/wavelength/internal/live"
	"github.com/alexwynter/wavelength/internal/social"
)

func broadcast(host string, public bool) *live.Session {
	return &live.Session{
		ID:           "s1",
		HostID:       host,
		Type:         live.TypeBroadcast,
		Participants: []string{host},
		Status:       live.StatusActive,
		IsPublic:     public,
		StartedAt:    time.Now().UTC(),
	}
}

func call(host, target string) *live.Session {
	return &live.Session{
		ID:           "c1",
		HostID:       host,
		Type:         live.TypeCallVideo,
		Participants: []string{host, target},
		Status:       live.StatusActive,
		StartedAt:    time.Now().UTC(),
	}
}

func TestGateRules(t *testing.T) {
	graph := social.NewStaticGraph()
	graph.Connect("host", "friend")
	gate := New(graph)
	ctx := context.Background()

	withViewer := broadcast("host", true)
	withViewer.Viewers = []string{"viewer"}
	kicked := broadcast("host", true)
	kicked.KickedViewers = []string{"banned"}
	private := broadcast("host", false)
	ended := broadcast("host", true)
	ended.Status = live.StatusEnded

	tests := []struct {
		name    string
		actor   string
		op      Operation
		session *live.Session
		want    error
	}{
		{"missing session", "host", OpSignal, nil, live.ErrNotFound},
		{"participant signals", "host", OpSignal, broadcast("host", true), nil},
		{"participant heartbeats", "host", OpHeartbeat, broadcast("host", true), nil},
		{"call participant signals", "target", OpSignal, call("host", "target"), nil},
		{"viewer signals", "viewer", OpSignal, withViewer, nil},
		{"viewer reads", "viewer", OpRead, withViewer, nil},
		{"stranger signals", "stranger", OpSignal, broadcast("host", true), live.ErrUnauthorized},
		{"viewer cannot heartbeat", "viewer", OpHeartbeat, withViewer, live.ErrUnauthorized},
		{"public join", "anyone", OpJoin, broadcast("host", true), nil},
		{"kicked join denied even when public", "banned", OpJoin, kicked, live.ErrAlreadyKicked},
		{"kicked viewer reads mailbox", "banned", OpRead, kicked, nil},
		{"kicked viewer cannot signal", "banned", OpSignal, kicked, live.ErrUnauthorized},
		{"private join unconnected", "stranger", OpJoin, private, live.ErrPrivacyRestricted},
		{"private join connected", "friend", OpJoin, private, nil},
		{"private join host", "host", OpJoin, private, nil},
		{"join a call", "anyone", OpJoin, call("host", "target"), live.ErrUnauthorized},
		{"host kicks", "host", OpKick, withViewer, nil},
		{"viewer cannot kick", "viewer", OpKick, withViewer, live.ErrUnauthorized},
		{"call peer cannot set privacy", "target", OpSetPrivacy, call("host", "target"), live.ErrUnauthorized},
		{"host lists viewers", "host", OpListViewers, withViewer, nil},
		{"viewer cannot list viewers", "viewer", OpListViewers, withViewer, live.ErrUnauthorized},
		{"ended session join", "anyone", OpJoin, ended, live.ErrNotFound},
		{"ended session signal", "host", OpSignal, ended, live.ErrNotFound},
		{"ended session end by participant", "host", OpEnd, ended, nil},
		{"ended session end by stranger", "stranger", OpEnd, ended, live.ErrNotFound},
		{"end by non-participant", "stranger", OpEnd, broadcast("host", true), live.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authorize(ctx, tt.actor, tt.op, tt.session)
			if !errors.Is(err, tt.want) && !(err == nil && tt.want == nil) {
				t.Fatalf("Authorize(%s, %s) = %v, want %v", tt.actor, tt.op, err, tt.want)
			}
		})
	}
}

func TestKickOutranksPrivacyFlip(t *testing.T) {
	gate := New(social.NewStaticGraph())
	s := broadcast("host", false)
	s.KickedViewers = []string{"banned"}

	if err := gate.Authorize(context.Background(), "banned", OpJoin, s); !errors.Is(err, live.ErrAlreadyKicked) {
		t.Fatalf("join while private = %v, want ErrAlreadyKicked", err)
	}
	s.IsPublic = true
	if err := gate.Authorize(context.Background(), "banned", OpJoin, s); !errors.Is(err, live.ErrAlreadyKicked) {
		t.Fatalf("join after privacy flip = %v, want ErrAlreadyKicked", err)
	}
}
