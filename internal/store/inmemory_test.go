package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexwynter/wavelength/internal/live"
)

func newBroadcast(id, host string) *live.Session {
	now := time.Now().UTC()
	return &live.Session{
		ID:           id,
		HostID:       host,
		Type:         live.TypeBroadcast,
		Participants: []string{host},
		Status:       live.StatusActive,
		IsPublic:     true,
		StartedAt:    now,
		LastActiveAt: now,
	}
}

func TestKickWinsOverJoin(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.CreateSession(ctx, newBroadcast("b1", "host")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := s.KickViewer(ctx, "b1", "u1"); err != nil {
		t.Fatalf("KickViewer() error = %v", err)
	}
	if err := s.AddViewer(ctx, "b1", "u1"); !errors.Is(err, live.ErrAlreadyKicked) {
		t.Fatalf("AddViewer() after kick = %v, want ErrAlreadyKicked", err)
	}
}

func TestViewersAndKickedStayDisjoint(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.CreateSession(ctx, newBroadcast("b1", "host")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	for _, u := range []string{"u1", "u2", "u3"} {
		if err := s.AddViewer(ctx, "b1", u); err != nil {
			t.Fatalf("AddViewer(%s) error = %v", u, err)
		}
	}
	if err := s.KickViewer(ctx, "b1", "u2"); err != nil {
		t.Fatalf("KickViewer() error = %v", err)
	}
	// Re-kick changes nothing and does not error.
	if err := s.KickViewer(ctx, "b1", "u2"); err != nil {
		t.Fatalf("second KickViewer() error = %v", err)
	}

	got, err := s.GetSession(ctx, "b1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	for _, v := range got.Viewers {
		if got.IsKicked(v) {
			t.Fatalf("viewer %s is in both viewers and kicked", v)
		}
	}
	if len(got.Viewers) != 2 || len(got.KickedViewers) != 1 {
		t.Fatalf("viewers=%v kicked=%v, want 2 viewers and 1 kicked", got.Viewers, got.KickedViewers)
	}
}

func TestAddViewerIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.CreateSession(ctx, newBroadcast("b1", "host")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := s.AddViewer(ctx, "b1", "u1"); err != nil {
		t.Fatalf("AddViewer() error = %v", err)
	}
	if err := s.AddViewer(ctx, "b1", "u1"); err != nil {
		t.Fatalf("second AddViewer() error = %v", err)
	}
	got, _ := s.GetSession(ctx, "b1")
	if len(got.Viewers) != 1 {
		t.Fatalf("viewers = %v, want one entry", got.Viewers)
	}
}

func TestEndSessionIdempotentAndImmutable(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.CreateSession(ctx, newBroadcast("b1", "host")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	endedNow, err := s.EndSession(ctx, "b1", "")
	if err != nil || !endedNow {
		t.Fatalf("EndSession() = (%v, %v), want (true, nil)", endedNow, err)
	}
	endedNow, err = s.EndSession(ctx, "b1", "")
	if err != nil || endedNow {
		t.Fatalf("second EndSession() = (%v, %v), want (false, nil)", endedNow, err)
	}
	// Membership and privacy are frozen after end.
	if err := s.AddViewer(ctx, "b1", "u1"); !errors.Is(err, live.ErrNotFound) {
		t.Fatalf("AddViewer() on ended = %v, want ErrNotFound", err)
	}
	if err := s.SetPrivacy(ctx, "b1", false); !errors.Is(err, live.ErrNotFound) {
		t.Fatalf("SetPrivacy() on ended = %v, want ErrNotFound", err)
	}
	if err := s.TouchSession(ctx, "b1"); !errors.Is(err, live.ErrNotFound) {
		t.Fatalf("TouchSession() on ended = %v, want ErrNotFound", err)
	}
}

func TestSignalsFIFOPerRecipient(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.CreateSession(ctx, newBroadcast("b1", "host")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	for i, to := range []string{"u1", "u2", "u1", "u1"} {
		msg := &live.SignalMessage{SessionID: "b1", Type: live.SignalCandidate, From: "host", To: to}
		if err := s.AppendSignal(ctx, msg); err != nil {
			t.Fatalf("AppendSignal(%d) error = %v", i, err)
		}
		if msg.Seq == 0 || msg.Timestamp.IsZero() {
			t.Fatalf("AppendSignal(%d) left seq/timestamp unset: %+v", i, msg)
		}
	}

	got, err := s.SignalsFor(ctx, "b1", "u1", 0)
	if err != nil {
		t.Fatalf("SignalsFor() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("SignalsFor(u1) returned %d messages, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Seq <= got[i-1].Seq {
			t.Fatalf("sequence not increasing: %v", got)
		}
	}

	tail, err := s.SignalsFor(ctx, "b1", "u1", got[0].Seq)
	if err != nil {
		t.Fatalf("SignalsFor(afterSeq) error = %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("SignalsFor(afterSeq) returned %d messages, want 2", len(tail))
	}
}

func TestActiveAndIncomingLookups(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	callSess := &live.Session{
		ID:           "c1",
		HostID:       "caller",
		Type:         live.TypeCallAudio,
		Participants: []string{"caller", "callee"},
		Status:       live.StatusActive,
		StartedAt:    now,
		LastActiveAt: now,
	}
	if err := s.CreateSession(ctx, callSess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if got, err := s.ActiveSessionFor(ctx, "callee"); err != nil || got.ID != "c1" {
		t.Fatalf("ActiveSessionFor(callee) = (%v, %v)", got, err)
	}
	if got, err := s.IncomingCallFor(ctx, "callee"); err != nil || got.ID != "c1" {
		t.Fatalf("IncomingCallFor(callee) = (%v, %v)", got, err)
	}
	// The caller has no incoming call; they originated it.
	if _, err := s.IncomingCallFor(ctx, "caller"); !errors.Is(err, live.ErrNotFound) {
		t.Fatalf("IncomingCallFor(caller) = %v, want ErrNotFound", err)
	}
	if _, err := s.ActiveSessionFor(ctx, "nobody"); !errors.Is(err, live.ErrNotFound) {
		t.Fatalf("ActiveSessionFor(nobody) = %v, want ErrNotFound", err)
	}
}

func TestGetSessionReturnsCopy(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	if err := s.CreateSession(ctx, newBroadcast("b1", "host")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	got, _ := s.GetSession(ctx, "b1")
	got.Viewers = append(got.Viewers, "intruder")
	again, _ := s.GetSession(ctx, "b1")
	if len(again.Viewers) != 0 {
		t.Fatalf("store state leaked through returned session: %v", again.Viewers)
	}
}
