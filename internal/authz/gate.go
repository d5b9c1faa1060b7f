// Package authz decides whether an actor may perform an operation on a
// session. Decisions are pure functions of the session snapshot, the
// operation, and the host connection graph; they never mutate state.
package authz

import (
	"context"

	"github.com/alexwynter/wavelength/internal/live"
)

type Operation string

const (
	OpSignal      Operation = "signal"
	OpEnd         Operation = "end"
	OpHeartbeat   Operation = "heartbeat"
	OpJoin        Operation = "join"
	OpKick        Operation = "kick"
	OpSetPrivacy  Operation = "set_privacy"
	OpListViewers Operation = "list_viewers"
	OpRead        Operation = "read"
)

// ConnectionChecker reports whether two users are connected in the
// social graph. Used only for private-broadcast joins.
type ConnectionChecker interface {
	Connected(ctx context.Context, a, b string) (bool, error)
}

type Gate struct {
	graph ConnectionChecker
}

func New(graph ConnectionChecker) *Gate {
	return &Gate{graph: graph}
}

// Authorize evaluates the rules in order. The session may be nil
// (missing); call-initiation blocklist checks happen before a session
// exists and live with the controller instead.
func (g *Gate) Authorize(ctx context.Context, actorID string, op Operation, s *live.Session) error {
	if s == nil {
		return live.ErrNotFound
	}
	if s.Status != live.StatusActive {
		// Ending an already-ended session stays legal for participants
		// (the controller treats it as a silent no-op). Everything else
		// sees a reaped or ended session as gone.
		if op == OpEnd && s.IsParticipant(actorID) {
			return nil
		}
		return live.ErrNotFound
	}

	// Participants may always signal, end, heartbeat, and read.
	if s.IsParticipant(actorID) {
		switch op {
		case OpSignal, OpEnd, OpHeartbeat, OpRead:
			return nil
		}
	}

	// Existing, non-kicked viewers may signal and read (broadcast only).
	if s.Type == live.TypeBroadcast && s.IsViewer(actorID) && !s.IsKicked(actorID) {
		switch op {
		case OpSignal, OpRead:
			return nil
		}
	}

	// A kick evicts the viewer but leaves its mailbox readable; the
	// kicked notice itself is delivered through that mailbox.
	if s.Type == live.TypeBroadcast && s.IsKicked(actorID) && op == OpRead {
		return nil
	}

	switch op {
	case OpJoin:
		return g.authorizeJoin(ctx, actorID, s)
	case OpKick, OpSetPrivacy, OpListViewers:
		// Host-only, never delegated.
		if actorID == s.HostID {
			return nil
		}
		return live.ErrUnauthorized
	}
	return live.ErrUnauthorized
}

func (g *Gate) authorizeJoin(ctx context.Context, actorID string, s *live.Session) error {
	if s.Type != live.TypeBroadcast {
		return live.ErrUnauthorized
	}
	// A kick is sticky: it outranks any later privacy change.
	if s.IsKicked(actorID) {
		return live.ErrAlreadyKicked
	}
	if s.IsPublic || actorID == s.HostID {
		return nil
	}
	connected, err := g.graph.Connected(ctx, s.HostID, actorID)
	if err != nil {
		return err
	}
	if connected {
		return nil
	}
	return live.ErrPrivacyRestricted
}
