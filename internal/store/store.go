package store

import (
	"context"
	"strings"

	"github.com/alexwynter/wavelength/internal/live"
)

// SessionStore is the authoritative registry of session records.
// Mutations are independent field/set updates, not whole-document
// transactions; a kick always wins over a concurrent join, and ended
// sessions refuse further membership or privacy mutation.
type SessionStore interface {
	CreateSession(ctx context.Context, s *live.Session) error
	GetSession(ctx context.Context, id string) (*live.Session, error)

	// AddViewer unions userID into the viewer set. It fails with
	// live.ErrAlreadyKicked for kicked viewers and live.ErrNotFound for
	// missing or ended sessions; re-adding an existing viewer is a no-op.
	AddViewer(ctx context.Context, id, userID string) error

	// KickViewer moves viewerID from viewers to kickedViewers.
	// Idempotent; kicked membership is permanent for the session.
	KickViewer(ctx context.Context, id, viewerID string) error

	SetPrivacy(ctx context.Context, id string, isPublic bool) error
	TouchSession(ctx context.Context, id string) error

	// EndSession marks the session ended. The returned bool is false
	// when the session had already ended (the call still succeeds).
	EndSession(ctx context.Context, id, reason string) (bool, error)

	ListActiveBroadcasts(ctx context.Context) ([]*live.Session, error)
	ActiveSessionFor(ctx context.Context, userID string) (*live.Session, error)
	IncomingCallFor(ctx context.Context, userID string) (*live.Session, error)
}

// SignalRelay is the per-session, per-recipient append-only mailbox.
// Messages are never mutated or deleted; ordering is FIFO per recipient.
type SignalRelay interface {
	// AppendSignal assigns msg.Seq and msg.Timestamp and persists it.
	AppendSignal(ctx context.Context, msg *live.SignalMessage) error

	// SignalsFor returns the messages addressed to recipientID with
	// Seq > afterSeq, in append order.
	SignalsFor(ctx context.Context, sessionID, recipientID string, afterSeq int64) ([]live.SignalMessage, error)
}

// Store combines the session registry and the signal mailbox behind one
// backend.
type Store interface {
	SessionStore
	SignalRelay
	Close() error
}

// New creates a postgres-backed store when configured, otherwise in-memory.
func New(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}
