// Package social holds the narrow ports to the rest of the platform:
// identity, connection graph, blocklists, and the audit sink. The live
// control plane consumes these interfaces and never reaches further in.
package social

import (
	"context"
	"time"
)

// Profile is the minimal identity projection shown next to sessions.
type Profile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type IdentityDirectory interface {
	Lookup(ctx context.Context, userID string) (Profile, error)
}

// ConnectionGraph answers whether two users are connected (family).
type ConnectionGraph interface {
	Connected(ctx context.Context, a, b string) (bool, error)
}

// Blocklist maps a user to the set of users who have blocked them.
type Blocklist interface {
	BlockersOf(ctx context.Context, userID string) ([]string, error)
}

type AuditEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	ActorID   string    `json:"actor_id"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// AuditSink receives fire-and-forget session lifecycle events. Emission
// failures must never abort the operation that triggered them.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent) error
}
