package live

import "time"

// SessionType distinguishes one-to-many broadcasts from two-party calls.
type SessionType string

const (
	TypeBroadcast SessionType = "broadcast"
	TypeCallVideo SessionType = "call_video"
	TypeCallAudio SessionType = "call_audio"
)

// IsCall reports whether the type is a fixed two-participant call.
func (t SessionType) IsCall() bool {
	return t == TypeCallVideo || t == TypeCallAudio
}

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	return t == TypeBroadcast || t == TypeCallVideo || t == TypeCallAudio
}

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// EndedReasonTimeout marks sessions reaped by the staleness sweep.
const EndedReasonTimeout = "timeout"

// Session is the authoritative record of a live broadcast or call.
// Participants are fixed at creation (two for calls, the host alone for
// broadcasts); Viewers and KickedViewers are broadcast-only and must
// stay disjoint. Once Status is ended the membership and privacy fields
// never change again.
type Session struct {
	ID            string      `json:"session_id"`
	HostID        string      `json:"host_id"`
	Type          SessionType `json:"type"`
	Participants  []string    `json:"participants"`
	Viewers       []string    `json:"viewers,omitempty"`
	KickedViewers []string    `json:"kicked_viewers,omitempty"`
	Status        Status      `json:"status"`
	IsPublic      bool        `json:"is_public"`
	StartedAt     time.Time   `json:"started_at"`
	EndedAt       *time.Time  `json:"ended_at,omitempty"`
	LastActiveAt  time.Time   `json:"last_active_at"`
	EndedReason   string      `json:"ended_reason,omitempty"`
}

func (s *Session) IsParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func (s *Session) IsViewer(userID string) bool {
	for _, v := range s.Viewers {
		if v == userID {
			return true
		}
	}
	return false
}

func (s *Session) IsKicked(userID string) bool {
	for _, k := range s.KickedViewers {
		if k == userID {
			return true
		}
	}
	return false
}

// LastActivity resolves the timestamp the staleness sweep compares
// against: the last heartbeat, falling back to the session start.
func (s *Session) LastActivity() time.Time {
	if !s.LastActiveAt.IsZero() {
		return s.LastActiveAt
	}
	return s.StartedAt
}

// Clone returns a deep copy so callers never alias store-owned slices.
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = append([]string(nil), s.Participants...)
	c.Viewers = append([]string(nil), s.Viewers...)
	c.KickedViewers = append([]string(nil), s.KickedViewers...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
