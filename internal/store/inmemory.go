package store

import (
	"context"
	"sync"
	"time"

	"github.com/alexwynter/wavelength/internal/live"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*live.Session
	signals  map[string][]live.SignalMessage
	lastSeq  map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*live.Session),
		signals:  make(map[string][]live.SignalMessage),
		lastSeq:  make(map[string]int64),
	}
}

func (s *InMemoryStore) CreateSession(_ context.Context, sess *live.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, id string) (*live.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, live.ErrNotFound
	}
	return sess.Clone(), nil
}

// active looks up a session that may still be mutated. Callers hold s.mu.
func (s *InMemoryStore) active(id string) (*live.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, live.ErrNotFound
	}
	if sess.Status != live.StatusActive {
		// Ended sessions are immutable and invisible to mutators.
		return nil, live.ErrNotFound
	}
	return sess, nil
}

func (s *InMemoryStore) AddViewer(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.active(id)
	if err != nil {
		return err
	}
	// The kicked check and the viewer append share one critical section,
	// so a kick landing first always wins over the join.
	if sess.IsKicked(userID) {
		return live.ErrAlreadyKicked
	}
	if sess.IsViewer(userID) {
		return nil
	}
	sess.Viewers = append(sess.Viewers, userID)
	return nil
}

func (s *InMemoryStore) KickViewer(_ context.Context, id, viewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.active(id)
	if err != nil {
		return err
	}
	for i, v := range sess.Viewers {
		if v == viewerID {
			sess.Viewers = append(sess.Viewers[:i], sess.Viewers[i+1:]...)
			break
		}
	}
	if !sess.IsKicked(viewerID) {
		sess.KickedViewers = append(sess.KickedViewers, viewerID)
	}
	return nil
}

func (s *InMemoryStore) SetPrivacy(_ context.Context, id string, isPublic bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.active(id)
	if err != nil {
		return err
	}
	sess.IsPublic = isPublic
	return nil
}

func (s *InMemoryStore) TouchSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.active(id)
	if err != nil {
		return err
	}
	sess.LastActiveAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) EndSession(_ context.Context, id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false, live.ErrNotFound
	}
	if sess.Status == live.StatusEnded {
		return false, nil
	}
	now := time.Now().UTC()
	sess.Status = live.StatusEnded
	sess.EndedAt = &now
	sess.EndedReason = reason
	return true, nil
}

func (s *InMemoryStore) ListActiveBroadcasts(_ context.Context) ([]*live.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*live.Session
	for _, sess := range s.sessions {
		if sess.Status == live.StatusActive && sess.Type == live.TypeBroadcast {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) ActiveSessionFor(_ context.Context, userID string) (*live.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.Status == live.StatusActive && sess.IsParticipant(userID) {
			return sess.Clone(), nil
		}
	}
	return nil, live.ErrNotFound
}

func (s *InMemoryStore) IncomingCallFor(_ context.Context, userID string) (*live.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.Status == live.StatusActive && sess.Type.IsCall() &&
			sess.IsParticipant(userID) && sess.HostID != userID {
			return sess.Clone(), nil
		}
	}
	return nil, live.ErrNotFound
}

func (s *InMemoryStore) AppendSignal(_ context.Context, msg *live.SignalMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[msg.SessionID]; !ok {
		return live.ErrNotFound
	}
	s.lastSeq[msg.SessionID]++
	msg.Seq = s.lastSeq[msg.SessionID]
	msg.Timestamp = time.Now().UTC()
	s.signals[msg.SessionID] = append(s.signals[msg.SessionID], *msg)
	return nil
}

func (s *InMemoryStore) SignalsFor(_ context.Context, sessionID, recipientID string, afterSeq int64) ([]live.SignalMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []live.SignalMessage
	for _, m := range s.signals[sessionID] {
		if m.To == recipientID && m.Seq > afterSeq {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
