package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexwynter/wavelength/internal/live"
	"github.com/alexwynter/wavelength/internal/store"
)

func seedBroadcast(t *testing.T, env *testEnv, id string, heartbeatAge time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	s := &live.Session{
		ID:           id,
		HostID:       "host-" + id,
		Type:         live.TypeBroadcast,
		Participants: []string{"host-" + id},
		Status:       live.StatusActive,
		IsPublic:     true,
		StartedAt:    now.Add(-time.Hour),
		LastActiveAt: now.Add(-heartbeatAge),
	}
	if err := env.store.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("CreateSession(%s) error = %v", id, err)
	}
}

func TestSweepReapsStaleBroadcasts(t *testing.T) {
	env := newTestEnv(30 * time.Second)
	ctx := context.Background()
	seedBroadcast(t, env, "fresh", 10*time.Second)
	seedBroadcast(t, env, "stale", 40*time.Second)

	listed, err := env.ctrl.ListActiveBroadcasts(ctx)
	if err != nil {
		t.Fatalf("ListActiveBroadcasts() error = %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "fresh" {
		t.Fatalf("listing = %v, want only the fresh broadcast", listed)
	}

	reaped, err := env.store.GetSession(ctx, "stale")
	if err != nil {
		t.Fatalf("GetSession(stale) error = %v", err)
	}
	if reaped.Status != live.StatusEnded || reaped.EndedReason != live.EndedReasonTimeout {
		t.Fatalf("stale broadcast = %+v, want ended with timeout reason", reaped)
	}
	kept, _ := env.store.GetSession(ctx, "fresh")
	if kept.Status != live.StatusActive {
		t.Fatalf("fresh broadcast was reaped: %+v", kept)
	}
}

func TestSweepFallsBackToStartedAt(t *testing.T) {
	env := newTestEnv(30 * time.Second)
	ctx := context.Background()
	now := time.Now().UTC()
	s := &live.Session{
		ID:           "no-heartbeat",
		HostID:       "host",
		Type:         live.TypeBroadcast,
		Participants: []string{"host"},
		Status:       live.StatusActive,
		IsPublic:     true,
		StartedAt:    now.Add(-time.Minute),
	}
	if err := env.store.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	listed, err := env.ctrl.ListActiveBroadcasts(ctx)
	if err != nil {
		t.Fatalf("ListActiveBroadcasts() error = %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("listing = %v, want empty", listed)
	}
}

func TestSweepIgnoresCalls(t *testing.T) {
	env := newTestEnv(30 * time.Second)
	ctx := context.Background()
	now := time.Now().UTC()
	s := &live.Session{
		ID:           "old-call",
		HostID:       "carl",
		Type:         live.TypeCallVideo,
		Participants: []string{"carl", "dana"},
		Status:       live.StatusActive,
		StartedAt:    now.Add(-time.Hour),
		LastActiveAt: now.Add(-time.Hour),
	}
	if err := env.store.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := env.ctrl.ListActiveBroadcasts(ctx); err != nil {
		t.Fatalf("ListActiveBroadcasts() error = %v", err)
	}
	got, _ := env.store.GetSession(ctx, "old-call")
	if got.Status != live.StatusActive {
		t.Fatalf("call was swept: %+v", got)
	}
}

// endFailingStore simulates a write-back failure during the sweep.
type endFailingStore struct {
	store.Store
}

func (s *endFailingStore) EndSession(ctx context.Context, id, reason string) (bool, error) {
	if reason == live.EndedReasonTimeout {
		return false, errors.New("write-back refused")
	}
	return s.Store.EndSession(ctx, id, reason)
}

func TestSweepWriteBackFailureDoesNotBlockRead(t *testing.T) {
	env := newTestEnv(30 * time.Second)
	env.ctrl.store = &endFailingStore{Store: env.store}
	ctx := context.Background()
	seedBroadcast(t, env, "fresh", 5*time.Second)
	seedBroadcast(t, env, "stale", 2*time.Minute)

	listed, err := env.ctrl.ListActiveBroadcasts(ctx)
	if err != nil {
		t.Fatalf("ListActiveBroadcasts() error = %v", err)
	}
	// The stale entry still vanishes from discovery even though the
	// write-back failed; it will be retried by a later read.
	if len(listed) != 1 || listed[0].ID != "fresh" {
		t.Fatalf("listing = %v, want only the fresh broadcast", listed)
	}
	got, _ := env.store.GetSession(ctx, "stale")
	if got.Status != live.StatusActive {
		t.Fatalf("stale session ended despite failing write-back: %+v", got)
	}
}
