package peer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/alexwynter/wavelength/internal/live"
)

// Heartbeater refreshes a session's liveness timestamp.
type Heartbeater interface {
	Heartbeat(ctx context.Context, actorID, sessionID string) error
}

// RunHeartbeat drives the client's cooperative heartbeat loop. Liveness
// is client-enforced: a client that stops beating will be reaped by the
// server-side staleness sweep. The loop exits when ctx is done or the
// session is gone.
func RunHeartbeat(ctx context.Context, api Heartbeater, actorID, sessionID string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := api.Heartbeat(ctx, actorID, sessionID)
			if errors.Is(err, live.ErrNotFound) {
				return
			}
			if err != nil {
				log.Printf("heartbeat for session %s: %v", sessionID, err)
			}
		}
	}
}
