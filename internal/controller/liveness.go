package controller

import (
	"context"
	"log"
	"time"

	"github.com/alexwynter/wavelength/internal/live"
)

// ListActiveBroadcasts returns discoverable broadcasts and doubles as
// the liveness sweep: there is no background reaper, so staleness is
// detected whenever the listing is read. Broadcasts whose last
// heartbeat is older than the stale threshold are excluded from the
// result and ended with a timeout reason; that write-back is
// best-effort and never blocks or fails the read. Calls are never
// swept.
func (c *Controller) ListActiveBroadcasts(ctx context.Context) ([]*live.Session, error) {
	sessions, err := c.store.ListActiveBroadcasts(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]*live.Session, 0, len(sessions))
	for _, s := range sessions {
		if now.Sub(s.LastActivity()) > c.staleAfter {
			c.reapStale(ctx, s)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Controller) reapStale(ctx context.Context, s *live.Session) {
	endedNow, err := c.store.EndSession(ctx, s.ID, live.EndedReasonTimeout)
	if err != nil {
		log.Printf("stale sweep: failed to end session %s: %v", s.ID, err)
		return
	}
	if !endedNow {
		return
	}
	c.metrics.ActiveSessions.Dec()
	c.metrics.SessionEvents.WithLabelValues("timeout").Inc()
	c.metrics.ReapedBroadcasts.Inc()
	c.emitAudit("session_ended", s.ID, s.HostID, live.EndedReasonTimeout)
}
