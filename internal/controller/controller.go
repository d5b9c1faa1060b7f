// Package controller orchestrates session lifecycle, authorization, and
// signal relay on top of the store and the platform ports.
package controller

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/alexwynter/wavelength/internal/authz"
	"github.com/alexwynter/wavelength/internal/live"
	"github.com/alexwynter/wavelength/internal/observability"
	"github.com/alexwynter/wavelength/internal/social"
	"github.com/alexwynter/wavelength/internal/store"
)

const auditTimeout = 5 * time.Second

type Controller struct {
	store      store.Store
	gate       *authz.Gate
	directory  social.IdentityDirectory
	blocklist  social.Blocklist
	audit      social.AuditSink
	metrics    *observability.Metrics
	staleAfter time.Duration
	hub        *signalHub
}

func New(
	st store.Store,
	gate *authz.Gate,
	directory social.IdentityDirectory,
	blocklist social.Blocklist,
	audit social.AuditSink,
	metrics *observability.Metrics,
	staleAfter time.Duration,
) *Controller {
	return &Controller{
		store:      st,
		gate:       gate,
		directory:  directory,
		blocklist:  blocklist,
		audit:      audit,
		metrics:    metrics,
		staleAfter: staleAfter,
		hub:        newSignalHub(),
	}
}

// StartSession creates a broadcast or call. Calls require a target user
// and fail with live.ErrBlocked before any record is created when the
// target has blocked the caller.
func (c *Controller) StartSession(ctx context.Context, actorID string, typ live.SessionType, targetUserID string, isPublic bool) (*live.Session, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown session type %q", typ)
	}
	now := time.Now().UTC()
	s := &live.Session{
		ID:           uuid.NewString(),
		HostID:       actorID,
		Type:         typ,
		Status:       live.StatusActive,
		StartedAt:    now,
		LastActiveAt: now,
	}
	if typ.IsCall() {
		if targetUserID == "" {
			return nil, fmt.Errorf("call requires a target user")
		}
		blockers, err := c.blocklist.BlockersOf(ctx, actorID)
		if err != nil {
			return nil, fmt.Errorf("blocklist lookup: %w", err)
		}
		for _, b := range blockers {
			if b == targetUserID {
				return nil, live.ErrBlocked
			}
		}
		s.Participants = []string{actorID, targetUserID}
	} else {
		s.Participants = []string{actorID}
		s.IsPublic = isPublic
	}
	if err := c.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	c.metrics.ActiveSessions.Inc()
	c.metrics.SessionEvents.WithLabelValues("started").Inc()
	c.emitAudit("session_started", s.ID, actorID, string(typ))
	return s, nil
}

// EndSession is idempotent: ending an already-ended session succeeds
// silently.
func (c *Controller) EndSession(ctx context.Context, actorID, sessionID string) error {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpEnd, s); err != nil {
		return err
	}
	endedNow, err := c.store.EndSession(ctx, sessionID, "")
	if err != nil {
		return err
	}
	if endedNow {
		c.metrics.ActiveSessions.Dec()
		c.metrics.SessionEvents.WithLabelValues("ended").Inc()
		c.emitAudit("session_ended", sessionID, actorID, "")
	}
	return nil
}

// SendSignal relays a signaling message. Payloads are not validated;
// malformed SDP or candidates surface only as client-local negotiation
// failures.
func (c *Controller) SendSignal(ctx context.Context, actorID, sessionID string, msg live.SignalMessage) (*live.SignalMessage, error) {
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown signal type %q", msg.Type)
	}
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpSignal, s); err != nil {
		return nil, err
	}
	// Signals only travel between members of the session.
	if !s.IsParticipant(msg.To) && !(s.Type == live.TypeBroadcast && s.IsViewer(msg.To)) {
		return nil, fmt.Errorf("recipient %s: %w", msg.To, live.ErrUnauthorized)
	}
	msg.SessionID = sessionID
	msg.From = actorID
	if err := c.store.AppendSignal(ctx, &msg); err != nil {
		return nil, err
	}
	c.hub.publish(msg)
	c.metrics.SignalsRelayed.WithLabelValues(string(msg.Type)).Inc()
	return &msg, nil
}

func (c *Controller) JoinAsViewer(ctx context.Context, actorID, sessionID string) error {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpJoin, s); err != nil {
		return err
	}
	// The store re-checks the kick list inside its write, so a kick
	// racing this join still wins.
	if err := c.store.AddViewer(ctx, sessionID, actorID); err != nil {
		return err
	}
	c.metrics.SessionEvents.WithLabelValues("viewer_joined").Inc()
	return nil
}

// KickViewer permanently bans viewerID from the session and notifies it
// with a kicked signal. Re-kicking an already-kicked viewer is a no-op.
func (c *Controller) KickViewer(ctx context.Context, actorID, sessionID, viewerID string) error {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpKick, s); err != nil {
		return err
	}
	if s.IsKicked(viewerID) {
		return nil
	}
	if err := c.store.KickViewer(ctx, sessionID, viewerID); err != nil {
		return err
	}
	kick := live.SignalMessage{
		SessionID: sessionID,
		Type:      live.SignalKicked,
		From:      actorID,
		To:        viewerID,
	}
	if err := c.store.AppendSignal(ctx, &kick); err != nil {
		return err
	}
	c.hub.publish(kick)
	c.metrics.SessionEvents.WithLabelValues("viewer_kicked").Inc()
	return nil
}

// SetPrivacy affects only future joins; current viewers stay.
func (c *Controller) SetPrivacy(ctx context.Context, actorID, sessionID string, isPublic bool) error {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpSetPrivacy, s); err != nil {
		return err
	}
	if err := c.store.SetPrivacy(ctx, sessionID, isPublic); err != nil {
		return err
	}
	c.metrics.SessionEvents.WithLabelValues("privacy_changed").Inc()
	return nil
}

func (c *Controller) Heartbeat(ctx context.Context, actorID, sessionID string) error {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpHeartbeat, s); err != nil {
		return err
	}
	return c.store.TouchSession(ctx, sessionID)
}

func (c *Controller) GetSession(ctx context.Context, actorID, sessionID string) (*live.Session, error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpRead, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Controller) GetActiveSession(ctx context.Context, userID string) (*live.Session, error) {
	return c.store.ActiveSessionFor(ctx, userID)
}

func (c *Controller) GetIncomingCall(ctx context.Context, userID string) (*live.Session, error) {
	return c.store.IncomingCallFor(ctx, userID)
}

// ListViewers is host-only and decorates viewer IDs with identity
// profiles. Directory failures degrade to bare IDs.
func (c *Controller) ListViewers(ctx context.Context, actorID, sessionID string) ([]social.Profile, error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpListViewers, s); err != nil {
		return nil, err
	}
	out := make([]social.Profile, 0, len(s.Viewers))
	for _, v := range s.Viewers {
		p, err := c.directory.Lookup(ctx, v)
		if err != nil {
			p = social.Profile{UserID: v, DisplayName: v}
		}
		out = append(out, p)
	}
	return out, nil
}

// SignalsSince returns the actor's mailbox for the session, FIFO,
// starting after afterSeq.
func (c *Controller) SignalsSince(ctx context.Context, actorID, sessionID string, afterSeq int64) ([]live.SignalMessage, error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpRead, s); err != nil {
		return nil, err
	}
	return c.store.SignalsFor(ctx, sessionID, actorID, afterSeq)
}

// StreamSignals subscribes the actor to its live mailbox. The returned
// backlog holds everything already relayed; the channel carries
// subsequent appends (it may repeat a backlog tail entry, so consumers
// dedup by Seq). cancel must be called when done.
func (c *Controller) StreamSignals(ctx context.Context, actorID, sessionID string) ([]live.SignalMessage, <-chan live.SignalMessage, func(), error) {
	s, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := c.gate.Authorize(ctx, actorID, authz.OpRead, s); err != nil {
		return nil, nil, nil, err
	}
	ch, cancel := c.hub.subscribe(sessionID, actorID)
	backlog, err := c.store.SignalsFor(ctx, sessionID, actorID, 0)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return backlog, ch, cancel, nil
}

// emitAudit fires an audit event without blocking or failing the
// triggering operation.
func (c *Controller) emitAudit(eventType, sessionID, actorID, detail string) {
	event := social.AuditEvent{
		Type:      eventType,
		SessionID: sessionID,
		ActorID:   actorID,
		Detail:    detail,
		At:        time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := c.audit.Emit(ctx, event); err != nil {
			log.Printf("audit emit failed for %s %s: %v", event.Type, event.SessionID, err)
		}
	}()
}
