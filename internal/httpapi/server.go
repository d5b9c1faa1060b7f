// Package httpapi exposes the session control plane over HTTP: JSON
// endpoints for the lifecycle operations and a websocket feed for the
// per-recipient signal mailbox.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/alexwynter/wavelength/internal/config"
	"github.com/alexwynter/wavelength/internal/controller"
	"github.com/alexwynter/wavelength/internal/live"
	"github.com/alexwynter/wavelength/internal/observability"
)

type Server struct {
	cfg        config.Config
	controller *controller.Controller
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

func New(cfg config.Config, ctrl *controller.Controller, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		controller: ctrl,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleStartSession)
	r.Get("/v1/sessions/active", s.handleGetActiveSession)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)
	r.Post("/v1/sessions/{id}/signal", s.handleSendSignal)
	r.Post("/v1/sessions/{id}/join", s.handleJoin)
	r.Post("/v1/sessions/{id}/kick", s.handleKick)
	r.Post("/v1/sessions/{id}/privacy", s.handleSetPrivacy)
	r.Post("/v1/sessions/{id}/heartbeat", s.handleHeartbeat)
	r.Get("/v1/sessions/{id}/viewers", s.handleListViewers)
	r.Get("/v1/sessions/{id}/signals", s.handleListSignals)
	r.Get("/v1/sessions/{id}/ws", s.handleSessionWS)
	r.Get("/v1/broadcasts", s.handleListBroadcasts)
	r.Get("/v1/calls/incoming", s.handleIncomingCall)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type startSessionRequest struct {
	ActorID      string `json:"actor_id"`
	Type         string `json:"type"`
	TargetUserID string `json:"target_user_id,omitempty"`
	IsPublic     bool   `json:"is_public"`
}

type startSessionResponse struct {
	Session             *live.Session `json:"session"`
	HeartbeatIntervalMS int64         `json:"heartbeat_interval_ms"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id is required")
		return
	}
	typ := live.SessionType(req.Type)
	if !typ.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_request", "unknown session type")
		return
	}
	if typ.IsCall() && strings.TrimSpace(req.TargetUserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "target_user_id is required for calls")
		return
	}
	sess, err := s.controller.StartSession(r.Context(), req.ActorID, typ, req.TargetUserID, req.IsPublic)
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, startSessionResponse{
		Session:             sess,
		HeartbeatIntervalMS: s.cfg.HeartbeatInterval.Milliseconds(),
	})
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func (s *Server) actorAndSession(w http.ResponseWriter, r *http.Request) (actorID, sessionID string, ok bool) {
	sessionID = chi.URLParam(r, "id")
	var req actorRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return "", "", false
	}
	if strings.TrimSpace(req.ActorID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id is required")
		return "", "", false
	}
	return req.ActorID, sessionID, true
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	actorID, sessionID, ok := s.actorAndSession(w, r)
	if !ok {
		return
	}
	if err := s.controller.EndSession(r.Context(), actorID, sessionID); err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ended"})
}

type signalRequest struct {
	ActorID   string `json:"actor_id"`
	Type      string `json:"type"`
	To        string `json:"to"`
	SDP       string `json:"sdp,omitempty"`
	Candidate string `json:"candidate,omitempty"`
}

func (s *Server) handleSendSignal(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req signalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ActorID) == "" || strings.TrimSpace(req.To) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id and to are required")
		return
	}
	typ := live.SignalType(req.Type)
	if !typ.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_request", "unknown signal type")
		return
	}
	// Payloads are relayed verbatim; only the envelope is checked.
	msg, err := s.controller.SendSignal(r.Context(), req.ActorID, sessionID, live.SignalMessage{
		Type:      typ,
		To:        req.To,
		SDP:       req.SDP,
		Candidate: req.Candidate,
	})
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	actorID, sessionID, ok := s.actorAndSession(w, r)
	if !ok {
		return
	}
	if err := s.controller.JoinAsViewer(r.Context(), actorID, sessionID); err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "joined"})
}

type kickRequest struct {
	ActorID  string `json:"actor_id"`
	ViewerID string `json:"viewer_id"`
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req kickRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ActorID) == "" || strings.TrimSpace(req.ViewerID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id and viewer_id are required")
		return
	}
	if err := s.controller.KickViewer(r.Context(), req.ActorID, sessionID, req.ViewerID); err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "kicked"})
}

type privacyRequest struct {
	ActorID  string `json:"actor_id"`
	IsPublic bool   `json:"is_public"`
}

func (s *Server) handleSetPrivacy(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req privacyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ActorID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id is required")
		return
	}
	if err := s.controller.SetPrivacy(r.Context(), req.ActorID, sessionID, req.IsPublic); err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	actorID, sessionID, ok := s.actorAndSession(w, r)
	if !ok {
		return
	}
	if err := s.controller.Heartbeat(r.Context(), actorID, sessionID); err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	actorID := strings.TrimSpace(r.URL.Query().Get("actor_id"))
	if actorID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id is required")
		return
	}
	sess, err := s.controller.GetSession(r.Context(), actorID, sessionID)
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetActiveSession(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	sess, err := s.controller.GetActiveSession(r.Context(), userID)
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleIncomingCall(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	sess, err := s.controller.GetIncomingCall(r.Context(), userID)
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListBroadcasts(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.controller.ListActiveBroadcasts(r.Context())
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"broadcasts": sessions})
}

func (s *Server) handleListViewers(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	actorID := strings.TrimSpace(r.URL.Query().Get("actor_id"))
	if actorID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id is required")
		return
	}
	viewers, err := s.controller.ListViewers(r.Context(), actorID, sessionID)
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"viewers": viewers})
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	actorID := strings.TrimSpace(r.URL.Query().Get("actor_id"))
	if actorID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "actor_id is required")
		return
	}
	var afterSeq int64
	if v := strings.TrimSpace(r.URL.Query().Get("after_seq")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "after_seq must be an integer")
			return
		}
		afterSeq = n
	}
	msgs, err := s.controller.SignalsSince(r.Context(), actorID, sessionID, afterSeq)
	if err != nil {
		respondLiveError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"signals": msgs})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondLiveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, live.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", live.UserMessage(err))
	case errors.Is(err, live.ErrBlocked):
		respondError(w, http.StatusForbidden, "blocked", live.UserMessage(err))
	case errors.Is(err, live.ErrPrivacyRestricted):
		respondError(w, http.StatusForbidden, "privacy_restricted", live.UserMessage(err))
	case errors.Is(err, live.ErrAlreadyKicked):
		respondError(w, http.StatusForbidden, "already_kicked", live.UserMessage(err))
	case errors.Is(err, live.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "unauthorized", live.UserMessage(err))
	case errors.Is(err, live.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", live.UserMessage(err))
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
