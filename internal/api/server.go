// Package api exposes the time-picker engine over HTTP: one session
// per open widget, driven by selection events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lessonbook/internal/metrics"
	"lessonbook/internal/selection"
	"lessonbook/internal/widget"
)

// SessionOpener creates a widget session wired to its collaborators.
type SessionOpener func(ctx context.Context, instructor widget.Instructor, service widget.Service, initial *selection.Initial) *widget.Session

// SessionStore keeps open sessions and evicts the abandoned ones.
type SessionStore struct {
	sessions map[string]*widget.Session
	mu       sync.RWMutex
	ttl      time.Duration
}

// NewSessionStore creates a store with the given idle TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*widget.Session),
		ttl:      ttl,
	}
}

// Put registers a session.
func (ss *SessionStore) Put(s *widget.Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[s.ID] = s
}

// Get returns a session by ID.
func (ss *SessionStore) Get(id string) *widget.Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[id]
}

// Delete closes and removes a session.
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if s, ok := ss.sessions[id]; ok {
		s.Close()
		delete(ss.sessions, id)
	}
}

// Cleanup closes sessions idle past the TTL. Returns how many were
// removed.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, s := range ss.sessions {
		if time.Since(s.LastActive()) > ss.ttl {
			s.Close()
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}

// CloseAll closes every session, for shutdown.
func (ss *SessionStore) CloseAll() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for id, s := range ss.sessions {
		s.Close()
		delete(ss.sessions, id)
	}
}

// HTTPServer serves the session API.
type HTTPServer struct {
	store  *SessionStore
	opener SessionOpener
	logger *zerolog.Logger
}

// NewHTTPServer wires the API over a store and an opener.
func NewHTTPServer(store *SessionStore, opener SessionOpener, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{store: store, opener: opener, logger: logger}
}

// Routes builds the HTTP mux.
func (s *HTTPServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sessions", s.handleOpenSession)
	mux.HandleFunc("/api/v1/sessions/", s.handleSession)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// OpenSessionRequest opens a widget session.
type OpenSessionRequest struct {
	Instructor widget.Instructor `json:"instructor"`
	Service    widget.Service    `json:"service"`
	Initial    *struct {
		Date     string `json:"date"`
		Time     string `json:"time"`
		Duration int    `json:"duration"`
	} `json:"initial,omitempty"`
}

// SessionResponse is the envelope for session state.
type SessionResponse struct {
	SessionID string      `json:"session_id"`
	View      widget.View `json:"view"`
	Accepted  *bool       `json:"accepted,omitempty"`
}

// handleOpenSession opens a session.
// POST /api/v1/sessions
func (s *HTTPServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("open_session")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Instructor.ID == "" || req.Service.ID == "" {
		writeError(w, http.StatusBadRequest, "instructor.id and service.id are required")
		return
	}
	if len(req.Service.Durations) == 0 {
		writeError(w, http.StatusBadRequest, "service.durations must not be empty")
		return
	}

	var initial *selection.Initial
	if req.Initial != nil {
		initial = &selection.Initial{
			Date:     req.Initial.Date,
			Time:     req.Initial.Time,
			Duration: req.Initial.Duration,
		}
	}

	session := s.opener(r.Context(), req.Instructor, req.Service, initial)
	s.store.Put(session)

	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: session.ID, View: session.View()})
}

// handleSession dispatches /api/v1/sessions/{id}[/action].
func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	session := s.store.Get(id)
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		s.handleSessionState(w, r, session)
	case "date":
		s.handleSetDate(w, r, session)
	case "time":
		s.handleSetTime(w, r, session)
	case "duration":
		s.handleSetDuration(w, r, session)
	case "confirm":
		s.handleConfirm(w, r, session)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

// handleSessionState returns or closes a session.
// GET|DELETE /api/v1/sessions/{id}
func (s *HTTPServer) handleSessionState(w http.ResponseWriter, r *http.Request, session *widget.Session) {
	switch r.Method {
	case http.MethodGet:
		metrics.IncHTTP("session_state")
		writeJSON(w, http.StatusOK, SessionResponse{SessionID: session.ID, View: session.View()})
	case http.MethodDelete:
		metrics.IncHTTP("close_session")
		s.store.Delete(session.ID)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSetDate applies a date selection.
// POST /api/v1/sessions/{id}/date
func (s *HTTPServer) handleSetDate(w http.ResponseWriter, r *http.Request, session *widget.Session) {
	metrics.IncHTTP("set_date")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req struct {
		Date   string `json:"date"`
		Reason string `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	reason := selection.ReasonUser
	if req.Reason == string(selection.ReasonJump) {
		reason = selection.ReasonJump
	}

	view := session.SetDate(req.Date, reason)
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: session.ID, View: view})
}

// handleSetTime applies a time selection.
// POST /api/v1/sessions/{id}/time
func (s *HTTPServer) handleSetTime(w http.ResponseWriter, r *http.Request, session *widget.Session) {
	metrics.IncHTTP("set_time")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req struct {
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	view, ok := session.SetTime(req.Time)
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: session.ID, View: view, Accepted: &ok})
}

// handleSetDuration applies a duration selection.
// POST /api/v1/sessions/{id}/duration
func (s *HTTPServer) handleSetDuration(w http.ResponseWriter, r *http.Request, session *widget.Session) {
	metrics.IncHTTP("set_duration")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req struct {
		Duration int `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	view, ok := session.SetDuration(req.Duration)
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: session.ID, View: view, Accepted: &ok})
}

// ConfirmResponse reports the confirm outcome. A price floor
// violation is a blocking warning, not a selection change.
type ConfirmResponse struct {
	Intent     *widget.BookingIntent `json:"intent,omitempty"`
	FloorCents int64                 `json:"floor_cents,omitempty"`
	BaseCents  int64                 `json:"base_cents,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// handleConfirm finalizes the selection.
// POST /api/v1/sessions/{id}/confirm
func (s *HTTPServer) handleConfirm(w http.ResponseWriter, r *http.Request, session *widget.Session) {
	metrics.IncHTTP("confirm")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	intent, err := session.Confirm(r.Context())
	if err != nil {
		var floorErr *widget.PriceFloorError
		switch {
		case errors.As(err, &floorErr):
			writeJSON(w, http.StatusUnprocessableEntity, ConfirmResponse{
				FloorCents: floorErr.Violation.FloorCents,
				BaseCents:  floorErr.Violation.BaseCents,
				Error:      "price below floor",
			})
		case errors.Is(err, widget.ErrIncompleteSelection):
			writeError(w, http.StatusConflict, "selection incomplete")
		default:
			s.logger.Error().Err(err).Str("session_id", session.ID).Msg("confirm failed")
			writeError(w, http.StatusInternalServerError, "confirm failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, ConfirmResponse{Intent: intent})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
