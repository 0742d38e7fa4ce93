package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/runnerr0/dwell/internal/browser"
	"github.com/runnerr0/dwell/internal/ledger"
	"github.com/runnerr0/dwell/internal/logfields"
)

// eventBatch accepts either a single event or {"events": [...]}.
type eventBatch struct {
	browser.Event
	Events []browser.Event `json:"events"`
}

// EventsResponse reports how many events were accepted.
type EventsResponse struct {
	Accepted int `json:"accepted"`
}

// SessionResponse is the current tracking session.
type SessionResponse struct {
	Tracking  bool       `json:"tracking"`
	Domain    string     `json:"domain,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Pending   int        `json:"pending_intervals"`
}

// StatusResponse is the liveness report.
type StatusResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Uptime   string `json:"uptime"`
	Tracking bool   `json:"tracking"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxRequestSize)

	var batch eventBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.Error(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	events := batch.Events
	if events == nil {
		events = []browser.Event{batch.Event}
	}

	// events before a rejected one stay applied
	for i, ev := range events {
		sig, err := s.browser.Apply(ev)
		if err != nil {
			s.logger.Warn("Rejected browser event", logfields.Signal(ev.Type), logfields.Error(err))
			s.Error(w, http.StatusBadRequest, fmt.Sprintf("event %d: %v", i, err))
			return
		}
		if err := s.dispatcher.Dispatch(r.Context(), sig); err != nil {
			s.Error(w, http.StatusServiceUnavailable, fmt.Sprintf("event %d: %v", i, err))
			return
		}
	}

	s.Success(w, http.StatusAccepted, EventsResponse{Accepted: len(events)})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Session()
	resp := SessionResponse{
		Tracking: sess.Tracking(),
		Domain:   sess.Domain,
		Pending:  s.sessions.Pending(),
	}
	if sess.Tracking() {
		started := sess.StartedAt
		resp.StartedAt = &started
	}
	s.Success(w, http.StatusOK, resp)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	days := r.URL.Query()["day"]
	if len(days) == 0 {
		days = []string{ledger.DayKey(s.opts.Clock.Now().In(s.opts.Location))}
	}
	for _, d := range days {
		if _, err := ledger.ParseDayKey(d, s.opts.Location); err != nil {
			s.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	snap, err := s.store.Get(r.Context(), days)
	if err != nil {
		s.logger.Error("Ledger query failed", logfields.Error(err))
		s.Error(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	s.Success(w, http.StatusOK, snap)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.Success(w, http.StatusOK, s.settings.Load())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.Success(w, http.StatusOK, StatusResponse{
		Status:   "running",
		Version:  s.opts.Version,
		Uptime:   s.opts.Clock.Since(s.started).Round(time.Second).String(),
		Tracking: s.sessions.Session().Tracking(),
	})
}
