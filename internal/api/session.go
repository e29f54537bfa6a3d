package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"fraatlas/pkg/filter"
)

// Session is the exploration session driven by the API.
type Session interface {
	Snapshot() filter.Snapshot
	SelectState(ctx context.Context, state string) error
	SelectDistrict(ctx context.Context, district string) (bool, error)
	Clear(ctx context.Context) error
	Apply(ctx context.Context) error
}

// SessionHandler exposes the selection and apply commands.
type SessionHandler struct {
	session Session
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s Session) *SessionHandler {
	return &SessionHandler{session: s}
}

// SessionResponse is the client view of the session.
type SessionResponse struct {
	Revision        uint64   `json:"revision"`
	Level           string   `json:"level"`
	State           string   `json:"state"`
	District        string   `json:"district"`
	DistrictEnabled bool     `json:"district_enabled"`
	States          []string `json:"states"`
	Districts       []string `json:"districts"`
	HasActive       bool     `json:"has_active"`
	ActiveRevision  uint64   `json:"active_revision"`
	ActiveFeatures  int      `json:"active_features"`
}

// SelectRequest carries the value of a selector.
type SelectRequest struct {
	Value string `json:"value"`
}

func newSessionResponse(s filter.Snapshot) SessionResponse {
	resp := SessionResponse{
		Revision:        s.Revision,
		Level:           s.Selection.Level().String(),
		State:           s.Selection.State,
		District:        s.Selection.District,
		DistrictEnabled: s.CanSelectDistrict(),
		States:          s.States,
		Districts:       s.Districts,
		HasActive:       s.Active != nil,
		ActiveRevision:  s.ActiveRevision,
	}
	if resp.States == nil {
		resp.States = []string{}
	}
	if resp.Districts == nil {
		resp.Districts = []string{}
	}
	if s.Active != nil {
		resp.ActiveFeatures = len(s.Active.Features)
	}
	return resp
}

// HandleSession returns the current session.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, http.StatusOK)
}

// HandleSelectState selects a state. An empty value deselects it.
func (h *SessionHandler) HandleSelectState(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSelect(w, r)
	if !ok {
		return
	}
	if err := h.session.SelectState(r.Context(), req.Value); err != nil {
		writeCommandError(w, "select state", err)
		return
	}
	h.writeSession(w, http.StatusOK)
}

// HandleSelectDistrict selects a district. It answers 409 while no state is selected.
func (h *SessionHandler) HandleSelectDistrict(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSelect(w, r)
	if !ok {
		return
	}
	accepted, err := h.session.SelectDistrict(r.Context(), req.Value)
	if err != nil {
		writeCommandError(w, "select district", err)
		return
	}
	if !accepted {
		h.writeSession(w, http.StatusConflict)
		return
	}
	h.writeSession(w, http.StatusOK)
}

// HandleClear resets the selection.
func (h *SessionHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Clear(r.Context()); err != nil {
		writeCommandError(w, "clear", err)
		return
	}
	h.writeSession(w, http.StatusOK)
}

// HandleApply requests the dataset for the current selection. The dataset
// arrives asynchronously over the map channel.
func (h *SessionHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Apply(r.Context()); err != nil {
		writeCommandError(w, "apply", err)
		return
	}
	h.writeSession(w, http.StatusAccepted)
}

// HandleActive returns the active dataset as GeoJSON, or null before the first load.
func (h *SessionHandler) HandleActive(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	w.Header().Set("Content-Type", "application/geo+json")
	if snap.Active == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	if err := json.NewEncoder(w).Encode(snap.Active); err != nil {
		slog.Error("Failed to encode active dataset", "error", err)
	}
}

func (h *SessionHandler) writeSession(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(newSessionResponse(h.session.Snapshot())); err != nil {
		slog.Error("Failed to encode session response", "error", err)
	}
}

func decodeSelect(w http.ResponseWriter, r *http.Request) (SelectRequest, bool) {
	var req SelectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, false
	}
	req.Value = strings.TrimSpace(req.Value)
	return req, true
}

func writeCommandError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, context.Canceled) {
		// client went away
		return
	}
	slog.Error("Session command failed", "op", op, "error", err)
	http.Error(w, "Session unavailable", http.StatusServiceUnavailable)
}
