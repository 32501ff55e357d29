// Package api exposes the reminder engine over HTTP: pairing summaries,
// stored plans, acknowledgment, policy, and device registration.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// Handler serves the v1 API against an Engine.
type Handler struct {
	engine core.Engine
	clock  core.Clock
}

// NewHandler creates a Handler. clock supplies acknowledgment instants and
// the "now" used to evaluate windows in listings.
func NewHandler(engine core.Engine, clock core.Clock) *Handler {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Handler{engine: engine, clock: clock}
}

// Health handles GET /v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp, err := h.engine.Health(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}

// ListPairings handles GET /v1/pairings: one summary row per tracked key,
// window state evaluated at the current instant.
func (h *Handler) ListPairings(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.engine.Summaries(r.Context(), h.clock.Now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"pairings": summaries,
		"count":    len(summaries),
	})
}

// GetPlan handles GET /v1/pairings/{pairingID}/plan?report_time=...
// The report time is part of the key identity, so it is required.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	pairingID := chi.URLParam(r, "pairingID")
	reportTime, ok := requireReportTime(w, r.URL.Query().Get("report_time"))
	if !ok {
		return
	}

	plan, err := h.engine.Plan(r.Context(), pairingID, reportTime)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, plan)
}

type acknowledgeRequest struct {
	PairingID  string `json:"pairing_id"`
	ReportTime string `json:"report_time"`
}

// Acknowledge handles POST /v1/acknowledge. Idempotent: re-acknowledging
// returns the original acknowledgment instant.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("invalid JSON body", nil))
		return
	}
	if req.PairingID == "" {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("pairing_id is required", nil))
		return
	}
	reportTime, ok := requireReportTime(w, req.ReportTime)
	if !ok {
		return
	}

	result, err := h.engine.Acknowledge(r.Context(), req.PairingID, reportTime, h.clock.Now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// GetPolicy handles GET /v1/policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.engine.Policy(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, policy)
}

// PutPolicy handles PUT /v1/policy: full-document replace, rejected as a
// unit when any threshold is out of order.
func (h *Handler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	var policy core.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("invalid JSON body", nil))
		return
	}
	if err := h.engine.SavePolicy(r.Context(), &policy); err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, policy)
}

type deviceRequest struct {
	Token string `json:"token"`
}

// RegisterDevice handles POST /v1/devices. Re-registering a token refreshes
// its last-seen instant.
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("invalid JSON body", nil))
		return
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("token is required", nil))
		return
	}
	if err := h.engine.RegisterDevice(r.Context(), req.Token); err != nil {
		writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// requireReportTime parses a mandatory RFC 3339 report time, writing the
// error response itself when the value is missing or malformed.
func requireReportTime(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("report_time is required", nil))
		return time.Time{}, false
	}
	ts, err := core.ParseTime(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest,
			core.NewInvalidRequestError("report_time must be RFC 3339",
				map[string]any{"report_time": raw}))
		return time.Time{}, false
	}
	return ts, true
}
