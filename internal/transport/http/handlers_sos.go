package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis/internal/capture"
	"aegis/internal/notify"
	"aegis/internal/platform/middleware"
	"aegis/internal/sos"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"

	"aegis/internal/transport/http/shared"
)

// SOSService is the orchestrator surface the endpoints need.
type SOSService interface {
	RaiseSOS(ctx context.Context, userID id.UserID, opts sos.RaiseOptions) (*sos.RaiseResult, error)
	StopSOS(ctx context.Context, userID id.UserID) (*sos.StopResult, error)
	Status(userID id.UserID) sos.State
}

// SOSHandler exposes the emergency trigger. Raising and stopping are the two
// writes; status is a cheap poll for clients reconnecting mid-episode.
type SOSHandler struct {
	service SOSService
}

func NewSOSHandler(service SOSService) *SOSHandler {
	return &SOSHandler{service: service}
}

func (h *SOSHandler) Register(r chi.Router) {
	r.Post("/sos", h.HandleRaise)
	r.Delete("/sos", h.HandleStop)
	r.Get("/sos/status", h.HandleStatus)
}

type raiseRequest struct {
	Kind  string `json:"kind"`
	Notes string `json:"notes"`
}

type alertSummaryResponse struct {
	AlertID          string `json:"alert_id"`
	TotalContacts    int    `json:"total_contacts"`
	SuccessfulAlerts int    `json:"successful_alerts"`
}

func toAlertSummaryResponse(s *notify.AlertSummary) alertSummaryResponse {
	return alertSummaryResponse{
		AlertID:          s.AlertID.String(),
		TotalContacts:    s.TotalContacts,
		SuccessfulAlerts: s.SuccessfulAlerts,
	}
}

type raiseResponse struct {
	IncidentID  string               `json:"incident_id"`
	RecordingID string               `json:"recording_id"`
	State       string               `json:"state"`
	HasLocation bool                 `json:"has_location"`
	Alerts      alertSummaryResponse `json:"alerts"`
}

// HandleRaise handles POST /sos. An empty body is a valid trigger: a panic
// button cannot be asked to fill in a form first.
func (h *SOSHandler) HandleRaise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	var req raiseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.service.RaiseSOS(ctx, userID, sos.RaiseOptions{
		Kind:   capture.Kind(req.Kind),
		Notes:  req.Notes,
		Device: middleware.GetDevice(ctx),
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, raiseResponse{
		IncidentID:  result.Incident.ID.String(),
		RecordingID: result.Recording.String(),
		State:       string(sos.StateRecordingActive),
		HasLocation: result.Location != nil,
		Alerts:      toAlertSummaryResponse(result.Alerts),
	})
}

type stopResponse struct {
	IncidentID string `json:"incident_id"`
	DurationMS int64  `json:"duration_ms"`
	SizeBytes  int64  `json:"size_bytes"`
	Archived   bool   `json:"archived"`
}

// HandleStop handles DELETE /sos.
func (h *SOSHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	result, err := h.service.StopSOS(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, stopResponse{
		IncidentID: result.Incident.ID.String(),
		DurationMS: result.Artifact.Duration.Milliseconds(),
		SizeBytes:  result.Artifact.SizeBytes,
		Archived:   result.Archived,
	})
}

type statusResponse struct {
	State string    `json:"state"`
	AsOf  time.Time `json:"as_of"`
}

// HandleStatus handles GET /sos/status.
func (h *SOSHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID := id.UserID(middleware.GetUserID(r.Context()))
	shared.WriteJSON(w, http.StatusOK, statusResponse{
		State: string(h.service.Status(userID)),
		AsOf:  time.Now().UTC(),
	})
}
