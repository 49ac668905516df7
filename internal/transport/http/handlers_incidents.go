package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	incidentmodels "aegis/internal/incident/models"
	"aegis/internal/platform/middleware"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"

	"aegis/internal/transport/http/shared"
)

// IncidentLog is the slice of the incident service the endpoints need.
type IncidentLog interface {
	List(ctx context.Context, userID id.UserID) ([]*incidentmodels.Incident, error)
	Remove(ctx context.Context, userID id.UserID, incidentID id.IncidentID) error
}

// IncidentsHandler exposes the incident history.
type IncidentsHandler struct {
	incidents IncidentLog
}

func NewIncidentsHandler(incidents IncidentLog) *IncidentsHandler {
	return &IncidentsHandler{incidents: incidents}
}

func (h *IncidentsHandler) Register(r chi.Router) {
	r.Get("/incidents", h.HandleList)
	r.Delete("/incidents/{incidentID}", h.HandleRemove)
}

type geoPointResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type incidentResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	Location     *geoPointResponse `json:"location,omitempty"`
	RecordingRef string            `json:"recording_ref,omitempty"`
	Device       string            `json:"device,omitempty"`
}

func toIncidentResponse(inc *incidentmodels.Incident) incidentResponse {
	out := incidentResponse{
		ID:        inc.ID.String(),
		Status:    string(inc.Status),
		StartTime: inc.StartTime,
		EndTime:   inc.EndTime,
		Device:    inc.Device,
	}
	if inc.Location != nil {
		out.Location = &geoPointResponse{Lat: inc.Location.Lat, Lon: inc.Location.Lon}
	}
	if inc.RecordingRef != nil {
		out.RecordingRef = inc.RecordingRef.String()
	}
	return out
}

// HandleList handles GET /incidents. Most recent first.
func (h *IncidentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	incidents, err := h.incidents.List(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]incidentResponse, 0, len(incidents))
	for _, inc := range incidents {
		out = append(out, toIncidentResponse(inc))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"incidents": out})
}

// HandleRemove handles DELETE /incidents/{incidentID}.
func (h *IncidentsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	incidentID, err := id.ParseIncidentID(chi.URLParam(r, "incidentID"))
	if err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid incident id"))
		return
	}

	if err := h.incidents.Remove(ctx, userID, incidentID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
