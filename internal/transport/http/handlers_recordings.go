package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis/internal/platform/middleware"
	recordingmodels "aegis/internal/recording/models"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"

	"aegis/internal/transport/http/shared"
)

// RecordingArchive is the slice of the recording service the endpoints need.
type RecordingArchive interface {
	Get(ctx context.Context, userID id.UserID, recordingID id.RecordingID) (*recordingmodels.Recording, error)
	List(ctx context.Context, userID id.UserID) ([]*recordingmodels.Recording, error)
	Delete(ctx context.Context, userID id.UserID, recordingID id.RecordingID) error
}

// RecordingsHandler exposes the archived capture artifacts.
type RecordingsHandler struct {
	archive RecordingArchive
}

func NewRecordingsHandler(archive RecordingArchive) *RecordingsHandler {
	return &RecordingsHandler{archive: archive}
}

func (h *RecordingsHandler) Register(r chi.Router) {
	r.Get("/recordings", h.HandleList)
	r.Get("/recordings/{recordingID}/payload", h.HandleDownload)
	r.Delete("/recordings/{recordingID}", h.HandleDelete)
}

type recordingResponse struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id,omitempty"`
	Kind       string    `json:"kind"`
	MimeKind   string    `json:"mime_kind"`
	DurationMS int64     `json:"duration_ms"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRecordingResponse(rec *recordingmodels.Recording) recordingResponse {
	out := recordingResponse{
		ID:         rec.ID.String(),
		Kind:       rec.Kind,
		MimeKind:   rec.MimeKind,
		DurationMS: rec.Duration.Milliseconds(),
		SizeBytes:  rec.SizeBytes,
		CreatedAt:  rec.CreatedAt,
	}
	if rec.IncidentID != nil {
		out.IncidentID = rec.IncidentID.String()
	}
	return out
}

// HandleList handles GET /recordings. Metadata only; payloads are fetched
// one at a time.
func (h *RecordingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	recordings, err := h.archive.List(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]recordingResponse, 0, len(recordings))
	for _, rec := range recordings {
		out = append(out, toRecordingResponse(rec))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"recordings": out})
}

// HandleDownload handles GET /recordings/{recordingID}/payload, streaming the
// raw media bytes with the stored mime type.
func (h *RecordingsHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	recordingID, err := id.ParseRecordingID(chi.URLParam(r, "recordingID"))
	if err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid recording id"))
		return
	}

	rec, err := h.archive.Get(ctx, userID, recordingID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", rec.MimeKind)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Payload)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.ID.String()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Payload)
}

// HandleDelete handles DELETE /recordings/{recordingID}.
func (h *RecordingsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	recordingID, err := id.ParseRecordingID(chi.URLParam(r, "recordingID"))
	if err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid recording id"))
		return
	}

	if err := h.archive.Delete(ctx, userID, recordingID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
