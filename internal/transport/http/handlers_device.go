package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/location"
	"aegis/internal/platform/middleware"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"

	"aegis/internal/transport/http/shared"
)

// maxChunkBytes bounds one media upload. One slice a second at typical opus
// bitrates is a few KB; 1 MB leaves room for video slices.
const maxChunkBytes = 1 << 20

// DeviceGateway ingests sensor data pushed by the client.
type DeviceGateway interface {
	ReportFix(ctx context.Context, userID id.UserID, pos location.Position) error
	IngestChunk(ctx context.Context, userID id.UserID, data []byte) error
}

// DeviceHandler exposes the device push endpoints. The mobile client reports
// location fixes continuously and uploads media slices while a capture runs.
type DeviceHandler struct {
	gateway DeviceGateway
}

func NewDeviceHandler(gateway DeviceGateway) *DeviceHandler {
	return &DeviceHandler{gateway: gateway}
}

func (h *DeviceHandler) Register(r chi.Router) {
	r.Post("/device/location", h.HandleReportFix)
	r.Post("/device/media", h.HandleUploadChunk)
}

// HandleReportFix handles POST /device/location.
func (h *DeviceHandler) HandleReportFix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	var pos location.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.gateway.ReportFix(ctx, userID, pos); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleUploadChunk handles POST /device/media. The body is one raw encoded
// media slice.
func (h *DeviceHandler) HandleUploadChunk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChunkBytes))
	if err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "chunk too large or unreadable"))
		return
	}

	if err := h.gateway.IngestChunk(ctx, userID, data); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
