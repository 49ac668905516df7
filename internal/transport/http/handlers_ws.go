package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/platform/middleware"
	"aegis/internal/realtime"
	id "aegis/pkg/domain"
)

// WSHandler upgrades authenticated clients onto the realtime incident stream.
type WSHandler struct {
	hub    *realtime.Hub
	logger *slog.Logger
}

func NewWSHandler(hub *realtime.Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

func (h *WSHandler) Register(r chi.Router) {
	r.Get("/ws", h.HandleSubscribe)
}

// HandleSubscribe handles GET /ws. The upgrade response is written by the
// websocket library, so errors after the handshake only get logged.
func (h *WSHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	userID := id.UserID(middleware.GetUserID(r.Context()))
	if err := h.hub.ServeWS(w, r, userID); err != nil {
		h.logger.WarnContext(r.Context(), "websocket subscribe failed",
			"user_id", userID,
			"error", err,
		)
	}
}
