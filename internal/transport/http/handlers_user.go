package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aegis/internal/platform/middleware"
	usermodels "aegis/internal/user/models"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"

	"aegis/internal/transport/http/shared"
)

// Profiles is the slice of the user service the profile endpoints need.
type Profiles interface {
	Get(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	UpdateProfile(ctx context.Context, userID id.UserID, displayName string) (*usermodels.User, error)
}

// UserHandler exposes the authenticated user's own profile.
type UserHandler struct {
	profiles Profiles
}

func NewUserHandler(profiles Profiles) *UserHandler {
	return &UserHandler{profiles: profiles}
}

func (h *UserHandler) Register(r chi.Router) {
	r.Get("/me", h.HandleGet)
	r.Put("/me", h.HandleUpdate)
}

// HandleGet handles GET /me.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	user, err := h.profiles.Get(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// HandleUpdate handles PUT /me.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.profiles.UpdateProfile(ctx, userID, req.DisplayName)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toUserResponse(user))
}
