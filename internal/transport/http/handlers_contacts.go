package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	contactmodels "aegis/internal/contacts/models"
	"aegis/internal/platform/middleware"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"

	"aegis/internal/transport/http/shared"
)

// ContactRoster is the slice of the contacts service the endpoints need.
type ContactRoster interface {
	Add(ctx context.Context, userID id.UserID, req contactmodels.UpsertContactRequest) (*contactmodels.TrustedContact, error)
	Update(ctx context.Context, userID id.UserID, contactID id.ContactID, req contactmodels.UpsertContactRequest) (*contactmodels.TrustedContact, error)
	List(ctx context.Context, userID id.UserID) ([]*contactmodels.TrustedContact, error)
	Remove(ctx context.Context, userID id.UserID, contactID id.ContactID) error
}

// ContactsHandler exposes trusted contact management.
type ContactsHandler struct {
	roster ContactRoster
}

func NewContactsHandler(roster ContactRoster) *ContactsHandler {
	return &ContactsHandler{roster: roster}
}

func (h *ContactsHandler) Register(r chi.Router) {
	r.Get("/contacts", h.HandleList)
	r.Post("/contacts", h.HandleAdd)
	r.Put("/contacts/{contactID}", h.HandleUpdate)
	r.Delete("/contacts/{contactID}", h.HandleRemove)
}

type contactResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	Relationship string `json:"relationship"`
}

func toContactResponse(c *contactmodels.TrustedContact) contactResponse {
	return contactResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Phone:        c.Phone,
		Email:        c.Email,
		Relationship: c.Relationship,
	}
}

// HandleList handles GET /contacts.
func (h *ContactsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	contacts, err := h.roster.List(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, toContactResponse(c))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"contacts": out})
}

// HandleAdd handles POST /contacts.
func (h *ContactsHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	var req contactmodels.UpsertContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	contact, err := h.roster.Add(ctx, userID, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toContactResponse(contact))
}

// HandleUpdate handles PUT /contacts/{contactID}.
func (h *ContactsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	contactID, err := id.ParseContactID(chi.URLParam(r, "contactID"))
	if err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid contact id"))
		return
	}

	var req contactmodels.UpsertContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	contact, err := h.roster.Update(ctx, userID, contactID, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toContactResponse(contact))
}

// HandleRemove handles DELETE /contacts/{contactID}.
func (h *ContactsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := id.UserID(middleware.GetUserID(ctx))

	contactID, err := id.ParseContactID(chi.URLParam(r, "contactID"))
	if err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid contact id"))
		return
	}

	if err := h.roster.Remove(ctx, userID, contactID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
