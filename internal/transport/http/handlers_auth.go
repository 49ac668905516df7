package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	usermodels "aegis/internal/user/models"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"

	"aegis/internal/transport/http/shared"
)

// Accounts is the slice of the user service the auth endpoints need.
type Accounts interface {
	Register(ctx context.Context, email, password, displayName string) (*usermodels.User, error)
	Authenticate(ctx context.Context, email, password string) (*usermodels.User, error)
}

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, expiresIn time.Duration) (string, error)
}

// AuthHandler exposes registration and token issuance. Both routes are
// public; everything else sits behind the tokens minted here.
type AuthHandler struct {
	accounts Accounts
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuthHandler(accounts Accounts, tokens TokenIssuer, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/token", h.HandleToken)
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Premium     bool   `json:"premium"`
}

func toUserResponse(u *usermodels.User) userResponse {
	return userResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Premium:     u.Premium,
	}
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.accounts.Register(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleToken handles POST /auth/token.
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(user.ID, h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to mint access token", "user_id", user.ID, "error", err)
		shared.WriteError(w, derrors.New(derrors.CodeInternal, "failed to issue token"))
		return
	}

	shared.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokenTTL.Seconds()),
	})
}
