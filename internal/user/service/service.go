package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"aegis/internal/auth"
	"aegis/internal/user/models"
	"aegis/internal/user/store"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
	"aegis/pkg/email"
	"aegis/pkg/platform/sentinel"
)

const minPasswordLength = 8

// Service manages account profiles and credential checks.
type Service struct {
	store  store.Store
	logger *slog.Logger
	clock  func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(userStore store.Store, opts ...Option) (*Service, error) {
	if userStore == nil {
		return nil, errors.New("user store is required")
	}
	s := &Service{
		store:  userStore,
		logger: slog.New(slog.DiscardHandler),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a new account. A missing display name is derived from the
// email's local part.
func (s *Service) Register(ctx context.Context, emailAddr, password, displayName string) (*models.User, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return nil, derrors.New(derrors.CodeInvalidInput, "a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, derrors.Newf(derrors.CodeInvalidInput, "password must be at least %d characters", minPasswordLength)
	}
	if displayName == "" {
		first, last := email.DeriveNameFromEmail(emailAddr)
		displayName = first + " " + last
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	user := &models.User{
		ID:           id.UserID(uuid.NewString()),
		Email:        strings.ToLower(emailAddr),
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, derrors.New(derrors.CodeConflict, "email already registered")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to create user")
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks credentials and returns the profile. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, emailAddr, password string) (*models.User, error) {
	user, err := s.store.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load user")
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns a profile by ID.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "user not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// UpdateProfile changes the display name.
func (s *Service) UpdateProfile(ctx context.Context, userID id.UserID, displayName string) (*models.User, error) {
	if displayName == "" {
		return nil, derrors.New(derrors.CodeInvalidInput, "display name is required")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.DisplayName = displayName
	user.UpdatedAt = s.clock()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to update user")
	}
	return user, nil
}

// SetPremium flips the premium entitlement. In production the billing
// webhook calls this; there is no self-service path.
func (s *Service) SetPremium(ctx context.Context, userID id.UserID, premium bool) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Premium = premium
	user.UpdatedAt = s.clock()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to update user")
	}

	s.logger.InfoContext(ctx, "premium entitlement changed",
		"user_id", userID,
		"premium", premium,
	)
	return user, nil
}
