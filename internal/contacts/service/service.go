package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"aegis/internal/contacts/models"
	"aegis/internal/contacts/store"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/sentinel"
)

// DefaultMaxContacts bounds how many trusted contacts a user may register.
const DefaultMaxContacts = 5

// phoneCharsRegex is deliberately permissive. Numbers are passed through to
// the SMS gateway as entered; strict E.164 would reject valid local formats.
var phoneCharsRegex = regexp.MustCompile(`^\+?[0-9\-() .]{7,20}$`)

// Service manages a user's trusted contact roster.
type Service struct {
	store       store.Store
	validate    *validator.Validate
	maxContacts int
	logger      *slog.Logger
	clock       func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMaxContacts overrides the roster size bound.
func WithMaxContacts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxContacts = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(contactStore store.Store, opts ...Option) (*Service, error) {
	if contactStore == nil {
		return nil, errors.New("contact store is required")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation("phonechars", func(fl validator.FieldLevel) bool {
		return phoneCharsRegex.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}

	s := &Service{
		store:       contactStore,
		validate:    validate,
		maxContacts: DefaultMaxContacts,
		logger:      slog.New(slog.DiscardHandler),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add registers a new trusted contact. The roster is bounded; the bound keeps
// SOS fan-out latency predictable.
func (s *Service) Add(ctx context.Context, userID id.UserID, req models.UpsertContactRequest) (*models.TrustedContact, error) {
	if userID.IsNil() {
		return nil, derrors.New(derrors.CodeInvalidInput, "user id is required")
	}

	count, err := s.store.CountByUser(ctx, userID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to count contacts")
	}
	if count >= s.maxContacts {
		return nil, derrors.Newf(derrors.CodeConflict, "contact limit of %d reached", s.maxContacts)
	}

	now := s.clock()
	contact := &models.TrustedContact{
		ID:           id.NewContactID(),
		UserID:       userID,
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Relationship: req.Relationship,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.validate.Struct(contact); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "invalid contact")
	}

	if err := s.store.Upsert(ctx, contact); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to save contact")
	}

	s.logger.InfoContext(ctx, "trusted contact added",
		"user_id", userID,
		"contact_id", contact.ID,
	)
	return contact, nil
}

// Update replaces the mutable fields of an existing contact.
func (s *Service) Update(ctx context.Context, userID id.UserID, contactID id.ContactID, req models.UpsertContactRequest) (*models.TrustedContact, error) {
	contact, err := s.store.Get(ctx, userID, contactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, derrors.New(derrors.CodeNotFound, "contact not found")
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to load contact")
	}

	contact.Name = req.Name
	contact.Phone = req.Phone
	contact.Email = req.Email
	contact.Relationship = req.Relationship
	contact.UpdatedAt = s.clock()

	if err := s.validate.Struct(contact); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInvalidInput, "invalid contact")
	}
	if err := s.store.Upsert(ctx, contact); err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to save contact")
	}
	return contact, nil
}

// List returns the user's roster in insertion order.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*models.TrustedContact, error) {
	contacts, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "failed to list contacts")
	}
	return contacts, nil
}

// Remove deletes a contact from the roster.
func (s *Service) Remove(ctx context.Context, userID id.UserID, contactID id.ContactID) error {
	if err := s.store.Delete(ctx, userID, contactID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeNotFound, "contact not found")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "failed to delete contact")
	}
	s.logger.InfoContext(ctx, "trusted contact removed",
		"user_id", userID,
		"contact_id", contactID,
	)
	return nil
}
