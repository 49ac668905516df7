package sos

import (
	"context"

	usermodels "aegis/internal/user/models"
	id "aegis/pkg/domain"
	derrors "aegis/pkg/domain-errors"
)

// EntitlementPolicy decides whether a user may raise an SOS right now. It is
// re-evaluated on every trigger so upgrades and limit changes take effect
// immediately. Returning an error vetoes the raise; the error surfaces to the
// caller unchanged.
type EntitlementPolicy func(ctx context.Context, userID id.UserID) error

// ArchivePolicy decides whether a stopped artifact gets persisted. Denial is
// not an error; the artifact is simply discarded after the incident closes.
type ArchivePolicy func(ctx context.Context, userID id.UserID) bool

// AllowAll is the default entitlement policy.
func AllowAll() EntitlementPolicy {
	return func(context.Context, id.UserID) error { return nil }
}

// UserDirectory is the profile lookup the policies need.
type UserDirectory interface {
	Get(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

// IncidentCounter reports lifetime incident usage.
type IncidentCounter interface {
	Count(ctx context.Context, userID id.UserID) (int, error)
}

// FreeTierPolicy limits non-premium users to a lifetime incident quota.
// Premium users pass unconditionally.
func FreeTierPolicy(users UserDirectory, incidents IncidentCounter, limit int) EntitlementPolicy {
	return func(ctx context.Context, userID id.UserID) error {
		user, err := users.Get(ctx, userID)
		if err != nil {
			return err
		}
		if user.Premium {
			return nil
		}
		count, err := incidents.Count(ctx, userID)
		if err != nil {
			return err
		}
		if count >= limit {
			return derrors.Newf(derrors.CodeUpgradeRequired, "free tier is limited to %d incident(s)", limit)
		}
		return nil
	}
}

// PremiumArchivePolicy persists artifacts for premium users only. Lookup
// failures fail closed: no archive.
func PremiumArchivePolicy(users UserDirectory) ArchivePolicy {
	return func(ctx context.Context, userID id.UserID) bool {
		user, err := users.Get(ctx, userID)
		return err == nil && user.Premium
	}
}
