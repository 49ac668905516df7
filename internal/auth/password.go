package auth

import (
	"golang.org/x/crypto/bcrypt"

	derrors "aegis/pkg/domain-errors"
)

// HashPassword hashes a credential for storage on the user profile.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", derrors.New(derrors.CodeInvalidInput, "password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", derrors.Wrap(err, derrors.CodeInternal, "failed to hash password")
	}
	return string(hash), nil
}

// VerifyPassword checks a credential against its stored hash.
func VerifyPassword(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return derrors.New(derrors.CodeUnauthorized, "invalid credentials")
	}
	return nil
}
