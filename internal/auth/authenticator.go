// Package auth registers users, checks their credentials and issues the
// tokens that identify them to the RPC services.
//
// A user's e-mail address is their identity inside groups, so it is
// normalised once here and used verbatim everywhere else.
package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/mmynk/settleup/internal/models"
)

var ErrInvalidEmail = errors.New("invalid email address")

// Authenticator registers and authenticates users.
// Implementations decide what a credential is (password, one-time code, ...).
type Authenticator interface {
	// Register creates a new account. email must already be normalised.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the user owning email when credential matches.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential reports whether credential is acceptable for a new
	// account.
	ValidateCredential(credential string) error
}

// NormalizeEmail trims and lower-cases an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
