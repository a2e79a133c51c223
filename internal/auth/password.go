package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrEmailExists        = errors.New("email already registered")
)

// Ensure PasswordAuthenticator implements Authenticator
var _ Authenticator = (*PasswordAuthenticator)(nil)

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	users storage.UserStore
	cost  int
}

// NewPasswordAuthenticator creates a password authenticator over users.
func NewPasswordAuthenticator(users storage.UserStore) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		users: users,
		cost:  bcrypt.DefaultCost,
	}
}

// WithCost returns a copy using the given bcrypt cost. Tests use
// bcrypt.MinCost.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	c := *a
	c.cost = cost
	return &c
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new user account with a hashed password. An empty
// display name defaults to the local part of the address.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, credential string) (*models.User, error) {
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	_, err := a.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailExists
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	user := models.NewUser(email, displayName, string(hashed))
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate verifies the email and password, returning the user if valid.
// Unknown addresses and wrong passwords are indistinguishable to the caller.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*models.User, error) {
	user, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
