package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account. The e-mail address doubles as
// the participant identity in groups and expenses.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is the user's e-mail address (unique).
	Email string

	// DisplayName is how the user is shown to other members.
	DisplayName string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last change.
	UpdatedAt int64
}

// NewUser builds a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
