// Package middleware holds the Connect interceptors shared by every service.
package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	userIDKey contextKey = "user_id"
	emailKey  contextKey = "email"
)

// WithIdentity returns a context carrying the authenticated user.
func WithIdentity(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, emailKey, email)
}

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// GetEmail extracts the user's e-mail, which is their group identity.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(emailKey).(string)
	return email
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", auth.ErrInvalidToken
	}
	return token, nil
}

// RequireAuth rejects requests without a valid bearer token and adds the
// caller's identity to the context.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token, err := bearerToken(req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithIdentity(ctx, claims.UserID(), claims.Email), req)
		}
	}
}

// OptionalAuth adds the caller's identity when a valid token is present and
// lets every request through.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token, err := bearerToken(req.Header().Get("Authorization")); err == nil {
				if claims, err := jwtManager.Validate(token); err == nil {
					ctx = WithIdentity(ctx, claims.UserID(), claims.Email)
				}
			}
			return next(ctx, req)
		}
	}
}
