package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	api.UnimplementedAuthServiceHandler
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		logger:        logger,
	}
}

// Register creates a new user account and returns a session token.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	email, err := auth.NormalizeEmail(req.Msg.Email)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	s.logger.Info("Register request", "email", email)

	user, err := s.authenticator.Register(ctx, email, req.Msg.DisplayName, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Registration failed", "email", email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		default:
			return nil, connect.NewError(connect.CodeInternal, err)
		}
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(&api.RegisterResponse{
		User:  toAPIUser(user),
		Token: token,
	}), nil
}

// Login authenticates a user and returns a session token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	email, err := auth.NormalizeEmail(req.Msg.Email)
	if err != nil || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := s.authenticator.Authenticate(ctx, email, req.Msg.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.logger.Warn("Login failed", "email", email)
		return nil, connect.NewError(connect.CodeUnauthenticated, err)
	}
	if err != nil {
		s.logger.Error("Login failed", "email", email, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(&api.LoginResponse{
		User:  toAPIUser(user),
		Token: token,
	}), nil
}

// GetCurrentUser returns the authenticated user's account.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&api.GetCurrentUserResponse{User: toAPIUser(user)}), nil
}
