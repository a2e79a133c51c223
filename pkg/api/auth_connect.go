package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// AuthServiceName is the fully-qualified name of the AuthService service.
const AuthServiceName = "settleup.v1.AuthService"

// Procedure paths of AuthService.
const (
	AuthServiceRegisterProcedure       = "/settleup.v1.AuthService/Register"
	AuthServiceLoginProcedure          = "/settleup.v1.AuthService/Login"
	AuthServiceGetCurrentUserProcedure = "/settleup.v1.AuthService/GetCurrentUser"
)

// AuthServiceClient is a client for the settleup.v1.AuthService service.
type AuthServiceClient interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
}

// NewAuthServiceClient constructs a client for the settleup.v1.AuthService
// service. baseURL is the server's root, e.g. http://localhost:8080.
func NewAuthServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AuthServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &authServiceClient{
		register: connect.NewClient[RegisterRequest, RegisterResponse](
			httpClient, baseURL+AuthServiceRegisterProcedure, opts...,
		),
		login: connect.NewClient[LoginRequest, LoginResponse](
			httpClient, baseURL+AuthServiceLoginProcedure, opts...,
		),
		getCurrentUser: connect.NewClient[GetCurrentUserRequest, GetCurrentUserResponse](
			httpClient, baseURL+AuthServiceGetCurrentUserProcedure, opts...,
		),
	}
}

type authServiceClient struct {
	register       *connect.Client[RegisterRequest, RegisterResponse]
	login          *connect.Client[LoginRequest, LoginResponse]
	getCurrentUser *connect.Client[GetCurrentUserRequest, GetCurrentUserResponse]
}

func (c *authServiceClient) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return c.register.CallUnary(ctx, req)
}

func (c *authServiceClient) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return c.login.CallUnary(ctx, req)
}

func (c *authServiceClient) GetCurrentUser(ctx context.Context, req *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return c.getCurrentUser.CallUnary(ctx, req)
}

// AuthServiceHandler is implemented by the settleup.v1.AuthService server.
type AuthServiceHandler interface {
	Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error)
	Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error)
	GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error)
}

// NewAuthServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewAuthServiceHandler(svc AuthServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	register := connect.NewUnaryHandler(AuthServiceRegisterProcedure, svc.Register, opts...)
	login := connect.NewUnaryHandler(AuthServiceLoginProcedure, svc.Login, opts...)
	getCurrentUser := connect.NewUnaryHandler(AuthServiceGetCurrentUserProcedure, svc.GetCurrentUser, opts...)
	return "/" + AuthServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AuthServiceRegisterProcedure:
			register.ServeHTTP(w, r)
		case AuthServiceLoginProcedure:
			login.ServeHTTP(w, r)
		case AuthServiceGetCurrentUserProcedure:
			getCurrentUser.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedAuthServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedAuthServiceHandler struct{}

func (UnimplementedAuthServiceHandler) Register(context.Context, *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.AuthService.Register is not implemented"))
}

func (UnimplementedAuthServiceHandler) Login(context.Context, *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.AuthService.Login is not implemented"))
}

func (UnimplementedAuthServiceHandler) GetCurrentUser(context.Context, *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.AuthService.GetCurrentUser is not implemented"))
}
