package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/ledger"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/storage/sqlite"
	"github.com/mmynk/settleup/pkg/api"
)

const testPassword = "password123"

type testEnv struct {
	server  *httptest.Server
	auth    api.AuthServiceClient
	metrics *metrics.Metrics
}

// testUser holds clients that send the user's bearer token.
type testUser struct {
	email    string
	token    string
	auth     api.AuthServiceClient
	groups   api.GroupServiceClient
	expenses api.ExpenseServiceClient
}

// setupTestServer serves all three services over a temp SQLite database,
// wired the way cmd/server wires them.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	m := metrics.New()
	l := ledger.New(store, ledger.WithMetrics(m))

	public := connect.WithInterceptors(
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
		middleware.MetricsInterceptor(m),
	)
	protected := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
		middleware.MetricsInterceptor(m),
	)

	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(NewAuthService(authenticator, jwtManager, store, logger), public))
	mux.Handle(api.NewGroupServiceHandler(NewGroupService(store, l), protected))
	mux.Handle(api.NewExpenseServiceHandler(NewExpenseService(store, l), protected))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{
		server:  server,
		auth:    api.NewAuthServiceClient(http.DefaultClient, server.URL),
		metrics: m,
	}
}

func bearer(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("Authorization", "Bearer "+token)
			return next(ctx, req)
		}
	}
}

// register creates an account and returns clients authenticated as it.
func (e *testEnv) register(t *testing.T, email string) *testUser {
	t.Helper()

	resp, err := e.auth.Register(context.Background(), connect.NewRequest(&api.RegisterRequest{
		Email:    email,
		Password: testPassword,
	}))
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}

	opt := connect.WithInterceptors(bearer(resp.Msg.Token))
	return &testUser{
		email:    resp.Msg.User.Email,
		token:    resp.Msg.Token,
		auth:     api.NewAuthServiceClient(http.DefaultClient, e.server.URL, opt),
		groups:   api.NewGroupServiceClient(http.DefaultClient, e.server.URL, opt),
		expenses: api.NewExpenseServiceClient(http.DefaultClient, e.server.URL, opt),
	}
}

// createGroup creates a group owned by u with the given extra members.
func (u *testUser) createGroup(t *testing.T, name string, members ...string) *api.Group {
	t.Helper()
	resp, err := u.groups.CreateGroup(context.Background(), connect.NewRequest(&api.CreateGroupRequest{
		Name:    name,
		Members: members,
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return resp.Msg.Group
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("expected %v, got %v (%v)", want, got, err)
	}
}

// resettleCount returns how many successful recomputations were recorded.
func (e *testEnv) resettleCount(t *testing.T) float64 {
	t.Helper()
	families, err := e.metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "settleup_resettles_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == "ok" {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
