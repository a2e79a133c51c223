// Package service implements the settleup.v1 Connect services.
package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/auth"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
)

var (
	errNotMember     = errors.New("not a member of this group")
	errNotCreator    = errors.New("only the group creator can do this")
	errGroupRequired = errors.New("group_id required")
	errNameRequired  = errors.New("name required")
)

// connectError maps domain and storage errors to Connect codes.
func connectError(err error) *connect.Error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, errNotMember), errors.Is(err, errNotCreator):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrNoPayer),
		errors.Is(err, settlement.ErrNoParticipants),
		errors.Is(err, settlement.ErrEmptyParticipant),
		errors.Is(err, settlement.ErrDuplicateParticipant),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, errGroupRequired),
		errors.Is(err, errNameRequired):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// caller returns the authenticated identity.
func caller(ctx context.Context) (string, error) {
	email := middleware.GetEmail(ctx)
	if email == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return email, nil
}

// memberGroup loads a group and checks that the caller belongs to it.
func memberGroup(ctx context.Context, groups storage.GroupStore, groupID string) (*models.Group, error) {
	identity, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, errGroupRequired
	}
	group, err := groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(identity) {
		return nil, errNotMember
	}
	return group, nil
}

// normalizeIdentities normalises e-mail identities and drops repeats,
// keeping first occurrences.
func normalizeIdentities(identities []string) ([]string, error) {
	seen := make(map[string]bool, len(identities))
	out := make([]string, 0, len(identities))
	for _, identity := range identities {
		email, err := auth.NormalizeEmail(identity)
		if err != nil {
			return nil, err
		}
		if seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out, nil
}

func toAPIGroup(g *models.Group) *api.Group {
	return &api.Group{
		ID:        g.ID,
		Name:      g.Name,
		Members:   g.Members,
		CreatedAt: g.CreatedAt,
		CreatedBy: g.CreatedBy,
	}
}

func toAPIExpense(e *models.Expense) *api.Expense {
	return &api.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		Payer:        e.Payer,
		Amount:       e.Amount,
		Participants: e.Participants,
		Description:  e.Description,
		CreatedAt:    e.CreatedAt,
	}
}

func toAPISettlement(s *models.Settlement) *api.Settlement {
	return &api.Settlement{
		ID:        s.ID,
		From:      s.From,
		To:        s.To,
		Amount:    s.Amount,
		IsSettled: s.IsSettled,
		SettledAt: s.SettledAt,
	}
}

func toAPISettlements(settlements []*models.Settlement) []*api.Settlement {
	out := make([]*api.Settlement, len(settlements))
	for i, s := range settlements {
		out[i] = toAPISettlement(s)
	}
	return out
}

func toAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}
