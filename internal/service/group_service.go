package service

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/internal/ledger"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/api"
	"github.com/mmynk/settleup/pkg/logging"
)

// GroupService implements the Connect GroupService
type GroupService struct {
	api.UnimplementedGroupServiceHandler
	store  storage.Store
	ledger *ledger.Ledger
}

// NewGroupService creates a new GroupService over store and ledger.
func NewGroupService(store storage.Store, ledger *ledger.Ledger) *GroupService {
	return &GroupService{store: store, ledger: ledger}
}

// CreateGroup creates a new group. The caller is always a member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	logger := logging.FromContext(ctx)

	identity, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.Name == "" {
		return nil, connectError(errNameRequired)
	}
	members, err := normalizeIdentities(append([]string{identity}, req.Msg.Members...))
	if err != nil {
		return nil, connectError(err)
	}

	group := &models.Group{
		Name:      req.Msg.Name,
		Members:   members,
		CreatedBy: identity,
	}

	// Save to storage (generates ID and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		logger.Error("CreateGroup failed", "error", err)
		return nil, connectError(err)
	}

	logger.Info("Group created", "group_id", group.ID, "members_count", len(members))

	// Re-read for the stored member order
	stored, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(stored)}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	group, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&api.GetGroupResponse{Group: toAPIGroup(group)}), nil
}

// ListGroups returns every group the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	identity, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsByMember(ctx, identity)
	if err != nil {
		logging.FromContext(ctx).Error("ListGroups failed", "error", err)
		return nil, connectError(err)
	}

	out := make([]*api.Group, len(groups))
	for i, group := range groups {
		out[i] = toAPIGroup(group)
	}
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// AddMembers adds people to a group. Existing members are ignored.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	logger := logging.FromContext(ctx)

	if _, err := memberGroup(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, connectError(err)
	}
	members, err := normalizeIdentities(req.Msg.Members)
	if err != nil {
		return nil, connectError(err)
	}

	if err := s.store.AddGroupMembers(ctx, req.Msg.GroupID, members); err != nil {
		logger.Error("AddMembers failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	// New members start at zero, so the settlement set does not change.
	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}

	logger.Info("Members added", "group_id", group.ID, "added", len(members))
	return connect.NewResponse(&api.AddMembersResponse{Group: toAPIGroup(group)}), nil
}

// DeleteGroup removes a group with its expenses and settlements. Only the
// creator may delete it.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	group, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}
	if identity, _ := caller(ctx); group.CreatedBy != identity {
		return nil, connectError(errNotCreator)
	}

	if err := s.store.DeleteGroup(ctx, group.ID); err != nil {
		logging.FromContext(ctx).Error("DeleteGroup failed", "group_id", group.ID, "error", err)
		return nil, connectError(err)
	}

	logging.FromContext(ctx).Info("Group deleted", "group_id", group.ID)
	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// GetGroupBalances returns each member's balance and the group's current
// settlements.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	if _, err := memberGroup(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, connectError(err)
	}

	snapshot, err := s.ledger.Snapshot(ctx, req.Msg.GroupID)
	if err != nil {
		logging.FromContext(ctx).Error("GetGroupBalances failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	balances := make([]*api.MemberBalance, len(snapshot.Balances))
	for i, b := range snapshot.Balances {
		balances[i] = &api.MemberBalance{
			Member: b.Member,
			Paid:   settlement.RoundCents(b.Paid),
			Owed:   settlement.RoundCents(b.Owed),
			Net:    settlement.RoundCents(b.Net),
		}
	}

	return connect.NewResponse(&api.GetGroupBalancesResponse{
		Balances:    balances,
		Settlements: toAPISettlements(snapshot.Settlements),
	}), nil
}
