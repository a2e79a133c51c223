package service

import (
	"context"
	"net/http"
	"slices"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/settleup/pkg/api"
)

func TestCreateGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")

	resp, err := alice.groups.CreateGroup(context.Background(), connect.NewRequest(&api.CreateGroupRequest{
		Name:    "Roommates",
		Members: []string{"Bob@Example.com", "carol@example.com", "bob@example.com"},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	group := resp.Msg.Group
	if group.ID == "" {
		t.Error("expected non-empty group ID")
	}
	if group.Name != "Roommates" {
		t.Errorf("name: expected 'Roommates', got '%s'", group.Name)
	}
	want := []string{"alice@example.com", "bob@example.com", "carol@example.com"}
	if !slices.Equal(group.Members, want) {
		t.Errorf("members: expected %v, got %v", want, group.Members)
	}
	if group.CreatedBy != "alice@example.com" {
		t.Errorf("created_by: expected alice, got '%s'", group.CreatedBy)
	}
	if group.CreatedAt == 0 {
		t.Error("expected non-zero CreatedAt")
	}
}

func TestCreateGroup_InvalidArgument(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")

	tests := []struct {
		name string
		req  *api.CreateGroupRequest
	}{
		{name: "missing name", req: &api.CreateGroupRequest{Members: []string{"bob@example.com"}}},
		{name: "bad member", req: &api.CreateGroupRequest{Name: "x", Members: []string{"bob"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alice.groups.CreateGroup(context.Background(), connect.NewRequest(tt.req))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestGroupService_RequiresAuth(t *testing.T) {
	env := setupTestServer(t)
	client := api.NewGroupServiceClient(http.DefaultClient, env.server.URL)

	_, err := client.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)

	badToken := api.NewGroupServiceClient(http.DefaultClient, env.server.URL, connect.WithInterceptors(bearer("garbage")))
	_, err = badToken.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestGetGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	carol := env.register(t, "carol@example.com")

	group := alice.createGroup(t, "Work Lunch", bob.email)

	resp, err := bob.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if resp.Msg.Group.Name != "Work Lunch" {
		t.Errorf("name: expected 'Work Lunch', got '%s'", resp.Msg.Group.Name)
	}
	if len(resp.Msg.Group.Members) != 2 {
		t.Errorf("members: expected 2, got %d", len(resp.Msg.Group.Members))
	}

	t.Run("not a member", func(t *testing.T) {
		_, err := carol.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
		assertCode(t, err, connect.CodePermissionDenied)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := alice.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: "nonexistent-id"}))
		assertCode(t, err, connect.CodeNotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := alice.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{}))
		assertCode(t, err, connect.CodeInvalidArgument)
	})
}

func TestListGroups(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	alice.createGroup(t, "Group A", bob.email)
	alice.createGroup(t, "Group B")

	resp, err := alice.groups.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(resp.Msg.Groups) != 2 {
		t.Errorf("alice: expected 2 groups, got %d", len(resp.Msg.Groups))
	}

	resp, err = bob.groups.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(resp.Msg.Groups) != 1 || resp.Msg.Groups[0].Name != "Group A" {
		t.Errorf("bob: expected only Group A, got %+v", resp.Msg.Groups)
	}
}

func TestListGroups_Empty(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")

	resp, err := alice.groups.ListGroups(context.Background(), connect.NewRequest(&api.ListGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListGroups failed: %v", err)
	}
	if len(resp.Msg.Groups) != 0 {
		t.Errorf("expected 0 groups, got %d", len(resp.Msg.Groups))
	}
}

func TestAddMembers(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")
	group := alice.createGroup(t, "Trip")

	resp, err := alice.groups.AddMembers(context.Background(), connect.NewRequest(&api.AddMembersRequest{
		GroupID: group.ID,
		Members: []string{"dave@example.com", "alice@example.com"},
	}))
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	want := []string{"alice@example.com", "dave@example.com"}
	if !slices.Equal(resp.Msg.Group.Members, want) {
		t.Errorf("members: expected %v, got %v", want, resp.Msg.Group.Members)
	}

	outsider := env.register(t, "eve@example.com")
	_, err = outsider.groups.AddMembers(context.Background(), connect.NewRequest(&api.AddMembersRequest{
		GroupID: group.ID,
		Members: []string{"eve@example.com"},
	}))
	assertCode(t, err, connect.CodePermissionDenied)
}

func TestDeleteGroup(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")
	group := alice.createGroup(t, "To Be Deleted", bob.email)

	_, err := bob.groups.DeleteGroup(context.Background(), connect.NewRequest(&api.DeleteGroupRequest{GroupID: group.ID}))
	assertCode(t, err, connect.CodePermissionDenied)

	if _, err := alice.groups.DeleteGroup(context.Background(), connect.NewRequest(&api.DeleteGroupRequest{GroupID: group.ID})); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	_, err = alice.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestGetGroupBalances(t *testing.T) {
	env := setupTestServer(t)
	alice := env.register(t, "alice@example.com")
	group := alice.createGroup(t, "Dinner", "bob@example.com", "carol@example.com")

	_, err := alice.expenses.AddExpense(context.Background(), connect.NewRequest(&api.AddExpenseRequest{
		GroupID:      group.ID,
		Amount:       100,
		Participants: []string{"alice@example.com", "bob@example.com", "carol@example.com"},
	}))
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	resp, err := alice.groups.GetGroupBalances(context.Background(), connect.NewRequest(&api.GetGroupBalancesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}

	wantNet := map[string]float64{
		"alice@example.com": 66.67,
		"bob@example.com":   -33.33,
		"carol@example.com": -33.33,
	}
	if len(resp.Msg.Balances) != len(wantNet) {
		t.Fatalf("expected %d balances, got %d", len(wantNet), len(resp.Msg.Balances))
	}
	for _, b := range resp.Msg.Balances {
		if b.Net != wantNet[b.Member] {
			t.Errorf("%s: expected net %.2f, got %.2f", b.Member, wantNet[b.Member], b.Net)
		}
	}

	if len(resp.Msg.Settlements) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(resp.Msg.Settlements))
	}
	for i, from := range []string{"bob@example.com", "carol@example.com"} {
		s := resp.Msg.Settlements[i]
		if s.From != from || s.To != "alice@example.com" || s.Amount != 33.33 {
			t.Errorf("settlement %d: got %+v", i, s)
		}
	}
}
