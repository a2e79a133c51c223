package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// GroupServiceName is the fully-qualified name of the GroupService service.
const GroupServiceName = "settleup.v1.GroupService"

// Procedure paths of GroupService.
const (
	GroupServiceCreateGroupProcedure      = "/settleup.v1.GroupService/CreateGroup"
	GroupServiceGetGroupProcedure         = "/settleup.v1.GroupService/GetGroup"
	GroupServiceListGroupsProcedure       = "/settleup.v1.GroupService/ListGroups"
	GroupServiceAddMembersProcedure       = "/settleup.v1.GroupService/AddMembers"
	GroupServiceDeleteGroupProcedure      = "/settleup.v1.GroupService/DeleteGroup"
	GroupServiceGetGroupBalancesProcedure = "/settleup.v1.GroupService/GetGroupBalances"
)

// GroupServiceClient is a client for the settleup.v1.GroupService service.
type GroupServiceClient interface {
	CreateGroup(context.Context, *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error)
	GetGroup(context.Context, *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error)
	ListGroups(context.Context, *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error)
	AddMembers(context.Context, *connect.Request[AddMembersRequest]) (*connect.Response[AddMembersResponse], error)
	DeleteGroup(context.Context, *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error)
}

// NewGroupServiceClient constructs a client for the settleup.v1.GroupService
// service.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) GroupServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &groupServiceClient{
		createGroup: connect.NewClient[CreateGroupRequest, CreateGroupResponse](
			httpClient, baseURL+GroupServiceCreateGroupProcedure, opts...,
		),
		getGroup: connect.NewClient[GetGroupRequest, GetGroupResponse](
			httpClient, baseURL+GroupServiceGetGroupProcedure, opts...,
		),
		listGroups: connect.NewClient[ListGroupsRequest, ListGroupsResponse](
			httpClient, baseURL+GroupServiceListGroupsProcedure, opts...,
		),
		addMembers: connect.NewClient[AddMembersRequest, AddMembersResponse](
			httpClient, baseURL+GroupServiceAddMembersProcedure, opts...,
		),
		deleteGroup: connect.NewClient[DeleteGroupRequest, DeleteGroupResponse](
			httpClient, baseURL+GroupServiceDeleteGroupProcedure, opts...,
		),
		getGroupBalances: connect.NewClient[GetGroupBalancesRequest, GetGroupBalancesResponse](
			httpClient, baseURL+GroupServiceGetGroupBalancesProcedure, opts...,
		),
	}
}

type groupServiceClient struct {
	createGroup      *connect.Client[CreateGroupRequest, CreateGroupResponse]
	getGroup         *connect.Client[GetGroupRequest, GetGroupResponse]
	listGroups       *connect.Client[ListGroupsRequest, ListGroupsResponse]
	addMembers       *connect.Client[AddMembersRequest, AddMembersResponse]
	deleteGroup      *connect.Client[DeleteGroupRequest, DeleteGroupResponse]
	getGroupBalances *connect.Client[GetGroupBalancesRequest, GetGroupBalancesResponse]
}

func (c *groupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) ListGroups(ctx context.Context, req *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *groupServiceClient) AddMembers(ctx context.Context, req *connect.Request[AddMembersRequest]) (*connect.Response[AddMembersResponse], error) {
	return c.addMembers.CallUnary(ctx, req)
}

func (c *groupServiceClient) DeleteGroup(ctx context.Context, req *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error) {
	return c.deleteGroup.CallUnary(ctx, req)
}

func (c *groupServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}

// GroupServiceHandler is implemented by the settleup.v1.GroupService server.
type GroupServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error)
	GetGroup(context.Context, *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error)
	ListGroups(context.Context, *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error)
	AddMembers(context.Context, *connect.Request[AddMembersRequest]) (*connect.Response[AddMembersResponse], error)
	DeleteGroup(context.Context, *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error)
}

// NewGroupServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	createGroup := connect.NewUnaryHandler(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts...)
	getGroup := connect.NewUnaryHandler(GroupServiceGetGroupProcedure, svc.GetGroup, opts...)
	listGroups := connect.NewUnaryHandler(GroupServiceListGroupsProcedure, svc.ListGroups, opts...)
	addMembers := connect.NewUnaryHandler(GroupServiceAddMembersProcedure, svc.AddMembers, opts...)
	deleteGroup := connect.NewUnaryHandler(GroupServiceDeleteGroupProcedure, svc.DeleteGroup, opts...)
	getGroupBalances := connect.NewUnaryHandler(GroupServiceGetGroupBalancesProcedure, svc.GetGroupBalances, opts...)
	return "/" + GroupServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GroupServiceCreateGroupProcedure:
			createGroup.ServeHTTP(w, r)
		case GroupServiceGetGroupProcedure:
			getGroup.ServeHTTP(w, r)
		case GroupServiceListGroupsProcedure:
			listGroups.ServeHTTP(w, r)
		case GroupServiceAddMembersProcedure:
			addMembers.ServeHTTP(w, r)
		case GroupServiceDeleteGroupProcedure:
			deleteGroup.ServeHTTP(w, r)
		case GroupServiceGetGroupBalancesProcedure:
			getGroupBalances.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedGroupServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedGroupServiceHandler struct{}

func (UnimplementedGroupServiceHandler) CreateGroup(context.Context, *connect.Request[CreateGroupRequest]) (*connect.Response[CreateGroupResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.GroupService.CreateGroup is not implemented"))
}

func (UnimplementedGroupServiceHandler) GetGroup(context.Context, *connect.Request[GetGroupRequest]) (*connect.Response[GetGroupResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.GroupService.GetGroup is not implemented"))
}

func (UnimplementedGroupServiceHandler) ListGroups(context.Context, *connect.Request[ListGroupsRequest]) (*connect.Response[ListGroupsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.GroupService.ListGroups is not implemented"))
}

func (UnimplementedGroupServiceHandler) AddMembers(context.Context, *connect.Request[AddMembersRequest]) (*connect.Response[AddMembersResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.GroupService.AddMembers is not implemented"))
}

func (UnimplementedGroupServiceHandler) DeleteGroup(context.Context, *connect.Request[DeleteGroupRequest]) (*connect.Response[DeleteGroupResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.GroupService.DeleteGroup is not implemented"))
}

func (UnimplementedGroupServiceHandler) GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.GroupService.GetGroupBalances is not implemented"))
}
