package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// ExpenseServiceName is the fully-qualified name of the ExpenseService service.
const ExpenseServiceName = "settleup.v1.ExpenseService"

// Procedure paths of ExpenseService.
const (
	ExpenseServiceAddExpenseProcedure         = "/settleup.v1.ExpenseService/AddExpense"
	ExpenseServiceUpdateExpenseProcedure      = "/settleup.v1.ExpenseService/UpdateExpense"
	ExpenseServiceDeleteExpenseProcedure      = "/settleup.v1.ExpenseService/DeleteExpense"
	ExpenseServiceListExpensesProcedure       = "/settleup.v1.ExpenseService/ListExpenses"
	ExpenseServiceListSettlementsProcedure    = "/settleup.v1.ExpenseService/ListSettlements"
	ExpenseServiceMarkSettlementPaidProcedure = "/settleup.v1.ExpenseService/MarkSettlementPaid"
)

// ExpenseServiceClient is a client for the settleup.v1.ExpenseService service.
type ExpenseServiceClient interface {
	AddExpense(context.Context, *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	ListSettlements(context.Context, *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error)
	MarkSettlementPaid(context.Context, *connect.Request[MarkSettlementPaidRequest]) (*connect.Response[MarkSettlementPaidResponse], error)
}

// NewExpenseServiceClient constructs a client for the
// settleup.v1.ExpenseService service.
func NewExpenseServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ExpenseServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &expenseServiceClient{
		addExpense: connect.NewClient[AddExpenseRequest, AddExpenseResponse](
			httpClient, baseURL+ExpenseServiceAddExpenseProcedure, opts...,
		),
		updateExpense: connect.NewClient[UpdateExpenseRequest, UpdateExpenseResponse](
			httpClient, baseURL+ExpenseServiceUpdateExpenseProcedure, opts...,
		),
		deleteExpense: connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](
			httpClient, baseURL+ExpenseServiceDeleteExpenseProcedure, opts...,
		),
		listExpenses: connect.NewClient[ListExpensesRequest, ListExpensesResponse](
			httpClient, baseURL+ExpenseServiceListExpensesProcedure, opts...,
		),
		listSettlements: connect.NewClient[ListSettlementsRequest, ListSettlementsResponse](
			httpClient, baseURL+ExpenseServiceListSettlementsProcedure, opts...,
		),
		markSettlementPaid: connect.NewClient[MarkSettlementPaidRequest, MarkSettlementPaidResponse](
			httpClient, baseURL+ExpenseServiceMarkSettlementPaidProcedure, opts...,
		),
	}
}

type expenseServiceClient struct {
	addExpense         *connect.Client[AddExpenseRequest, AddExpenseResponse]
	updateExpense      *connect.Client[UpdateExpenseRequest, UpdateExpenseResponse]
	deleteExpense      *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	listExpenses       *connect.Client[ListExpensesRequest, ListExpensesResponse]
	listSettlements    *connect.Client[ListSettlementsRequest, ListSettlementsResponse]
	markSettlementPaid *connect.Client[MarkSettlementPaidRequest, MarkSettlementPaidResponse]
}

func (c *expenseServiceClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *expenseServiceClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *expenseServiceClient) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

func (c *expenseServiceClient) MarkSettlementPaid(ctx context.Context, req *connect.Request[MarkSettlementPaidRequest]) (*connect.Response[MarkSettlementPaidResponse], error) {
	return c.markSettlementPaid.CallUnary(ctx, req)
}

// ExpenseServiceHandler is implemented by the settleup.v1.ExpenseService server.
type ExpenseServiceHandler interface {
	AddExpense(context.Context, *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error)
	ListSettlements(context.Context, *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error)
	MarkSettlementPaid(context.Context, *connect.Request[MarkSettlementPaidRequest]) (*connect.Response[MarkSettlementPaidResponse], error)
}

// NewExpenseServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewExpenseServiceHandler(svc ExpenseServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	addExpense := connect.NewUnaryHandler(ExpenseServiceAddExpenseProcedure, svc.AddExpense, opts...)
	updateExpense := connect.NewUnaryHandler(ExpenseServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...)
	deleteExpense := connect.NewUnaryHandler(ExpenseServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...)
	listExpenses := connect.NewUnaryHandler(ExpenseServiceListExpensesProcedure, svc.ListExpenses, opts...)
	listSettlements := connect.NewUnaryHandler(ExpenseServiceListSettlementsProcedure, svc.ListSettlements, opts...)
	markSettlementPaid := connect.NewUnaryHandler(ExpenseServiceMarkSettlementPaidProcedure, svc.MarkSettlementPaid, opts...)
	return "/" + ExpenseServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ExpenseServiceAddExpenseProcedure:
			addExpense.ServeHTTP(w, r)
		case ExpenseServiceUpdateExpenseProcedure:
			updateExpense.ServeHTTP(w, r)
		case ExpenseServiceDeleteExpenseProcedure:
			deleteExpense.ServeHTTP(w, r)
		case ExpenseServiceListExpensesProcedure:
			listExpenses.ServeHTTP(w, r)
		case ExpenseServiceListSettlementsProcedure:
			listSettlements.ServeHTTP(w, r)
		case ExpenseServiceMarkSettlementPaidProcedure:
			markSettlementPaid.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// UnimplementedExpenseServiceHandler returns CodeUnimplemented from all methods.
type UnimplementedExpenseServiceHandler struct{}

func (UnimplementedExpenseServiceHandler) AddExpense(context.Context, *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.ExpenseService.AddExpense is not implemented"))
}

func (UnimplementedExpenseServiceHandler) UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.ExpenseService.UpdateExpense is not implemented"))
}

func (UnimplementedExpenseServiceHandler) DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.ExpenseService.DeleteExpense is not implemented"))
}

func (UnimplementedExpenseServiceHandler) ListExpenses(context.Context, *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.ExpenseService.ListExpenses is not implemented"))
}

func (UnimplementedExpenseServiceHandler) ListSettlements(context.Context, *connect.Request[ListSettlementsRequest]) (*connect.Response[ListSettlementsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.ExpenseService.ListSettlements is not implemented"))
}

func (UnimplementedExpenseServiceHandler) MarkSettlementPaid(context.Context, *connect.Request[MarkSettlementPaidRequest]) (*connect.Response[MarkSettlementPaidResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("settleup.v1.ExpenseService.MarkSettlementPaid is not implemented"))
}
