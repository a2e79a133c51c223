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

// ExpenseService implements the Connect ExpenseService. Every mutation goes
// through the ledger, which recomputes the group's settlements.
type ExpenseService struct {
	api.UnimplementedExpenseServiceHandler
	store  storage.Store
	ledger *ledger.Ledger
}

// NewExpenseService creates a new ExpenseService over store and ledger.
func NewExpenseService(store storage.Store, ledger *ledger.Ledger) *ExpenseService {
	return &ExpenseService{store: store, ledger: ledger}
}

// findNewParticipants returns people that are not already in existingMembers.
func findNewParticipants(people, existingMembers []string) []string {
	memberSet := make(map[string]bool, len(existingMembers))
	for _, m := range existingMembers {
		memberSet[m] = true
	}
	var newOnes []string
	for _, p := range people {
		if !memberSet[p] {
			newOnes = append(newOnes, p)
			memberSet[p] = true
		}
	}
	return newOnes
}

// prepareExpense normalises and validates amount, payer and participants, then adds
// anyone not yet in the group to it. An empty payer means the caller paid.
func (s *ExpenseService) prepareExpense(ctx context.Context, group *models.Group, payer string, amount float64, participants []string) (string, []string, error) {
	if payer == "" {
		payer, _ = caller(ctx)
	}
	people, err := normalizeIdentities(append([]string{payer}, participants...))
	if err != nil {
		return "", nil, err
	}
	payer = people[0]
	participants, err = normalizeIdentities(participants)
	if err != nil {
		return "", nil, err
	}
	// Amounts arrive as numbers here, so apply the same cent rule the bot
	// enforces when parsing text.
	if err := settlement.CheckAmount(amount); err != nil {
		return "", nil, err
	}
	if _, err := settlement.NewExpense("", payer, amount, participants); err != nil {
		return "", nil, err
	}

	if newOnes := findNewParticipants(people, group.Members); len(newOnes) > 0 {
		if err := s.store.AddGroupMembers(ctx, group.ID, newOnes); err != nil {
			return "", nil, err
		}
		logging.FromContext(ctx).Info("Added expense participants to group",
			"group_id", group.ID,
			"added", newOnes,
		)
	}
	return payer, participants, nil
}

// settlementsFor lists the group's current settlements.
func (s *ExpenseService) settlementsFor(ctx context.Context, groupID string) ([]*api.Settlement, error) {
	settlements, err := s.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return toAPISettlements(settlements), nil
}

// AddExpense records an expense and returns the recomputed settlements.
func (s *ExpenseService) AddExpense(ctx context.Context, req *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error) {
	logger := logging.FromContext(ctx)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}
	payer, participants, err := s.prepareExpense(ctx, group, req.Msg.Payer, req.Msg.Amount, req.Msg.Participants)
	if err != nil {
		return nil, connectError(err)
	}

	identity, _ := caller(ctx)
	expense := &models.Expense{
		GroupID:      group.ID,
		Payer:        payer,
		Amount:       req.Msg.Amount,
		Participants: participants,
		Description:  req.Msg.Description,
		CreatedBy:    identity,
	}
	if err := s.ledger.AddExpense(ctx, expense); err != nil {
		logger.Warn("AddExpense failed", "group_id", group.ID, "error", err)
		return nil, connectError(err)
	}

	settlements, err := s.settlementsFor(ctx, group.ID)
	if err != nil {
		return nil, connectError(err)
	}

	logger.Info("Expense added",
		"group_id", group.ID,
		"expense_id", expense.ID,
		"amount", expense.Amount,
		"settlements_count", len(settlements),
	)
	return connect.NewResponse(&api.AddExpenseResponse{
		Expense:     toAPIExpense(expense),
		Settlements: settlements,
	}), nil
}

// UpdateExpense replaces an expense's payer, amount, participants and
// description.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	logger := logging.FromContext(ctx)

	existing, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, connectError(err)
	}
	group, err := memberGroup(ctx, s.store, existing.GroupID)
	if err != nil {
		return nil, connectError(err)
	}
	payer, participants, err := s.prepareExpense(ctx, group, req.Msg.Payer, req.Msg.Amount, req.Msg.Participants)
	if err != nil {
		return nil, connectError(err)
	}

	expense := &models.Expense{
		ID:           existing.ID,
		Payer:        payer,
		Amount:       req.Msg.Amount,
		Participants: participants,
		Description:  req.Msg.Description,
	}
	if err := s.ledger.UpdateExpense(ctx, expense); err != nil {
		logger.Warn("UpdateExpense failed", "expense_id", existing.ID, "error", err)
		return nil, connectError(err)
	}

	settlements, err := s.settlementsFor(ctx, group.ID)
	if err != nil {
		return nil, connectError(err)
	}

	logger.Info("Expense updated", "group_id", group.ID, "expense_id", expense.ID)
	return connect.NewResponse(&api.UpdateExpenseResponse{
		Expense:     toAPIExpense(expense),
		Settlements: settlements,
	}), nil
}

// DeleteExpense removes an expense and returns the recomputed settlements.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	existing, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, connectError(err)
	}
	if _, err := memberGroup(ctx, s.store, existing.GroupID); err != nil {
		return nil, connectError(err)
	}

	if err := s.ledger.DeleteExpense(ctx, existing.ID); err != nil {
		logging.FromContext(ctx).Error("DeleteExpense failed", "expense_id", existing.ID, "error", err)
		return nil, connectError(err)
	}

	settlements, err := s.settlementsFor(ctx, existing.GroupID)
	if err != nil {
		return nil, connectError(err)
	}

	logging.FromContext(ctx).Info("Expense deleted", "group_id", existing.GroupID, "expense_id", existing.ID)
	return connect.NewResponse(&api.DeleteExpenseResponse{Settlements: settlements}), nil
}

// ListExpenses returns a group's expenses, oldest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	if _, err := memberGroup(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, connectError(err)
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		logging.FromContext(ctx).Error("ListExpenses failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	out := make([]*api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e)
	}
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// ListSettlements returns the group's current settlement set.
func (s *ExpenseService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	if _, err := memberGroup(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, connectError(err)
	}

	settlements, err := s.settlementsFor(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: settlements}), nil
}

// MarkSettlementPaid sets or clears a settlement's paid flag.
func (s *ExpenseService) MarkSettlementPaid(ctx context.Context, req *connect.Request[api.MarkSettlementPaidRequest]) (*connect.Response[api.MarkSettlementPaidResponse], error) {
	existing, err := s.store.GetSettlement(ctx, req.Msg.SettlementID)
	if err != nil {
		return nil, connectError(err)
	}
	if _, err := memberGroup(ctx, s.store, existing.GroupID); err != nil {
		return nil, connectError(err)
	}

	updated, err := s.ledger.MarkPaid(ctx, existing.ID, req.Msg.Paid)
	if err != nil {
		return nil, connectError(err)
	}

	logging.FromContext(ctx).Info("Settlement marked",
		"settlement_id", updated.ID,
		"paid", updated.IsSettled,
	)
	return connect.NewResponse(&api.MarkSettlementPaidResponse{Settlement: toAPISettlement(updated)}), nil
}
