// Package ledger keeps a group's persisted settlement set consistent with its
// expenses.
//
// Every expense mutation goes through the Ledger, which writes the change and
// recomputes the group's settlements from the full expense list in one store
// transaction. Work on one group is serialised; different groups proceed in
// parallel.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/settlement"
	"github.com/mmynk/settleup/internal/storage"
	"github.com/mmynk/settleup/pkg/logging"
)

// groupStore is what recomputation reads and writes. storage.TxStore
// satisfies it.
type groupStore interface {
	storage.GroupStore
	storage.ExpenseStore
	storage.SettlementStore
}

// Store is the subset of storage.Store the ledger works with.
type Store interface {
	groupStore
	storage.Transactor
}

// Snapshot is a consistent view of a group's balances and settlements.
type Snapshot struct {
	Group       *models.Group
	Balances    []settlement.MemberBalance
	Settlements []*models.Settlement
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPolicy sets the annotation policy. The default is PolicyCarryForward.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) { l.policy = p }
}

// WithMetrics records recomputations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger orchestrates expense mutations and settlement recomputation.
type Ledger struct {
	store   Store
	policy  Policy
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*groupLock
}

// groupLock serialises work on one group. refs counts holders and waiters;
// the entry is dropped when it reaches zero.
type groupLock struct {
	sync.Mutex
	refs int
}

// New creates a Ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		locks: make(map[string]*groupLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the configured annotation policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// lock acquires the group's mutex and returns its release func.
func (l *Ledger) lock(groupID string) func() {
	l.mu.Lock()
	gl, ok := l.locks[groupID]
	if !ok {
		gl = &groupLock{}
		l.locks[groupID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.Lock()
	return func() {
		gl.Unlock()

		l.mu.Lock()
		defer l.mu.Unlock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.locks, groupID)
		}
	}
}

// mutate applies change and recomputes the group's settlements in one
// transaction, so a failed recomputation leaves no trace of the change.
// Callers hold the group's lock.
func (l *Ledger) mutate(ctx context.Context, groupID string, change func(tx storage.TxStore) error) error {
	return l.store.InTx(ctx, func(tx storage.TxStore) error {
		if err := change(tx); err != nil {
			return err
		}
		_, err := l.resettle(ctx, tx, groupID)
		return err
	})
}

// AddExpense validates and stores a new expense, then recomputes the group's
// settlements. Duplicate participants are collapsed before storing.
func (l *Ledger) AddExpense(ctx context.Context, expense *models.Expense) error {
	if err := normalize(expense); err != nil {
		return err
	}

	unlock := l.lock(expense.GroupID)
	defer unlock()

	return l.mutate(ctx, expense.GroupID, func(tx storage.TxStore) error {
		if _, err := tx.GetGroup(ctx, expense.GroupID); err != nil {
			return err
		}
		return tx.CreateExpense(ctx, expense)
	})
}

// UpdateExpense replaces the payer, amount, participants and description of
// an existing expense. The expense keeps its group.
func (l *Ledger) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if err := normalize(expense); err != nil {
		return err
	}

	existing, err := l.store.GetExpense(ctx, expense.ID)
	if err != nil {
		return err
	}
	expense.GroupID = existing.GroupID
	expense.CreatedAt = existing.CreatedAt
	expense.CreatedBy = existing.CreatedBy

	unlock := l.lock(expense.GroupID)
	defer unlock()

	return l.mutate(ctx, expense.GroupID, func(tx storage.TxStore) error {
		return tx.UpdateExpense(ctx, expense)
	})
}

// DeleteExpense removes an expense and recomputes its group's settlements.
func (l *Ledger) DeleteExpense(ctx context.Context, expenseID string) error {
	existing, err := l.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}

	unlock := l.lock(existing.GroupID)
	defer unlock()

	return l.mutate(ctx, existing.GroupID, func(tx storage.TxStore) error {
		return tx.DeleteExpense(ctx, expenseID)
	})
}

// Resettle recomputes and replaces the group's settlement set.
func (l *Ledger) Resettle(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	unlock := l.lock(groupID)
	defer unlock()

	var rows []*models.Settlement
	err := l.store.InTx(ctx, func(tx storage.TxStore) error {
		var err error
		rows, err = l.resettle(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkPaid sets or clears the paid annotation of one settlement.
func (l *Ledger) MarkPaid(ctx context.Context, settlementID string, paid bool) (*models.Settlement, error) {
	existing, err := l.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	unlock := l.lock(existing.GroupID)
	defer unlock()

	if err := l.store.SetSettled(ctx, settlementID, paid, l.now().Unix()); err != nil {
		return nil, err
	}
	return l.store.GetSettlement(ctx, settlementID)
}

// Snapshot returns the group, per-member balances and the persisted
// settlements, read under the group's lock.
func (l *Ledger) Snapshot(ctx context.Context, groupID string) (*Snapshot, error) {
	unlock := l.lock(groupID)
	defer unlock()

	group, expenses, err := load(ctx, l.store, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := l.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Group:       group,
		Balances:    settlement.Summarize(expenses, group.Members),
		Settlements: settlements,
	}, nil
}

// resettle recomputes the group's settlements from store and replaces the
// persisted set.
func (l *Ledger) resettle(ctx context.Context, store groupStore, groupID string) (result []*models.Settlement, err error) {
	defer func() {
		l.metrics.ObserveResettle(len(result), err)
	}()

	group, expenses, err := load(ctx, store, groupID)
	if err != nil {
		return nil, err
	}

	_, computed := settlement.Settle(expenses, group.Members)

	rows := make([]*models.Settlement, 0, len(computed))
	for _, s := range computed {
		rows = append(rows, &models.Settlement{
			GroupID: groupID,
			From:    s.From,
			To:      s.To,
			Amount:  settlement.RoundCents(s.Amount),
		})
	}

	if l.policy == PolicyCarryForward {
		prior, err := store.ListSettlementsByGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		carryForward(prior, rows)
	}

	if err := store.ReplaceSettlements(ctx, groupID, rows); err != nil {
		return nil, fmt.Errorf("failed to replace settlements: %w", err)
	}

	logging.FromContext(ctx).Debug("Settlements recomputed",
		"group_id", groupID,
		"expenses", len(expenses),
		"settlements", len(rows),
		"policy", l.policy.String(),
	)
	return rows, nil
}

// load reads the group and converts its stored expenses to core expenses.
func load(ctx context.Context, store groupStore, groupID string) (*models.Group, []settlement.Expense, error) {
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	stored, err := store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}

	expenses := make([]settlement.Expense, 0, len(stored))
	for _, e := range stored {
		expense, err := settlement.NewExpense(e.ID, e.Payer, e.Amount, e.Participants)
		if err != nil {
			// Rows are validated on write; one failing here was written by
			// something else.
			logging.FromContext(ctx).Warn("Skipping invalid stored expense", "expense_id", e.ID, "error", err)
			continue
		}
		expenses = append(expenses, expense)
	}
	return group, expenses, nil
}

// carryForward copies ID and paid state from prior onto matching rows. Each
// prior settlement is used at most once.
func carryForward(prior, rows []*models.Settlement) {
	used := make([]bool, len(prior))
	for _, row := range rows {
		for i, p := range prior {
			if used[i] || p.From != row.From || p.To != row.To || !settlement.SameCents(p.Amount, row.Amount) {
				continue
			}
			used[i] = true
			row.ID = p.ID
			row.CreatedAt = p.CreatedAt
			row.IsSettled = p.IsSettled
			row.SettledAt = p.SettledAt
			break
		}
	}
}

// normalize validates the expense and collapses duplicate participants.
func normalize(expense *models.Expense) error {
	valid, err := settlement.NewExpense(expense.ID, expense.Payer, expense.Amount, expense.Participants)
	if err != nil {
		return err
	}
	expense.Participants = valid.Participants
	return nil
}
