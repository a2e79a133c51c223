// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/settleup/internal/models"
)

// ErrNotFound is wrapped by every store method that looks up a missing row.
var ErrNotFound = errors.New("not found")

// GroupStore persists groups and their member lists.
type GroupStore interface {
	// CreateGroup persists a new group. ID and CreatedAt are filled in when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members sorted by identity.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsByMember retrieves every group identity belongs to.
	ListGroupsByMember(ctx context.Context, identity string) ([]*models.Group, error)

	// AddGroupMembers adds identities to a group. Existing members are ignored.
	AddGroupMembers(ctx context.Context, groupID string, identities []string) error

	// DeleteGroup removes a group together with its expenses and settlements.
	DeleteGroup(ctx context.Context, groupID string) error
}

// ExpenseStore persists expenses.
type ExpenseStore interface {
	// CreateExpense persists a new expense. ID and CreatedAt are filled in when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense by ID.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense replaces payer, amount, participants and description.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense by ID.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpensesByGroup retrieves a group's expenses, oldest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)
}

// SettlementStore persists the derived settlement set of each group.
type SettlementStore interface {
	// ReplaceSettlements atomically swaps a group's settlement set for the
	// given one. Rows are stored in slice order.
	ReplaceSettlements(ctx context.Context, groupID string, settlements []*models.Settlement) error

	// ListSettlementsByGroup retrieves a group's settlements in the order
	// they were generated.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// GetSettlement retrieves a settlement by ID.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// SetSettled updates the "mark as paid" annotation of one settlement.
	// settledAt is ignored when settled is false.
	SetSettled(ctx context.Context, settlementID string, settled bool, settledAt int64) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// TxStore is the view of a Store inside a transaction.
type TxStore interface {
	GroupStore
	ExpenseStore
	SettlementStore
	UserStore
}

// Transactor runs a unit of work atomically.
type Transactor interface {
	// InTx calls fn with a TxStore bound to one transaction, committing
	// when fn returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}

// Store is the full storage backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the ledger or service layers.
type Store interface {
	TxStore
	Transactor

	// Close releases any resources held by the store.
	Close() error
}
