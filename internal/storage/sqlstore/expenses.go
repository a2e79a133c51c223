package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

const expenseColumns = "id, group_id, payer, amount, description, created_at, created_by"

// CreateExpense persists a new expense and its participants.
func (s *Store) CreateExpense(ctx context.Context, expense *models.Expense) error {
	// Generate ID if not set
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx,
			`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, expense.GroupID, expense.Payer, expense.Amount,
			expense.Description, expense.CreatedAt, expense.CreatedBy,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}
		return s.insertParticipants(ctx, tx, expense.ID, expense.Participants)
	})
}

// GetExpense retrieves an expense by ID, including its participants.
func (s *Store) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(s.queryRow(ctx, s.conn(),
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, expenseID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	rows, err := s.query(ctx, s.conn(),
		"SELECT identity FROM expense_participants WHERE expense_id = ? ORDER BY seq",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		expense.Participants = append(expense.Participants, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return expense, nil
}

// UpdateExpense replaces the mutable fields and the participant list.
func (s *Store) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx,
			"UPDATE expenses SET payer = ?, amount = ?, description = ? WHERE id = ?",
			expense.Payer, expense.Amount, expense.Description, expense.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if err := mustAffect(res, "expense", expense.ID); err != nil {
			return err
		}

		if _, err := s.exec(ctx, tx, "DELETE FROM expense_participants WHERE expense_id = ?", expense.ID); err != nil {
			return fmt.Errorf("failed to clear participants: %w", err)
		}
		return s.insertParticipants(ctx, tx, expense.ID, expense.Participants)
	})
}

// DeleteExpense removes an expense by ID. Participants cascade.
func (s *Store) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.exec(ctx, s.conn(), "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return mustAffect(res, "expense", expenseID)
}

// ListExpensesByGroup retrieves all expenses of a group, oldest first.
func (s *Store) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.query(ctx, s.conn(),
		`SELECT `+expenseColumns+` FROM expenses WHERE group_id = ? ORDER BY created_at, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	// One query for every participant of the group, instead of one per expense
	participantRows, err := s.query(ctx, s.conn(),
		`SELECT p.expense_id, p.identity
		 FROM expense_participants p
		 JOIN expenses e ON e.id = p.expense_id
		 WHERE e.group_id = ?
		 ORDER BY p.expense_id, p.seq`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer participantRows.Close()

	for participantRows.Next() {
		var expenseID, identity string
		if err := participantRows.Scan(&expenseID, &identity); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if expense, ok := byID[expenseID]; ok {
			expense.Participants = append(expense.Participants, identity)
		}
	}
	if err := participantRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return expenses, nil
}

func (s *Store) insertParticipants(ctx context.Context, tx *sql.Tx, expenseID string, participants []string) error {
	for i, identity := range participants {
		_, err := s.exec(ctx, tx,
			"INSERT INTO expense_participants (expense_id, seq, identity) VALUES (?, ?, ?)",
			expenseID, i, identity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}
	return nil
}

func scanExpense(row scanner) (*models.Expense, error) {
	expense := &models.Expense{}
	err := row.Scan(
		&expense.ID, &expense.GroupID, &expense.Payer, &expense.Amount,
		&expense.Description, &expense.CreatedAt, &expense.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return expense, nil
}
