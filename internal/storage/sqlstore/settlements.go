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

const settlementColumns = "id, group_id, from_identity, to_identity, amount, is_settled, settled_at, created_at"

// ReplaceSettlements deletes the group's settlement set and inserts the new
// one in a single transaction.
func (s *Store) ReplaceSettlements(ctx context.Context, groupID string, settlements []*models.Settlement) error {
	now := time.Now().Unix()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, "DELETE FROM settlements WHERE group_id = ?", groupID); err != nil {
			return fmt.Errorf("failed to clear settlements: %w", err)
		}

		for i, settlement := range settlements {
			if settlement.ID == "" {
				settlement.ID = uuid.New().String()
			}
			if settlement.CreatedAt == 0 {
				settlement.CreatedAt = now
			}
			settlement.GroupID = groupID

			_, err := s.exec(ctx, tx,
				`INSERT INTO settlements (seq, `+settlementColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				i, settlement.ID, settlement.GroupID, settlement.From, settlement.To,
				settlement.Amount, settlement.IsSettled, settlement.SettledAt, settlement.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert settlement: %w", err)
			}
		}
		return nil
	})
}

// ListSettlementsByGroup retrieves all settlements for a group in generation order.
func (s *Store) ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := s.query(ctx, s.conn(),
		`SELECT `+settlementColumns+` FROM settlements WHERE group_id = ? ORDER BY seq`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	settlements := []*models.Settlement{}
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}

// GetSettlement retrieves a settlement by ID.
func (s *Store) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	settlement, err := scanSettlement(s.queryRow(ctx, s.conn(),
		`SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, settlementID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// SetSettled updates the paid annotation of a settlement.
func (s *Store) SetSettled(ctx context.Context, settlementID string, settled bool, settledAt int64) error {
	if !settled {
		settledAt = 0
	}
	res, err := s.exec(ctx, s.conn(),
		"UPDATE settlements SET is_settled = ?, settled_at = ? WHERE id = ?",
		settled, settledAt, settlementID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	return mustAffect(res, "settlement", settlementID)
}

func scanSettlement(row scanner) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	err := row.Scan(
		&settlement.ID, &settlement.GroupID, &settlement.From, &settlement.To,
		&settlement.Amount, &settlement.IsSettled, &settlement.SettledAt, &settlement.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return settlement, nil
}
