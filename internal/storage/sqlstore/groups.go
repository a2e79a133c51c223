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

// CreateGroup persists a new group together with its members.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate ID if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.exec(ctx, tx,
			"INSERT INTO expense_groups (id, name, created_at, created_by) VALUES (?, ?, ?, ?)",
			group.ID, group.Name, group.CreatedAt, group.CreatedBy,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}
		return s.insertMembers(ctx, tx, group.ID, group.Members)
	})
}

// GetGroup retrieves a group by ID, including its members.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.queryRow(ctx, s.conn(),
		"SELECT id, name, created_at, created_by FROM expense_groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.CreatedAt, &group.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	rows, err := s.query(ctx, s.conn(),
		"SELECT identity FROM group_members WHERE group_id = ? ORDER BY identity",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		group.Members = append(group.Members, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return group, nil
}

// ListGroupsByMember retrieves every group identity belongs to, newest first.
func (s *Store) ListGroupsByMember(ctx context.Context, identity string) ([]*models.Group, error) {
	rows, err := s.query(ctx, s.conn(),
		`SELECT g.id, g.name, g.created_at, g.created_by
		 FROM expense_groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.identity = ?
		 ORDER BY g.created_at DESC, g.id`,
		identity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var groups []*models.Group
	byID := make(map[string]*models.Group)
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.CreatedAt, &group.CreatedBy); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
		byID[group.ID] = group
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	if len(groups) == 0 {
		return groups, nil
	}

	memberRows, err := s.query(ctx, s.conn(),
		`SELECT group_id, identity FROM group_members
		 WHERE group_id IN (SELECT group_id FROM group_members WHERE identity = ?)
		 ORDER BY group_id, identity`,
		identity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var groupID, member string
		if err := memberRows.Scan(&groupID, &member); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		if group, ok := byID[groupID]; ok {
			group.Members = append(group.Members, member)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return groups, nil
}

// AddGroupMembers adds identities to an existing group.
func (s *Store) AddGroupMembers(ctx context.Context, groupID string, identities []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := s.queryRow(ctx, tx, "SELECT 1 FROM expense_groups WHERE id = ?", groupID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check group existence: %w", err)
		}
		return s.insertMembers(ctx, tx, groupID, identities)
	})
}

// DeleteGroup removes a group. Members, expenses and settlements cascade.
func (s *Store) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.exec(ctx, s.conn(), "DELETE FROM expense_groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return mustAffect(res, "group", groupID)
}

func (s *Store) insertMembers(ctx context.Context, tx *sql.Tx, groupID string, identities []string) error {
	for _, identity := range identities {
		_, err := s.exec(ctx, tx,
			"INSERT INTO group_members (group_id, identity) VALUES (?, ?) ON CONFLICT DO NOTHING",
			groupID, identity,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
	}
	return nil
}
