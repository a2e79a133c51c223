package sqlstore

import "database/sql"

// schema is valid for both SQLite and PostgreSQL. It runs on startup to
// ensure tables exist.
// expense_groups must be created before every table referencing it.
const schema = `
CREATE TABLE IF NOT EXISTS expense_groups (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    created_by TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id TEXT NOT NULL,
    identity TEXT NOT NULL,
    PRIMARY KEY (group_id, identity),
    FOREIGN KEY (group_id) REFERENCES expense_groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    payer TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    created_by TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (group_id) REFERENCES expense_groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    identity TEXT NOT NULL,
    PRIMARY KEY (expense_id, identity),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS settlements (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    from_identity TEXT NOT NULL,
    to_identity TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    is_settled BOOLEAN NOT NULL DEFAULT FALSE,
    settled_at BIGINT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    FOREIGN KEY (group_id) REFERENCES expense_groups(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_members_identity ON group_members(identity);
CREATE INDEX IF NOT EXISTS idx_expenses_group_id ON expenses(group_id);
CREATE INDEX IF NOT EXISTS idx_expense_participants_expense_id ON expense_participants(expense_id);
CREATE INDEX IF NOT EXISTS idx_settlements_group_id ON settlements(group_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
