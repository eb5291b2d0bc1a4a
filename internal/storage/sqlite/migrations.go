package sqlite

import "database/sql"

// schema sets up the database. It runs on startup to ensure tables exist.
// Ledger order is (date, seq); seq records insertion order for ties.
// IMPORTANT: projects must be created BEFORE expenses due to the foreign key.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS expenses (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    project_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    date INTEGER NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    where_made TEXT NOT NULL DEFAULT '',
    what_purchased TEXT NOT NULL DEFAULT '',
    receipt_image BLOB,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_expenses_project_id ON expenses(project_id, date, seq);
CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects(created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
