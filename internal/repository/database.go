package repository

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names as registered with database/sql.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCgo     = "sqlite3" // github.com/mattn/go-sqlite3
)

// InitDB opens the task database with the named driver and creates the
// schema if needed.
func InitDB(driver, dbPath string) (*sql.DB, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverCgo:
	default:
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("Error trying to open DB: %w", err)
	}
	// One connection keeps in-memory databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Error trying to connect: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("Error trying to create schema: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	schema := `
    CREATE TABLE IF NOT EXISTS tasks (
        TaskID TEXT PRIMARY KEY,
        Project TEXT NOT NULL,
        Milestone TEXT NOT NULL,
        Task TEXT NOT NULL,
        DependsOn TEXT DEFAULT '',
        EstimatedHours REAL NOT NULL,
        Priority TEXT NOT NULL,
        StartDate TEXT NOT NULL,
        DueDate TEXT NOT NULL,
        Owner TEXT NOT NULL,
        Status TEXT DEFAULT 'Pending',
        ActualHours REAL DEFAULT 0,
        ActualSeconds INTEGER DEFAULT 0,
        InProgressStart TEXT,
        LastComment TEXT,
        CommentLog TEXT,
        LastUpdated TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(Owner);
    CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(Project);
    CREATE INDEX IF NOT EXISTS idx_tasks_project_milestone ON tasks(Project, Milestone);
    CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(Status);

    CREATE TABLE IF NOT EXISTS store_meta (
        id INTEGER PRIMARY KEY CHECK (id = 1),
        revision INTEGER NOT NULL DEFAULT 0
    );
    INSERT OR IGNORE INTO store_meta (id, revision) VALUES (1, 0);

    CREATE TRIGGER IF NOT EXISTS tasks_revision_insert AFTER INSERT ON tasks
    BEGIN
        UPDATE store_meta SET revision = revision + 1 WHERE id = 1;
    END;

    CREATE TRIGGER IF NOT EXISTS tasks_revision_update AFTER UPDATE ON tasks
    BEGIN
        UPDATE store_meta SET revision = revision + 1 WHERE id = 1;
    END;

    CREATE TRIGGER IF NOT EXISTS tasks_revision_delete AFTER DELETE ON tasks
    BEGIN
        UPDATE store_meta SET revision = revision + 1 WHERE id = 1;
    END;
    `

	_, err := db.Exec(schema)
	return err
}
