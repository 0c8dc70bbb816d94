package label_store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"candlelab/go_src/chart_exceptions"
	"candlelab/go_src/schema"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
)

const (
	duckDBMemoryLimit = "256MB"
	duckDBThreads     = "2"
)

const createLabelsTableSQL = `
CREATE TABLE IF NOT EXISTS labels (
	id          VARCHAR PRIMARY KEY,
	start_index BIGINT NOT NULL,
	end_index   BIGINT NOT NULL,
	category    VARCHAR NOT NULL,
	created_at  TIMESTAMP NOT NULL
);`

// DB persists labels in a DuckDB file. Pass useInMemory=true in tests to
// avoid touching the filesystem.
type DB struct {
	db       *sql.DB
	dbPath   string
	isTestDB bool
}

// OpenDB opens (creating if needed) the label database at dbPath and
// ensures the labels table exists.
func OpenDB(dbPath string, useInMemory bool) (*DB, error) {
	if useInMemory {
		dbPath = ":memory:"
	} else {
		if dbPath == "" {
			return nil, &chart_exceptions.LabelStoreError{
				Message:   "label database path not provided",
				Operation: "open",
			}
		}
		dbDir := filepath.Dir(dbPath)
		if _, err := os.Stat(dbDir); os.IsNotExist(err) {
			if mkDirErr := os.MkdirAll(dbDir, 0755); mkDirErr != nil {
				return nil, fmt.Errorf("failed to create label database directory '%s': %w", dbDir, mkDirErr)
			}
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open label database at %s: %w", dbPath, err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping label database at %s: %w", dbPath, err)
	}

	initialConfigs := []string{
		fmt.Sprintf("SET memory_limit='%s';", duckDBMemoryLimit),
		fmt.Sprintf("SET threads=%s;", duckDBThreads),
	}
	for _, confSQL := range initialConfigs {
		if _, err := db.Exec(confSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply initial config '%s': %w", confSQL, err)
		}
	}

	if _, err := db.Exec(createLabelsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create labels table: %w", err)
	}

	return &DB{db: db, dbPath: dbPath, isTestDB: useInMemory}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Save writes the store's full label set, replacing whatever the table
// held. Runs in one transaction so a crash never leaves a partial set.
func (d *DB) Save(store *Store) error {
	tx, err := d.db.Begin()
	if err != nil {
		return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "save"}
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM labels"); err != nil {
		return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "save"}
	}
	stmt, err := tx.Prepare("INSERT INTO labels (id, start_index, end_index, category, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "save"}
	}
	defer stmt.Close()

	for _, label := range store.All() {
		_, err := stmt.Exec(label.ID.String(), label.StartIndex, label.EndIndex, label.Category, label.CreatedAt)
		if err != nil {
			return &chart_exceptions.LabelStoreError{
				Message:   fmt.Sprintf("inserting label %s: %v", label.ID, err),
				Operation: "save",
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "save"}
	}

	store.markClean()
	return nil
}

// LoadInto replaces the store's contents with the persisted label set.
func (d *DB) LoadInto(store *Store) error {
	rows, err := d.db.Query("SELECT id, start_index, end_index, category, created_at FROM labels ORDER BY start_index")
	if err != nil {
		return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "load"}
	}
	defer rows.Close()

	var labels []schema.Label
	for rows.Next() {
		var label schema.Label
		var id string
		if err := rows.Scan(&id, &label.StartIndex, &label.EndIndex, &label.Category, &label.CreatedAt); err != nil {
			return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "load"}
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return &chart_exceptions.LabelStoreError{
				Message:   fmt.Sprintf("invalid label id %q: %v", id, err),
				Operation: "load",
			}
		}
		label.ID = parsed
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return &chart_exceptions.LabelStoreError{Message: err.Error(), Operation: "load"}
	}

	store.replaceAll(labels)
	return nil
}
