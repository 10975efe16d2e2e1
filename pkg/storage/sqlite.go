package storage

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store interface using SQLite backend
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite serializes writes anyway, and :memory: databases are
	// per-connection; a single pooled connection avoids both problems.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db: db,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatches (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		delivered INTEGER NOT NULL,
		total INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dispatches_created_at ON dispatches(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordDispatch persists the outcome of one broadcast
func (s *SQLiteStore) RecordDispatch(d *Dispatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO dispatches (id, filename, delivered, total, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.Delivered, d.Total, string(d.Outcome), d.CreatedAt,
	)
	return err
}

// RecentDispatches returns up to limit records, most recent first
func (s *SQLiteStore) RecentDispatches(limit int) ([]*Dispatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, filename, delivered, total, outcome, created_at
		FROM dispatches ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Dispatch
	for rows.Next() {
		var d Dispatch
		var outcome string
		if err := rows.Scan(&d.ID, &d.Filename, &d.Delivered, &d.Total, &outcome, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Outcome = Outcome(outcome)
		list = append(list, &d)
	}
	return list, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
