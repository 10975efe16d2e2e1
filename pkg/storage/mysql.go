package storage

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store interface using MySQL backend
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore creates a new MySQL-backed store. The DSN is taken from
// the database path configuration field and must include parseTime=true
// so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	s := &MySQLStore{db: db}
	if err := s.initDB(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS dispatches (
			id VARCHAR(36) PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			delivered INT NOT NULL,
			total INT NOT NULL,
			outcome VARCHAR(16) NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_dispatches_created_at (created_at)
		)`)
	return err
}

// RecordDispatch persists the outcome of one broadcast
func (s *MySQLStore) RecordDispatch(d *Dispatch) error {
	_, err := s.db.Exec(`
		INSERT INTO dispatches (id, filename, delivered, total, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.Delivered, d.Total, string(d.Outcome), d.CreatedAt,
	)
	return err
}

// RecentDispatches returns up to limit records, most recent first
func (s *MySQLStore) RecentDispatches(limit int) ([]*Dispatch, error) {
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
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
