// Package storage persists harvested contacts, metric roll-ups and
// action outcomes in a local SQLite database.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nvyas/linkpilot/internal/action"
	"github.com/nvyas/linkpilot/internal/harvest"
)

// Store wraps the SQLite database. It is safe for concurrent use; the
// driver serializes writers.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		listing TEXT NOT NULL,
		name TEXT,
		occupation TEXT,
		profile_link TEXT NOT NULL,
		avatar TEXT,
		harvested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, listing, profile_link)
	);

	CREATE TABLE IF NOT EXISTS metrics (
		account_id TEXT NOT NULL,
		name TEXT NOT NULL,
		count INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(account_id, name)
	);

	CREATE TABLE IF NOT EXISTS action_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		request_id TEXT,
		kind TEXT NOT NULL,
		target TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS company_follows (
		account_id TEXT NOT NULL,
		company_url TEXT NOT NULL,
		followed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(account_id, company_url)
	);

	CREATE INDEX IF NOT EXISTS idx_contacts_account ON contacts(account_id, listing);
	CREATE INDEX IF NOT EXISTS idx_results_account ON action_results(account_id, kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveContacts upserts harvested records under the account and listing
// they came from. Re-harvesting refreshes names and occupations instead
// of duplicating rows.
func (s *Store) SaveContacts(accountID, listing string, records []harvest.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO contacts (account_id, listing, name, occupation, profile_link, avatar, harvested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, listing, profile_link) DO UPDATE SET
			name = excluded.name,
			occupation = excluded.occupation,
			avatar = excluded.avatar,
			harvested_at = excluded.harvested_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare contact upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		if _, err := stmt.Exec(accountID, listing, rec.Name, rec.Occupation, rec.Key(), rec.Avatar, now); err != nil {
			return fmt.Errorf("failed to save contact %s: %w", rec.Key(), err)
		}
	}
	return tx.Commit()
}

// UpdateMetric records the latest count for one named metric.
func (s *Store) UpdateMetric(accountID, name string, count int) error {
	_, err := s.db.Exec(`
		INSERT INTO metrics (account_id, name, count, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(account_id, name) DO UPDATE SET
			count = excluded.count,
			updated_at = excluded.updated_at
	`, accountID, name, count)
	if err != nil {
		return fmt.Errorf("failed to update metric %s: %w", name, err)
	}
	return nil
}

// Metrics returns the stored counts keyed by metric name.
func (s *Store) Metrics(accountID string) (map[string]int, error) {
	rows, err := s.db.Query("SELECT name, count FROM metrics WHERE account_id = ?", accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[name] = count
	}
	return metrics, rows.Err()
}

// RecordResult appends one finished request to the action log.
func (s *Store) RecordResult(accountID string, res action.Result) error {
	_, err := s.db.Exec(`
		INSERT INTO action_results (account_id, request_id, kind, target, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, accountID, res.ID, string(res.Kind), res.Target, string(res.Outcome), res.Detail)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	return nil
}

// ResultTally returns per-outcome counts of recorded requests.
func (s *Store) ResultTally(accountID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT outcome, COUNT(*) FROM action_results
		WHERE account_id = ? GROUP BY outcome
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query result tally: %w", err)
	}
	defer rows.Close()

	tally := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		tally[outcome] = count
	}
	return tally, rows.Err()
}

// HasFollowedCompany reports whether the account has already followed
// the company. Implements action.FollowLedger.
func (s *Store) HasFollowedCompany(accountID, companyURL string) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM company_follows
		WHERE account_id = ? AND company_url = ?
	`, accountID, companyURL).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check company follow: %w", err)
	}
	return count > 0, nil
}

// RecordCompanyFollow marks the company as followed by the account.
func (s *Store) RecordCompanyFollow(accountID, companyURL string) error {
	_, err := s.db.Exec(`
		INSERT INTO company_follows (account_id, company_url)
		VALUES (?, ?)
		ON CONFLICT(account_id, company_url) DO NOTHING
	`, accountID, companyURL)
	if err != nil {
		return fmt.Errorf("failed to record company follow: %w", err)
	}
	return nil
}

var _ action.FollowLedger = (*Store)(nil)
