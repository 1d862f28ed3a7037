// store.go — SQLite-backed redirect log.
// Append-with-cap persistence for finalized redirect records: newest-first
// listing, a hard cap on row count, and whole-log clear. The log is
// advisory/observational, not a system of record; a small last-write-wins
// race between a finalization and the cap trim is acceptable.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hoptrace/hoptrace/internal/types"
)

// DefaultMaxRecords is the hard cap on persisted records when none is
// configured.
const DefaultMaxRecords = 500

// Store persists finalized redirect records to SQLite.
type Store struct {
	db         *sql.DB
	maxRecords int
}

// New opens (or creates) the redirect log database at dbPath. Use ":memory:"
// for an ephemeral store.
func New(dbPath string, maxRecords int) (*Store, error) {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, maxRecords: maxRecords}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS redirect_log (
			id TEXT PRIMARY KEY,
			tab_id INTEGER NOT NULL,
			initiated_at_ms INTEGER NOT NULL,
			initial_url TEXT NOT NULL,
			final_url TEXT,
			final_status INTEGER,
			classification TEXT,
			record TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_redirect_log_initiated ON redirect_log(initiated_at_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_redirect_log_tab ON redirect_log(tab_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Append inserts a finalized record and trims the log back under the cap,
// oldest rows first.
func (s *Store) Append(rec types.RedirectRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO redirect_log
		 (id, tab_id, initiated_at_ms, initial_url, final_url, final_status, classification, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TabID, rec.InitiatedAtMs, rec.InitialURL,
		rec.FinalURL, rec.FinalStatus, rec.Classification, string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM redirect_log WHERE id NOT IN (
			SELECT id FROM redirect_log ORDER BY initiated_at_ms DESC, id LIMIT ?
		)`, s.maxRecords,
	)
	if err != nil {
		return fmt.Errorf("failed to trim redirect log: %w", err)
	}
	return nil
}

// List returns up to limit persisted records, newest first. limit <= 0 means
// the full capped log.
func (s *Store) List(limit int) ([]types.RedirectRecord, error) {
	if limit <= 0 || limit > s.maxRecords {
		limit = s.maxRecords
	}
	rows, err := s.db.Query(
		`SELECT record FROM redirect_log ORDER BY initiated_at_ms DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query redirect log: %w", err)
	}
	defer rows.Close() //nolint:errcheck // deferred close

	var out []types.RedirectRecord
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		var rec types.RedirectRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			continue // skip malformed rows rather than failing the listing
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of persisted records.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM redirect_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Clear removes every persisted record.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM redirect_log`); err != nil {
		return fmt.Errorf("failed to clear redirect log: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
