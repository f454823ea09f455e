package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

func stateDBPathFromDataDir(dataDir string) string {
	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	return filepath.Join(dataDir, "state", "ledger.db")
}

func openStateDB(dbPath string) (*sql.DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath+"?_foreign_keys=1&_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureStateTables(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ensureStateTables(db *sql.DB) error {
	if db == nil {
		return nil
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS seen_hashes (
			hash TEXT PRIMARY KEY,
			first_seen_unix INTEGER NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS credited_blocks (
			hash TEXT PRIMARY KEY,
			number INTEGER NOT NULL,
			nonce INTEGER NOT NULL,
			difficulty INTEGER NOT NULL,
			reward REAL NOT NULL,
			discovered_at_unix INTEGER NOT NULL
		)
	`); err != nil {
		return err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			block_hash TEXT NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL,
			created_at_unix INTEGER NOT NULL,
			confirmed_at_unix INTEGER
		)
	`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS transactions_block_idx ON transactions (block_hash)`); err != nil {
		return err
	}
	return nil
}

// stateStore archives crediting state so exactly-once holds across restarts.
// All methods are nil-safe: without a store the ledger degrades to in-memory
// dedup for the process lifetime.
type stateStore struct {
	db *sql.DB
}

func newStateStore(dataDir string) (*stateStore, error) {
	db, err := openStateDB(stateDBPathFromDataDir(dataDir))
	if err != nil {
		return nil, err
	}
	return &stateStore{db: db}, nil
}

// SeenHashes returns every hash ever credited, used to seed the ledger's
// dedup set at startup.
func (s *stateStore) SeenHashes() ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT hash FROM seen_hashes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// RecordCredit persists one newly credited block together with its pending
// transaction entry. INSERT OR IGNORE keeps replays harmless.
func (s *stateStore) RecordCredit(rec MinedBlockRecord, tx TransactionEntry) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO seen_hashes (hash, first_seen_unix) VALUES (?, ?)`,
		rec.Hash, rec.DiscoveredAt.Unix(),
	); err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO credited_blocks (hash, number, nonce, difficulty, reward, discovered_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Hash, int64(rec.Number), int64(rec.Nonce), int64(rec.Difficulty), rec.Reward, rec.DiscoveredAt.Unix(),
	); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO transactions (id, block_hash, amount, status, created_at_unix)
		 VALUES (?, ?, ?, ?, ?)`,
		tx.ID, tx.BlockHash, tx.Amount, string(tx.Status), tx.CreatedAt.Unix(),
	)
	return err
}

// ConfirmTransactions flips pending entries for the given block hash to
// completed.
func (s *stateStore) ConfirmTransactions(blockHash string, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(
		`UPDATE transactions SET status = ?, confirmed_at_unix = ? WHERE block_hash = ? AND status = ?`,
		string(txStatusCompleted), at.Unix(), blockHash, string(txStatusPending),
	)
	return err
}

// RewardTotal sums rewards over every block ever credited, evicted or not.
func (s *stateStore) RewardTotal() (float64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total float64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(reward), 0) FROM credited_blocks`).Scan(&total)
	return total, err
}

func (s *stateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
