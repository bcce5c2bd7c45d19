package swap

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed Ledger. Records persist across restarts; a file
// lock serializes writers from concurrent processes.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

var _ Ledger = (*Store)(nil)

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create swap store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create swap lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open swap sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS swaps (
			swap_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			source_chain TEXT NOT NULL,
			target_chain TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_swaps_status_created ON swaps(status, created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init swap schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Append(r Record) (Record, error) {
	if strings.TrimSpace(r.SwapID) == "" {
		return Record{}, fmt.Errorf("append swap: missing swap id")
	}
	if err := s.save(r); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *Store) FindByID(swapID string) (Record, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM swaps WHERE swap_id = ?", swapID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, &NotFoundError{Kind: "swap", ID: swapID}
		}
		return Record{}, fmt.Errorf("read swap: %w", err)
	}
	return decodeRecord(payload)
}

func (s *Store) MostRecent() (Record, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM swaps ORDER BY created_at DESC, rowid DESC LIMIT 1").Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, &NotFoundError{Kind: "swap"}
		}
		return Record{}, fmt.Errorf("read latest swap: %w", err)
	}
	return decodeRecord(payload)
}

func (s *Store) UpdateStatus(swapID string, status Status, sourceTxHash, targetTxHash string) (Record, error) {
	r, err := s.FindByID(swapID)
	if err != nil {
		return Record{}, err
	}
	r.Status = status
	if strings.TrimSpace(sourceTxHash) != "" {
		r.SourceTxHash = strings.TrimSpace(sourceTxHash)
	}
	if strings.TrimSpace(targetTxHash) != "" {
		r.TargetTxHash = strings.TrimSpace(targetTxHash)
	}
	if err := s.save(r); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *Store) List(status Status, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.Query("SELECT payload FROM swaps ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM swaps WHERE status = ? ORDER BY created_at DESC, rowid DESC LIMIT ?", string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}
		r, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}
	return records, nil
}

func (s *Store) save(r Record) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock swap store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock swap store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal swap record: %w", err)
	}
	created := r.Timestamp
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO swaps (swap_id, status, source_chain, target_chain, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(swap_id) DO UPDATE SET
			status=excluded.status,
			payload=excluded.payload
	`, r.SwapID, string(r.Status), r.SourceChain, r.TargetChain, created.UnixMilli(), payload)
	if err != nil {
		return fmt.Errorf("save swap record: %w", err)
	}
	return nil
}

func decodeRecord(payload []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(payload, &r); err != nil {
		return Record{}, fmt.Errorf("decode swap payload: %w", err)
	}
	return r, nil
}
