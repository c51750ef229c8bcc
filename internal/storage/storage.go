// Package storage persists game saves in a SQLite file. One row per
// session holds the seed, the player record, and the materialized
// caches; snapshots of evicted caches live in a companion table keyed
// by cell so a large explored area never bloats the main row.
package storage

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

	_ "modernc.org/sqlite"

	"geocoin-carrier/server/internal/save"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	session_id TEXT PRIMARY KEY,
	seed       TEXT NOT NULL,
	player     TEXT NOT NULL,
	caches     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cache_snapshots (
	session_id TEXT NOT NULL,
	i          INTEGER NOT NULL,
	j          INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, i, j)
);
`

// Store wraps the SQLite handle for save persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the save database at path and applies
// the schema. The parent directory is created on demand.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// OpenMemory opens an in-memory store, for tests.
func OpenMemory() (*Store, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// The pool must not open a second connection: each in-memory
	// connection would see its own empty database.
	sqlDB.SetMaxOpenConns(1)
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveGame writes a full save document for the session in one
// transaction, replacing any prior save.
func (s *Store) SaveGame(ctx context.Context, sessionID string, doc save.Document) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage not initialized")
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	playerJSON, err := json.Marshal(doc.Player)
	if err != nil {
		return fmt.Errorf("encode player: %w", err)
	}
	cachesJSON, err := json.Marshal(doc.Caches)
	if err != nil {
		return fmt.Errorf("encode caches: %w", err)
	}

	now := time.Now().UTC().UnixMilli()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO games (session_id, seed, player, caches, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	seed = excluded.seed,
	player = excluded.player,
	caches = excluded.caches,
	updated_at = excluded.updated_at
`, sessionID, doc.Seed, string(playerJSON), string(cachesJSON), now); err != nil {
		return fmt.Errorf("upsert game row: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_snapshots WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	for _, snap := range doc.Snapshots {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cache_snapshots (session_id, i, j, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
`, sessionID, snap.I, snap.J, string(snap.Payload), now); err != nil {
			return fmt.Errorf("insert snapshot %d:%d: %w", snap.I, snap.J, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}

// LoadGame reads the save document for a session. The boolean reports
// presence: false with a nil error means no save exists yet.
func (s *Store) LoadGame(ctx context.Context, sessionID string) (save.Document, bool, error) {
	if s == nil || s.sqlDB == nil {
		return save.Document{}, false, fmt.Errorf("storage not initialized")
	}

	var (
		doc        save.Document
		playerJSON string
		cachesJSON string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT seed, player, caches FROM games WHERE session_id = ?`, sessionID).
		Scan(&doc.Seed, &playerJSON, &cachesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return save.Document{}, false, nil
	}
	if err != nil {
		return save.Document{}, false, fmt.Errorf("load game row: %w", err)
	}

	if err := json.Unmarshal([]byte(playerJSON), &doc.Player); err != nil {
		return save.Document{}, false, fmt.Errorf("decode player: %w", err)
	}
	if err := json.Unmarshal([]byte(cachesJSON), &doc.Caches); err != nil {
		return save.Document{}, false, fmt.Errorf("decode caches: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT i, j, payload FROM cache_snapshots WHERE session_id = ? ORDER BY i, j`, sessionID)
	if err != nil {
		return save.Document{}, false, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap    save.Snapshot
			payload string
		)
		if err := rows.Scan(&snap.I, &snap.J, &payload); err != nil {
			return save.Document{}, false, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.Payload = json.RawMessage(payload)
		doc.Snapshots = append(doc.Snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return save.Document{}, false, fmt.Errorf("iterate snapshots: %w", err)
	}

	return doc, true, nil
}

// DeleteGame drops the save for a session, if any.
func (s *Store) DeleteGame(ctx context.Context, sessionID string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage not initialized")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM games WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete game row: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_snapshots WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}
