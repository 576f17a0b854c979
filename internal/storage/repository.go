package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed snapshot keys. State and settings are stored as whole-blob
// snapshots, one row each.
const (
	stateKey    = "state"
	settingsKey = "settings"
)

// SQLiteRepository persists state snapshots and the mirror queue.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadState implements store.Persister. Absent snapshots return (nil, nil).
func (r *SQLiteRepository) LoadState(ctx context.Context) ([]byte, error) {
	return r.loadSnapshot(ctx, stateKey)
}

// SaveState implements store.Persister.
func (r *SQLiteRepository) SaveState(ctx context.Context, data []byte) error {
	return r.saveSnapshot(ctx, stateKey, data)
}

// LoadSettings implements store.Persister.
func (r *SQLiteRepository) LoadSettings(ctx context.Context) ([]byte, error) {
	return r.loadSnapshot(ctx, settingsKey)
}

// SaveSettings implements store.Persister.
func (r *SQLiteRepository) SaveSettings(ctx context.Context, data []byte) error {
	return r.saveSnapshot(ctx, settingsKey, data)
}

func (r *SQLiteRepository) loadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return body, nil
}

func (r *SQLiteRepository) saveSnapshot(ctx context.Context, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// PendingMirror is one queued mirror job: an account whose ledger changed
// and has not been pushed to the mirror spreadsheet yet.
type PendingMirror struct {
	ID          int64
	AccountName string
	Version     int64
	CreatedAt   time.Time
}

// EnqueueMirror records that an account changed at the given state version.
// The worker drains this queue; rows double as a fallback when AMQP
// messages are lost.
func (r *SQLiteRepository) EnqueueMirror(ctx context.Context, accountName string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mirror_queue (account_name, version, created_at) VALUES (?, ?, ?)`,
		accountName, version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue mirror: %w", err)
	}
	return nil
}

// PendingMirrors returns unmirrored queue entries, oldest first.
func (r *SQLiteRepository) PendingMirrors(ctx context.Context, limit int) ([]PendingMirror, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_name, version, created_at FROM mirror_queue
		 WHERE synced_at IS NULL AND sync_error = 0
		 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending mirrors: %w", err)
	}
	defer rows.Close()

	var pending []PendingMirror
	for rows.Next() {
		var p PendingMirror
		if err := rows.Scan(&p.ID, &p.AccountName, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending mirror: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkMirrored marks a queue entry as pushed.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mirror_queue SET synced_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	slog.InfoContext(ctx, "Mirror queue entry marked synced", "id", id)
	return nil
}

// MarkMirrorError flags a queue entry so the sweep stops retrying it.
func (r *SQLiteRepository) MarkMirrorError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE mirror_queue SET sync_error = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark mirror error: %w", err)
	}
	slog.WarnContext(ctx, "Mirror queue entry marked with error", "id", id)
	return nil
}
