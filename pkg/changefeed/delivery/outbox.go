package delivery

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteOutbox is a Sink that stores batches durably so a relay can forward
// them later. Delivering the same batch twice stores it once.
type SQLiteOutbox struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Sink = (*SQLiteOutbox)(nil)

// NewSQLiteOutbox opens (or creates) an outbox database.
// The path should be a file path (e.g., "./outbox.db") or ":memory:" for testing.
func NewSQLiteOutbox(path string) (*SQLiteOutbox, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL UNIQUE,
			unit_of_work_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			payload BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteOutbox{db: db}, nil
}

// Deliver implements Sink.
func (o *SQLiteOutbox) Deliver(ctx context.Context, b Batch) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return Permanent(fmt.Errorf("encode batch: %w", err))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return Permanent(ErrOutboxClosed)
	}

	timestamp := b.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	_, err = o.db.ExecContext(ctx, `
		INSERT INTO outbox (batch_id, unit_of_work_id, created_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(batch_id) DO NOTHING
	`, b.ID, b.UnitOfWorkID, timestamp.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		return fmt.Errorf("store batch: %w", err)
	}
	return nil
}

// List returns up to limit stored batches in delivery order.
// limit <= 0 means all.
func (o *SQLiteOutbox) List(ctx context.Context, limit int) ([]Batch, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return nil, ErrOutboxClosed
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := o.db.QueryContext(ctx, `
		SELECT payload FROM outbox
		ORDER BY seq
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		var b Batch
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// Delete removes a forwarded batch.
func (o *SQLiteOutbox) Delete(ctx context.Context, batchID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutboxClosed
	}

	res, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE batch_id = ?`, batchID)
	if err != nil {
		return fmt.Errorf("delete batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored batches.
func (o *SQLiteOutbox) Count(ctx context.Context) (int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return 0, ErrOutboxClosed
	}

	var n int
	if err := o.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (o *SQLiteOutbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.closed = true
	return o.db.Close()
}
