package usage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCounter persists daily counts in a local SQLite file so quotas
// survive restarts of a single-instance deployment.
type SQLiteCounter struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteCounter opens (or creates) the counter database at path.
func NewSQLiteCounter(path string) (*SQLiteCounter, error) {
	if path == "" {
		path = "./data/usage.db"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	c := &SQLiteCounter{db: db, now: time.Now}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCounter) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_expires_at ON usage(expires_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the live count for key.
func (c *SQLiteCounter) Get(ctx context.Context, key string) (int, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT count FROM usage WHERE key = ? AND expires_at > ?`,
		key, c.now().UnixMilli(),
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}
	return count, nil
}

// Increment adds one to key, restarting it if expired, and refreshes the ttl.
func (c *SQLiteCounter) Increment(ctx context.Context, key string, ttl time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	nowMs := now.UnixMilli()
	expiresAt := now.Add(ttl).UnixMilli()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage (key, count, expires_at) VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN usage.expires_at <= ? THEN 1 ELSE usage.count + 1 END,
			expires_at = excluded.expires_at
	`, key, expiresAt, nowMs)
	if err != nil {
		return 0, fmt.Errorf("incrementing usage: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage WHERE expires_at <= ?`, nowMs); err != nil {
		return 0, fmt.Errorf("pruning usage: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count FROM usage WHERE key = ?`, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}

	return count, tx.Commit()
}

// Close closes the database connection.
func (c *SQLiteCounter) Close() error {
	return c.db.Close()
}
