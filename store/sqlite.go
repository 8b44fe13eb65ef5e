package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register the "sqlite" driver

	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/design"
)

const schema = `
CREATE TABLE IF NOT EXISTS ar_designs (
	key       TEXT PRIMARY KEY,
	payload   BLOB NOT NULL,
	stored_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ar_designs_stored_at ON ar_designs (stored_at);
`

// SQLite is a Store in a SQLite database file. Every process opening the
// same file sees the same entries, which is what lets a second device or
// session pick up a handoff.
type SQLite struct {
	opts options
	db   *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLite{opts: buildOptions(opts), db: db}, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// cutoff returns the stored_at value below which an entry is older than
// maxAge. stored_at counts whole milliseconds, so the exact cutoff is
// rounded up: stored_at < cutoff then matches expired for any clock.
func (s *SQLite) cutoff(maxAge time.Duration) int64 {
	c := s.opts.now().Add(-maxAge)
	ms := c.UnixMilli()
	if c.After(time.UnixMilli(ms)) {
		ms++
	}
	return ms
}

// Put implements Store.
func (s *SQLite) Put(ctx context.Context, id string, snap *design.Snapshot) error {
	payload, err := encodeFor(id, snap)
	if err != nil {
		return err
	}
	key := Key(id)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// An expired entry does not hold the id.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ar_designs WHERE key = ? AND stored_at < ?`, key, s.cutoff(s.opts.maxAge)); err != nil {
		return fmt.Errorf("store: put %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO ar_designs (key, payload, stored_at) VALUES (?, ?, ?)`,
		key, payload, s.opts.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: put %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit %s: %w", id, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, id string) (*design.Snapshot, error) {
	if !codec.ValidID(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	key := Key(id)
	var (
		payload  []byte
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM ar_designs WHERE key = ?`, key).Scan(&payload, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	if expired(s.opts.now(), time.UnixMilli(storedAt), s.opts.maxAge) {
		s.remove(ctx, key, storedAt)
		return nil, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	snap, err := decodeEntry(id, payload)
	if err != nil {
		s.remove(ctx, key, storedAt)
		return nil, err
	}
	return snap, nil
}

// remove deletes key if it was not rewritten since it was read.
func (s *SQLite) remove(ctx context.Context, key string, storedAt int64) {
	_, _ = s.db.ExecContext(ctx, `DELETE FROM ar_designs WHERE key = ? AND stored_at = ?`, key, storedAt)
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ar_designs WHERE key = ?`, Key(id)); err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

// Sweep implements Store.
func (s *SQLite) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = s.opts.maxAge
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM ar_designs WHERE stored_at < ?`, s.cutoff(maxAge))
	if err != nil {
		return 0, fmt.Errorf("store: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: sweep: %w", err)
	}
	return int(n), nil
}
