package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// StoreError wraps a failed state store operation
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("state store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("state store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Dialect selects SQL syntax differences between backends
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStateStore implements repo.StateStore on a single kv_state table
type SQLStateStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLiteStateStore opens (or creates) a sqlite-backed state store
func NewSQLiteStateStore(dbPath string) (*SQLStateStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	return newSQLStateStore(db, DialectSQLite)
}

// NewPostgresStateStore connects to Postgres through the pgx database/sql driver
func NewPostgresStateStore(dsn string) (*SQLStateStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newSQLStateStore(db, DialectPostgres)
}

func newSQLStateStore(db *sql.DB, dialect Dialect) (*SQLStateStore, error) {
	valueType := "BLOB"
	if dialect == DialectPostgres {
		valueType = "BYTEA"
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_state (
			key TEXT PRIMARY KEY,
			value ` + valueType + ` NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv_state table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_kv_state_expires ON kv_state(expires_at)`)

	return &SQLStateStore{db: db, dialect: dialect, now: time.Now}, nil
}

// rebind rewrites ? placeholders to $n for Postgres
func (s *SQLStateStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStateStore) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *SQLStateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value, expires_at FROM kv_state WHERE key = ?`), key).
		Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Op: "get", Key: key, Err: err}
	}
	if expiresAt > 0 && expiresAt <= s.now().UnixMilli() {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLStateStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO kv_state (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`), key, value, s.expiry(ttl))
	if err != nil {
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *SQLStateStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	defer tx.Rollback()

	query := s.rebind(`DELETE FROM kv_state WHERE key = ?`)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, query, k); err != nil {
			return &StoreError{Op: "delete", Key: k, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	return nil
}

func (s *SQLStateStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT key FROM kv_state
		WHERE substr(key, 1, ?) = ? AND (expires_at = 0 OR expires_at > ?)
		ORDER BY key
	`), len(prefix), prefix, s.now().UnixMilli())
	if err != nil {
		return nil, &StoreError{Op: "keys", Key: prefix, Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &StoreError{Op: "keys", Key: prefix, Err: err}
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "keys", Key: prefix, Err: err}
	}
	return keys, nil
}

// PurgeExpired deletes expired rows and returns how many were removed
func (s *SQLStateStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM kv_state WHERE expires_at > 0 AND expires_at <= ?`), s.now().UnixMilli())
	if err != nil {
		return 0, &StoreError{Op: "purge", Err: err}
	}
	return res.RowsAffected()
}

func (s *SQLStateStore) Close() error {
	return s.db.Close()
}

var _ repo.StateStore = (*SQLStateStore)(nil)
