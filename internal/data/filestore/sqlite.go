package filestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pyscope/internal/core/config"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// SQLiteStore keeps file bodies in a single sqlite table keyed by
// (owner, filename).
type SQLiteStore struct {
	path   string
	db     *sql.DB
	mu     sync.Mutex
	policy Policy
}

var _ Store = (*SQLiteStore)(nil)

func OpenSQLite(path string, busyTimeout time.Duration, policy Policy) (*SQLiteStore, error) {
	db, cleanPath, err := OpenDB(path, busyTimeout)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &SQLiteStore{path: cleanPath, db: db, policy: policy}, nil
}

// OpenDB opens a sqlite database with the pragmas every pyscope store uses.
func OpenDB(path string, busyTimeout time.Duration) (*sql.DB, string, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, "", fmt.Errorf("sqlite path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, "", fmt.Errorf("sqlite path %q is a directory, expected file", cleanPath)
	}
	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create sqlite directory %q: %w", dir, err)
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open sqlite %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping sqlite %q: %w", cleanPath, err)
	}
	return db, cleanPath, nil
}

func (s *SQLiteStore) Backend() string { return config.BackendSQLite }

func (s *SQLiteStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Read(ctx context.Context, owner, filename string) ([]byte, error) {
	if err := s.policy.CheckKey(owner, filename); err != nil {
		return nil, err
	}
	record(s.Backend(), opRead)

	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := WithRetry("read file", func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT content FROM files WHERE owner = ? AND filename = ?`, owner, filename).Scan(&data)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(owner, filename)
	}
	if err != nil {
		return nil, storeError(err, s.Backend(), opRead, owner)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *SQLiteStore) Write(ctx context.Context, owner, filename string, data []byte) error {
	if err := s.policy.CheckWrite(owner, filename, data); err != nil {
		return err
	}
	record(s.Backend(), opWrite)
	if data == nil {
		data = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
INSERT INTO files (owner, filename, content, size, updated_at_utc)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(owner, filename) DO UPDATE SET
  content=excluded.content,
  size=excluded.size,
  updated_at_utc=excluded.updated_at_utc
`
	err := WithRetry("write file", func() error {
		_, err := s.db.ExecContext(ctx, query, owner, filename, data, len(data), time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return storeError(err, s.Backend(), opWrite, owner)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, owner, filename string) error {
	if err := s.policy.CheckKey(owner, filename); err != nil {
		return err
	}
	record(s.Backend(), opDelete)

	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := WithRetry("delete file", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE owner = ? AND filename = ?`, owner, filename)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return storeError(err, s.Backend(), opDelete, owner)
	}
	if affected == 0 {
		return notFound(owner, filename)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, owner string) ([]string, error) {
	if err := s.policy.CheckOwner(owner); err != nil {
		return nil, err
	}
	record(s.Backend(), opList)

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := WithRetry("list files", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `SELECT filename FROM files WHERE owner = ? ORDER BY filename ASC`, owner)
		return qErr
	})
	if err != nil {
		return nil, storeError(err, s.Backend(), opList, owner)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storeError(err, s.Backend(), opList, owner)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, s.Backend(), opList, owner)
	}
	return names, nil
}

// WithRetry retries fn while sqlite reports a lock conflict.
func WithRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
