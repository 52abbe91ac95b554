package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "pyscope/internal/core/errors"
	"pyscope/internal/data/filestore"
)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
  token_hash TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  created_at_utc TEXT NOT NULL,
  revoked_at_utc TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tokens_owner ON tokens(owner);
`

// SQLiteProvider stores SHA-256 hashes of issued tokens. The raw token is
// only returned once, by Issue.
type SQLiteProvider struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Provider = (*SQLiteProvider)(nil)

func OpenSQLite(path string, busyTimeout time.Duration) (*SQLiteProvider, error) {
	db, cleanPath, err := filestore.OpenDB(path, busyTimeout)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize identity schema %q: %w", cleanPath, err)
	}
	return &SQLiteProvider{db: db}, nil
}

func (p *SQLiteProvider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Issue creates a new random token for owner.
func (p *SQLiteProvider) Issue(ctx context.Context, owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if err := filestore.DefaultPolicy().CheckOwner(owner); err != nil {
		return "", err
	}
	token := uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()
	err := filestore.WithRetry("issue token", func() error {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO tokens (token_hash, owner, created_at_utc) VALUES (?, ?, ?)`,
			hashToken(token), owner, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return "", domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeInternal, "issue token"), domainerrors.CtxOwner, owner)
	}
	return token, nil
}

// Revoke disables a token. Revoking an unknown token is NOT_FOUND.
func (p *SQLiteProvider) Revoke(ctx context.Context, credential string) error {
	token := normalize(credential)
	if token == "" {
		return domainerrors.New(domainerrors.CodeValidationError, "token must not be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var affected int64
	err := filestore.WithRetry("revoke token", func() error {
		res, err := p.db.ExecContext(ctx,
			`UPDATE tokens SET revoked_at_utc = ? WHERE token_hash = ? AND revoked_at_utc = ''`,
			time.Now().UTC().Format(time.RFC3339Nano), hashToken(token))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "revoke token")
	}
	if affected == 0 {
		return domainerrors.New(domainerrors.CodeNotFound, "token not found or already revoked")
	}
	return nil
}

func (p *SQLiteProvider) Resolve(ctx context.Context, credential string) (string, error) {
	token := normalize(credential)
	if token == "" {
		return "", unauthenticated()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var owner, revoked string
	err := filestore.WithRetry("resolve token", func() error {
		return p.db.QueryRowContext(ctx,
			`SELECT owner, revoked_at_utc FROM tokens WHERE token_hash = ?`, hashToken(token)).Scan(&owner, &revoked)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", unauthenticated()
	}
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "resolve token")
	}
	if revoked != "" {
		return "", unauthenticated()
	}
	return owner, nil
}
