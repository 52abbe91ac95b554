package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyscope/internal/core/config"
	"pyscope/internal/core/errors"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(map[string]string{"tok-1": "alice", " ": "nobody"})
	ctx := context.Background()

	owner, err := p.Resolve(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	owner, err = p.Resolve(ctx, "Bearer tok-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	_, err = p.Resolve(ctx, "tok-2")
	assert.True(t, errors.IsCode(err, errors.CodeUnauthenticated))
	_, err = p.Resolve(ctx, "")
	assert.True(t, errors.IsCode(err, errors.CodeUnauthenticated))
}

func TestSQLiteProvider_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "identity.db"), time.Second)
	require.NoError(t, err)
	defer p.Close()

	token, err := p.Issue(ctx, "alice")
	require.NoError(t, err)
	_, err = uuid.Parse(token)
	require.NoError(t, err)

	owner, err := p.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	owner, err = p.Resolve(ctx, "bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	other, err := p.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	require.NoError(t, p.Revoke(ctx, token))
	_, err = p.Resolve(ctx, token)
	assert.True(t, errors.IsCode(err, errors.CodeUnauthenticated))

	owner, err = p.Resolve(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	err = p.Revoke(ctx, token)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestSQLiteProvider_StoresHashesOnly(t *testing.T) {
	ctx := context.Background()
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "identity.db"), time.Second)
	require.NoError(t, err)
	defer p.Close()

	token, err := p.Issue(ctx, "bob")
	require.NoError(t, err)

	var stored string
	require.NoError(t, p.db.QueryRow(`SELECT token_hash FROM tokens WHERE owner = 'bob'`).Scan(&stored))
	assert.NotEqual(t, token, stored)
	assert.Equal(t, hashToken(token), stored)
	assert.Len(t, stored, 64)
}

func TestSQLiteProvider_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	p, err := OpenSQLite(filepath.Join(t.TempDir(), "identity.db"), time.Second)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Issue(ctx, "no/slashes")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	_, err = p.Resolve(ctx, "unknown")
	assert.True(t, errors.IsCode(err, errors.CodeUnauthenticated))

	err = p.Revoke(ctx, "  ")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestOpen(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	paths, err := config.ResolvePaths(cfg, t.TempDir())
	require.NoError(t, err)

	p, err := Open(cfg, paths)
	require.NoError(t, err)
	_, ok := p.(*SQLiteProvider)
	assert.True(t, ok)
	require.NoError(t, p.Close())

	cfg.Identity.Backend = config.BackendStatic
	cfg.Identity.Tokens = map[string]string{"t": "alice"}
	p, err = Open(cfg, paths)
	require.NoError(t, err)
	owner, err := p.Resolve(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}
