package filestore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyscope/internal/core/config"
	"pyscope/internal/core/errors"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "files.db"), time.Second, DefaultPolicy())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"disk":   NewDiskStore(afero.NewMemMapFs(), "/uploads", DefaultPolicy()),
		"sqlite": sqliteStore,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Write(ctx, "alice", "b.py", []byte("class B: pass\n")))
			require.NoError(t, store.Write(ctx, "alice", "a.py", []byte("x = 1\n")))
			require.NoError(t, store.Write(ctx, "bob", "c.py", []byte("")))

			data, err := store.Read(ctx, "alice", "b.py")
			require.NoError(t, err)
			assert.Equal(t, "class B: pass\n", string(data))

			require.NoError(t, store.Write(ctx, "alice", "b.py", []byte("class C: pass\n")))
			data, err = store.Read(ctx, "alice", "b.py")
			require.NoError(t, err)
			assert.Equal(t, "class C: pass\n", string(data))

			names, err := store.List(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"a.py", "b.py"}, names)

			empty, err := store.Read(ctx, "bob", "c.py")
			require.NoError(t, err)
			assert.Empty(t, empty)

			require.NoError(t, store.Delete(ctx, "alice", "a.py"))
			names, err = store.List(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{"b.py"}, names)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Read(ctx, "alice", "missing.py")
			assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)

			err = store.Delete(ctx, "alice", "missing.py")
			assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)

			names, err := store.List(ctx, "nobody")
			require.NoError(t, err)
			assert.NotNil(t, names)
			assert.Empty(t, names)
		})
	}
}

func TestStore_Validation(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Write(ctx, "alice", "notes.txt", []byte("x"))
			assert.True(t, errors.IsCode(err, errors.CodeInvalidExtension), "got %v", err)

			for _, bad := range []string{"../a.py", "dir/a.py", "..", ""} {
				err = store.Write(ctx, "alice", bad, []byte("x"))
				assert.True(t, errors.IsCode(err, errors.CodeValidationError), "%q: got %v", bad, err)
			}

			for _, owner := range []string{"", "..", "a/b", "has space"} {
				_, err = store.List(ctx, owner)
				assert.True(t, errors.IsCode(err, errors.CodeValidationError), "%q: got %v", owner, err)
			}
		})
	}
}

func TestStore_SizeCap(t *testing.T) {
	store := NewDiskStore(afero.NewMemMapFs(), "/uploads", Policy{Extensions: []string{".py"}, MaxBytes: 4})
	err := store.Write(context.Background(), "alice", "big.py", []byte("x = 12345\n"))
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestDiskStore_Layout(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewDiskStore(fs, "/uploads", DefaultPolicy())
	require.NoError(t, store.Write(context.Background(), "alice", "a.py", []byte("pass\n")))

	ok, err := afero.Exists(fs, "/uploads/alice/a.py")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, afero.WriteFile(fs, "/uploads/alice/readme.md", []byte("#"), 0o644))
	require.NoError(t, fs.MkdirAll("/uploads/alice/sub.py", 0o755))
	names, err := store.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py"}, names)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "files.db")
	store, err := OpenSQLite(path, time.Second, DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), "alice", "a.py", []byte("pass\n")))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path, time.Second, DefaultPolicy())
	require.NoError(t, err)
	defer store.Close()
	data, err := store.Read(context.Background(), "alice", "a.py")
	require.NoError(t, err)
	assert.Equal(t, "pass\n", string(data))
	assert.Equal(t, path, store.Path())
}

func TestSQLiteStore_RejectsDirectory(t *testing.T) {
	_, err := OpenSQLite(t.TempDir(), time.Second, DefaultPolicy())
	require.Error(t, err)
}

func TestPolicy_ValidFilename(t *testing.T) {
	p := Policy{Extensions: []string{".py", ".pyi"}}
	assert.True(t, p.ValidFilename("main.py"))
	assert.True(t, p.ValidFilename("stubs.PYI"))
	assert.False(t, p.ValidFilename(".py"))
	assert.False(t, p.ValidFilename("main"))
	assert.False(t, p.ValidFilename("main.txt"))
	assert.False(t, p.ValidFilename("pkg/main.py"))
	assert.False(t, p.ValidFilename(" main.py"))
}

func TestS3Store_Config(t *testing.T) {
	_, err := NewS3Store(config.S3Storage{Bucket: "b", AccessKey: "a", SecretKey: "s"}, DefaultPolicy())
	require.Error(t, err)
	_, err = NewS3Store(config.S3Storage{Endpoint: "localhost:9000", Bucket: "b"}, DefaultPolicy())
	require.Error(t, err)

	store, err := NewS3Store(config.S3Storage{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"}, DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", store.region)
	assert.Equal(t, config.BackendS3, store.Backend())

	err = store.Write(context.Background(), "alice", "a.txt", nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidExtension))
}

func TestS3Store_ErrorMapping(t *testing.T) {
	assert.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchBucket"}))
	assert.False(t, isNoSuchKey(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.Equal(t, "alice/a.py", objectKey("alice", "a.py"))

	store := &S3Store{bucket: "b"}
	err := store.readError(minio.ErrorResponse{Code: "NoSuchKey"}, "alice", "a.py")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestOpen(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	paths, err := config.ResolvePaths(cfg, t.TempDir())
	require.NoError(t, err)

	store, err := Open(cfg, paths)
	require.NoError(t, err)
	assert.Equal(t, config.BackendDisk, store.Backend())

	cfg.Storage.Backend = config.BackendSQLite
	store, err = Open(cfg, paths)
	require.NoError(t, err)
	assert.Equal(t, config.BackendSQLite, store.Backend())
	require.NoError(t, store.Close())

	cfg.Storage.Backend = "ftp"
	_, err = Open(cfg, paths)
	require.Error(t, err)
}

func TestS3Store_EnsureBucketRetriesAfterFailure(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(config.S3Storage{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Bucket:    "sources",
		AccessKey: "a",
		SecretKey: "s",
	}, DefaultPolicy())
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.ensureBucket(cancelled))
	assert.Zero(t, requests.Load())

	require.NoError(t, store.ensureBucket(context.Background()))
	seen := requests.Load()
	assert.NotZero(t, seen)

	require.NoError(t, store.ensureBucket(context.Background()))
	assert.Equal(t, seen, requests.Load())
}
