package filestore

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"pyscope/internal/core/config"
)

// DiskStore keeps files at <root>/<owner>/<filename> on an afero filesystem.
type DiskStore struct {
	fs     afero.Fs
	root   string
	policy Policy
}

var _ Store = (*DiskStore)(nil)

func NewDiskStore(fs afero.Fs, root string, policy Policy) *DiskStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &DiskStore{fs: fs, root: filepath.Clean(root), policy: policy}
}

func (s *DiskStore) Backend() string { return config.BackendDisk }

func (s *DiskStore) Close() error { return nil }

func (s *DiskStore) Read(ctx context.Context, owner, filename string) ([]byte, error) {
	if err := s.policy.CheckKey(owner, filename); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record(s.Backend(), opRead)

	data, err := afero.ReadFile(s.fs, s.path(owner, filename))
	if os.IsNotExist(err) {
		return nil, notFound(owner, filename)
	}
	if err != nil {
		return nil, storeError(err, s.Backend(), opRead, owner)
	}
	return data, nil
}

func (s *DiskStore) Write(ctx context.Context, owner, filename string, data []byte) error {
	if err := s.policy.CheckWrite(owner, filename, data); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	record(s.Backend(), opWrite)

	dir := filepath.Join(s.root, owner)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return storeError(err, s.Backend(), opWrite, owner)
	}
	if err := afero.WriteFile(s.fs, s.path(owner, filename), data, 0o644); err != nil {
		return storeError(err, s.Backend(), opWrite, owner)
	}
	return nil
}

func (s *DiskStore) Delete(ctx context.Context, owner, filename string) error {
	if err := s.policy.CheckKey(owner, filename); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	record(s.Backend(), opDelete)

	err := s.fs.Remove(s.path(owner, filename))
	if os.IsNotExist(err) {
		return notFound(owner, filename)
	}
	if err != nil {
		return storeError(err, s.Backend(), opDelete, owner)
	}
	return nil
}

func (s *DiskStore) List(ctx context.Context, owner string) ([]string, error) {
	if err := s.policy.CheckOwner(owner); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record(s.Backend(), opList)

	entries, err := afero.ReadDir(s.fs, filepath.Join(s.root, owner))
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, storeError(err, s.Backend(), opList, owner)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.policy.ValidFilename(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *DiskStore) path(owner, filename string) string {
	return filepath.Join(s.root, owner, filename)
}
