package storage

import (
	"context"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/bastion-hub/internal/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps one file per key under a folder. Writes go through a temp
// file and a rename so a crash never leaves a half-written value behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the folder if needed and returns a store rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "[FileStore New] create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[FileStore Get] read %s", key)
	}
	return data, nil
}

func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "[FileStore Set] create temp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "[FileStore Set] write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "[FileStore Set] close %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "[FileStore Set] rename %s", key)
	}
	return nil
}

func (f *FileStore) Remove(_ context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "[FileStore Remove] %s", key)
	}
	return nil
}

// Keys are hex encoded so any key maps to a safe file name.
func (f *FileStore) path(key string) (string, error) {
	if key == "" {
		return "", errors.ErrInvalidKey
	}
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+".json"), nil
}
