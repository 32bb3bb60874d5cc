package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kris-hansen/summaprompt/utils/config"
)

// FileStore keeps one JSON file per session in a directory
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, storageErr("open", "", fmt.Errorf("error creating session directory: %w", err))
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create implements Store.
func (s *FileStore) Create(ctx context.Context) (string, error) {
	return NewID(), nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, id string) (*Session, error) {
	if err := ValidateID(id); err != nil {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("load", id, err)
	}
	sess, err := Decode(data)
	if err != nil {
		return nil, storageErr("load", id, err)
	}
	return sess, nil
}

// Save implements Store. The record is written to a temporary file in the
// same directory and renamed over the old one, so readers never observe a
// partial write.
func (s *FileStore) Save(ctx context.Context, sess *Session) error {
	if err := ValidateID(sess.ID); err != nil {
		return storageErr("save", sess.ID, err)
	}
	data, err := Encode(sess)
	if err != nil {
		return storageErr("save", sess.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, sess.ID+".*.tmp")
	if err != nil {
		return storageErr("save", sess.ID, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return storageErr("save", sess.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return storageErr("save", sess.ID, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return storageErr("save", sess.ID, err)
	}
	if err := os.Rename(tmpName, s.path(sess.ID)); err != nil {
		cleanup()
		return storageErr("save", sess.ID, err)
	}

	config.DebugLog("[FileStore] Saved session %s (%d bytes)", sess.ID, len(data))
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return nil
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storageErr("delete", id, err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
