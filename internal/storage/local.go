package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps blobs as plain files under a base directory.
// Keys may contain subdirectories ("media/42.png", "thumbs/42_300.webp").
type LocalStore struct {
	basePath string
}

var _ Provider = (*LocalStore)(nil)

func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create media root %q: %w", basePath, err)
	}
	return &LocalStore{basePath: basePath}, nil
}

func (l *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.OpenInRoot(l.basePath, filepath.Clean(key))
}

// Exists takes a key and returns true if the file exists and can be opened
func (l *LocalStore) Exists(_ context.Context, key string) bool {
	f, err := os.OpenInRoot(l.basePath, filepath.Clean(key))
	if err != nil {
		return false
	}

	defer f.Close() // overkill to consider errors if only checking existence
	return true
}

func (l *LocalStore) Save(_ context.Context, key string, body io.ReadSeeker) error {
	key = filepath.Clean(key)
	if key == "." || key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	full := filepath.Join(l.basePath, key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("cannot create dir for %q: %w", key, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return fmt.Errorf("cannot read body for %q: %w", key, err)
	}

	// write to a temp file first so readers never see a partial blob
	tmp, err := os.CreateTemp(filepath.Dir(full), ".tmp-*")
	if err != nil {
		return fmt.Errorf("cannot create temp file for %q: %w", key, err)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot close %q: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cannot move %q into place: %w", key, err)
	}
	return nil
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	key = filepath.Clean(key)
	if key == "." || key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	err := os.Remove(filepath.Join(l.basePath, key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
