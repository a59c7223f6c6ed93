package framestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Blobs stores encoded frames by key.
type Blobs interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// DirBlobs keeps frames as files under Dir.
type DirBlobs struct {
	Dir string
}

func NewDirBlobs(dir string) (*DirBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	return &DirBlobs{Dir: dir}, nil
}

func (b *DirBlobs) path(key string) string {
	return filepath.Join(b.Dir, filepath.Base(key))
}

func (b *DirBlobs) Put(_ context.Context, key string, data []byte) error {
	tmp := b.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, b.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

func (b *DirBlobs) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
