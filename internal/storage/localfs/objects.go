// Package localfs stores videos on the local filesystem: objects are files
// under a root directory and records live in a flat JSON file keyed by id.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"reelgate/internal/fileutil"
	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// Objects is a storage.ObjectStore rooted at a directory.
type Objects struct {
	root string
}

// NewObjects creates root when missing.
func NewObjects(root string) (*Objects, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create object root: %w", err)
	}
	return &Objects{root: root}, nil
}

// Path returns the file backing key.
func (o *Objects) Path(key string) string {
	return filepath.Join(o.root, filepath.FromSlash(key))
}

func (o *Objects) Put(_ context.Context, key string, data []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(o.Path(key), data, 0o644)
}

// Open reads key from the root. Absolute keys left by older writers are
// opened as is.
func (o *Objects) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path := key
	if !filepath.IsAbs(key) {
		if err := storage.ValidateKey(key); err != nil {
			return nil, err
		}
		path = o.Path(key)
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, ProfileName, "open object", fmt.Sprintf("object %s", key), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (o *Objects) Exists(_ context.Context, key string) (bool, error) {
	if filepath.IsAbs(key) {
		return fileutil.Exists(key)
	}
	return fileutil.Exists(o.Path(key))
}

// URL is empty: local objects are served through the API.
func (o *Objects) URL(context.Context, string) (string, error) { return "", nil }

func (o *Objects) Close() error { return nil }
