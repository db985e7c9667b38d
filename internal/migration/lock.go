package migration

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the source directory while a migration runs.
const LockFileName = ".reelgate-migrate.lock"

// ErrLocked reports that another migration holds the source directory.
var ErrLocked = errors.New("migration already running for source")

// AcquireLock takes the source directory lock without waiting.
func AcquireLock(sourceDir string) (func(), error) {
	path := filepath.Join(sourceDir, LockFileName)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return func() { _ = lock.Unlock() }, nil
}
