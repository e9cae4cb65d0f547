package slotstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	coreerrors "github.com/davidahmann/tempo/core/errors"
	"github.com/davidahmann/tempo/core/fsx"
)

const (
	lockFileName   = "store.lock"
	lockStaleAfter = 2 * time.Minute
)

var ErrStoreBusy = errors.New("store is locked by another process")

// Lock takes the directory lock so only one process drives the store at a time.
// A lock file older than lockStaleAfter is treated as abandoned.
func (s *FileStore) Lock(timeout time.Duration) (func(), error) {
	release, err := fsx.AcquireLockFile(filepath.Join(s.dir, lockFileName), fsx.LockOptions{
		Timeout:    timeout,
		StaleAfter: lockStaleAfter,
	})
	if errors.Is(err, fsx.ErrLockTimeout) {
		return nil, coreerrors.Wrap(
			fmt.Errorf("%s: %w", s.dir, ErrStoreBusy),
			coreerrors.CategoryIOFailure,
			"store_busy",
			"wait for the other tempo command to finish",
			true,
		)
	}
	if err != nil {
		return nil, ioFailure(err, "store_lock_failed")
	}
	return release, nil
}
