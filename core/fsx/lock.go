package fsx

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrLockTimeout = errors.New("lock file held past timeout")

// LockOptions bound one lock-file acquisition. Zero fields take the defaults
// used for JSONL appends.
type LockOptions struct {
	Timeout    time.Duration
	Retry      time.Duration
	StaleAfter time.Duration
}

func (o LockOptions) withDefaults() LockOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Retry <= 0 {
		o.Retry = 10 * time.Millisecond
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 2 * time.Minute
	}
	return o
}

// AcquireLockFile creates lockPath exclusively and returns the function that
// removes it. A lock file whose mtime is older than StaleAfter belongs to a dead
// process and is taken over.
func AcquireLockFile(lockPath string, opts LockOptions) (func(), error) {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)
	for {
		// #nosec G304 -- lock path is derived from a caller-validated path.
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = lockFile.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !lockHeld(err, lockPath) {
			return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
		}
		if lockStale(lockPath, time.Now(), opts.StaleAfter) {
			_ = os.Remove(lockPath)
			continue
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", lockPath, ErrLockTimeout)
		}
		time.Sleep(opts.Retry)
	}
}

// lockHeld reports whether a failed exclusive create means another holder. On
// Windows a lock being deleted can surface as a permission error.
func lockHeld(acquireErr error, lockPath string) bool {
	if os.IsExist(acquireErr) {
		return true
	}
	if !os.IsPermission(acquireErr) {
		return false
	}
	_, statErr := os.Stat(lockPath)
	return statErr == nil
}

func lockStale(lockPath string, now time.Time, staleAfter time.Duration) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) > staleAfter
}
