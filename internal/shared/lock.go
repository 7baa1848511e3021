package shared

import (
	"fmt"

	"github.com/gofrs/flock"
)

// LockDatabase takes an exclusive, non-blocking file lock next to the database at dbPath.
//
// Long-running commands hold it so two processes never flush the same session store. The returned func releases the
// lock. In-memory databases need no lock.
func LockDatabase(dbPath string) (func() error, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return func() error { return nil }, nil
	}

	lock := flock.New(dbPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock database: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, dbPath)
	}
	return lock.Unlock, nil
}
