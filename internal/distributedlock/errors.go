package distributedlock

import "errors"

var (
	// ErrLockAlreadyAcquired means another process holds the lock right now.
	ErrLockAlreadyAcquired = errors.New("distributedlock: lock is held elsewhere")
	// ErrLockExpired means the lock timed out before it was released, so it
	// may already belong to someone else.
	ErrLockExpired = errors.New("distributedlock: lock expired before release")
)
