package distributedlock

import "context"

// Lock is a held lock. It must be released by the process that took it.
type Lock struct {
	owner *DistributedLock
	key   string
	uid   string
}

func (l *Lock) Key() string {
	return l.key
}

// Release frees the lock, unless it already expired.
func (l *Lock) Release(ctx context.Context) error {
	released, err := l.owner.release(ctx, l.key, l.uid)
	if err != nil {
		return err
	}
	if !released {
		return ErrLockExpired
	}
	return nil
}
