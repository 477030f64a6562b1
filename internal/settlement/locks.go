package settlement

import "sync"

// userLocks serializes settlements per user. Different users never contend;
// the map itself is only held long enough to fetch the per-user mutex.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// acquire locks the given user's mutex and returns its unlock func.
func (l *userLocks) acquire(userID int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*sync.Mutex)
	}
	lk, ok := l.locks[userID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[userID] = lk
	}
	l.mu.Unlock()

	lk.Lock()
	return lk.Unlock
}
