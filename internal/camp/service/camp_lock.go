package service

import "sync"

// campLocker serializes writers per camp. Concurrent operations on distinct
// camps proceed independently; operations within one camp are linearized.
type campLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCampLocker() *campLocker {
	return &campLocker{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the camp's writer mutex and returns the release func.
func (l *campLocker) acquire(campID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[campID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[campID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
