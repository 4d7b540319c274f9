package storage

import "sync"

// KeyMutex provides per-key mutual exclusion. Locks are created on demand
// and released when the last holder unlocks, so the map does not grow with
// the number of keys ever seen.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyMutex returns an empty KeyMutex.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[int64]*keyLock)}
}

// Lock acquires the mutex for the given key, blocking until it is available.
func (k *KeyMutex) Lock(key int64) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the mutex for the given key.
func (k *KeyMutex) Unlock(key int64) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()

	if ok {
		l.mu.Unlock()
	}
}
