package registry

import "sync"

// keyLock serializes operations per key so two claims of the same
// achievement, or two milestone updates for the same subject, never
// interleave. Locks are created on first use and kept for the life
// of the registry; the key space is bounded by the achievement set.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLock) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyLock) Lock(key string) func() {
	l := k.get(key)
	l.Lock()
	return l.Unlock
}
