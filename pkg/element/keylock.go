package element

import "sync"

// keyedMutex hands out one mutex per element key so bootstraps for
// different elements run in parallel while writes to the same key are
// serialized. lockAll takes the whole space exclusively, which is what a
// full cache clear needs.
type keyedMutex struct {
	global sync.RWMutex

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for key and returns its release func. The release
// func must be called on every exit path.
func (k *keyedMutex) lock(key string) func() {
	k.global.RLock()

	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.global.RUnlock()
	}
}

// lockAll excludes every per-key holder until the returned release func is
// called.
func (k *keyedMutex) lockAll() func() {
	k.global.Lock()
	return func() {
		k.global.Unlock()
	}
}
