package service

import "sync"

// threadLocks serializes read-modify-write turns per (threadID, userID).
// Entries are reference counted and dropped once nobody holds or waits on them.
type threadLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the key is free and returns its release function.
func (l *threadLocks) Lock(threadID, userID string) func() {
	key := threadID + "\x00" + userID

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			l.mu.Lock()
			defer l.mu.Unlock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.entries, key)
			}
		})
	}
}

func (l *threadLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
