package service

import "sync"

// EntryLocks serializes read-modify-write cycles on an entry's payload. Entries
// are dropped once the last holder or waiter releases them.
type EntryLocks struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	sync.Mutex
	refs int
}

func NewEntryLocks() *EntryLocks {
	return &EntryLocks{locks: make(map[string]*entryLock)}
}

// Lock blocks until the entry is free and returns the matching unlock
func (l *EntryLocks) Lock(entryID string) func() {
	l.mu.Lock()
	el, ok := l.locks[entryID]
	if !ok {
		el = &entryLock{}
		l.locks[entryID] = el
	}
	el.refs++
	l.mu.Unlock()

	el.Lock()
	return func() {
		el.Unlock()

		l.mu.Lock()
		el.refs--
		if el.refs == 0 {
			delete(l.locks, entryID)
		}
		l.mu.Unlock()
	}
}

// Len reports how many entries are currently locked or awaited
func (l *EntryLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
