package decision

import "sync"

// Locker hands out one exclusive section per decision id. Entries are
// reference counted and removed when no goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

type keyedMutex struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates a Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyedMutex)}
}

// Lock acquires the section for id and returns the function that releases it.
func (l *Locker) Lock(id string) (unlock func()) {
	l.mu.Lock()
	km, ok := l.locks[id]
	if !ok {
		km = &keyedMutex{}
		l.locks[id] = km
	}
	km.refs++
	l.mu.Unlock()

	km.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			km.mu.Unlock()

			l.mu.Lock()
			km.refs--
			if km.refs == 0 {
				delete(l.locks, id)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of ids currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
