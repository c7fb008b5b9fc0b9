// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workspace

import "sync"

// Locker serializes pipeline runs that resolve to the same sanitized
// title. A zero Locker is ready to use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*titleLock
}

type titleLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until the caller holds the lock for title and returns the
// function that releases it.
func (l *Locker) Lock(title string) (unlock func()) {
	key := Sanitize(title)

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*titleLock)
	}
	tl, ok := l.locks[key]
	if !ok {
		tl = &titleLock{}
		l.locks[key] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			tl.mu.Unlock()
			l.mu.Lock()
			tl.refs--
			if tl.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// TryLock acquires the lock for title without blocking.
func (l *Locker) TryLock(title string) (unlock func(), ok bool) {
	key := Sanitize(title)

	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*titleLock)
	}
	tl, exists := l.locks[key]
	if !exists {
		tl = &titleLock{}
		l.locks[key] = tl
	}
	if !tl.mu.TryLock() {
		if !exists {
			delete(l.locks, key)
		}
		l.mu.Unlock()
		return nil, false
	}
	tl.refs++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			tl.mu.Unlock()
			l.mu.Lock()
			tl.refs--
			if tl.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}, true
}

// Held reports how many callers hold or wait on locks.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, tl := range l.locks {
		n += tl.refs
	}
	return n
}
