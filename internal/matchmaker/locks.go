package matchmaker

import (
	"context"
	"sync"
)

// sessionLocks orders the list-then-apply work done for one session by
// membership events and the watchdog. Entries live only while held or
// awaited.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sem  chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the session's lock is held or ctx ends. The
// returned func releases it.
func (l *sessionLocks) acquire(ctx context.Context, sessionID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[sessionID]
	if !ok {
		lk = &sessionLock{sem: make(chan struct{}, 1)}
		l.locks[sessionID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		return func() {
			<-lk.sem
			l.release(sessionID, lk)
		}, nil
	case <-ctx.Done():
		l.release(sessionID, lk)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) release(sessionID string, lk *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, sessionID)
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
