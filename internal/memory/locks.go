package memory

import "sync"

// planLocks hands out one mutex per plan id. Entries are reference counted
// and dropped once no caller holds or waits on them.
type planLocks struct {
	mu    sync.Mutex
	locks map[string]*planLock
}

type planLock struct {
	mu   sync.Mutex
	refs int
}

func newPlanLocks() *planLocks {
	return &planLocks{locks: make(map[string]*planLock)}
}

// lock blocks until the plan's mutex is held and returns its release func.
func (l *planLocks) lock(planID string) func() {
	l.mu.Lock()
	pl, ok := l.locks[planID]
	if !ok {
		pl = &planLock{}
		l.locks[planID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, planID)
		}
		l.mu.Unlock()
	}
}

// size reports how many plan locks are live.
func (l *planLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
