package usecase

import "sync"

// checkLocks is a set of per-product advisory locks. Acquisition never blocks.
type checkLocks struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

func newCheckLocks() *checkLocks {
	return &checkLocks{held: make(map[uint]struct{})}
}

func (l *checkLocks) tryAcquire(productID uint) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[productID]; busy {
		return nil, false
	}
	l.held[productID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, productID)
			l.mu.Unlock()
		})
	}, true
}
