package flow

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const lockExpiration = 30 * time.Minute

// documentLocks serializes operations on the same document inside this process.
// Idle entries expire, the version column of the workflow guards writers of other processes.
type documentLocks struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func newDocumentLocks() *documentLocks {
	return &documentLocks{cache: cache.New(lockExpiration, 10*time.Minute)}
}

func (l *documentLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	var m *sync.Mutex
	if v, found := l.cache.Get(key); found {
		m = v.(*sync.Mutex)
	} else {
		m = &sync.Mutex{}
	}
	// refresh expiration on every acquisition
	l.cache.Set(key, m, cache.DefaultExpiration)
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// within runs fn while holding the lock of key. Side effects of a committed operation belong after it returns.
func (l *documentLocks) within(key string, fn func() error) error {
	unlock := l.lock(key)
	defer unlock()
	return fn()
}
