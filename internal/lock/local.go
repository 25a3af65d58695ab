package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process keyed mutex. Entries are reference counted and
// dropped once no caller holds or waits on them.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*entry
	wait time.Duration
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns a LocalLocker that gives up after wait
func NewLocal(wait time.Duration) *LocalLocker {
	return &LocalLocker{keys: make(map[string]*entry), wait: wait}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	waitCtx, cancel := waitContext(ctx, l.wait)
	defer cancel()

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.unref(key, e)
			})
		}, nil
	case <-waitCtx.Done():
		l.unref(key, e)
		return nil, timeoutErr(ctx)
	}
}

func (l *LocalLocker) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// held reports the number of live keys
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
