package pipeline

import (
	"context"
	"sync"
)

// locker serializes pipeline runs per document id. Entries are reference
// counted and removed once no caller holds or waits on them.
type locker struct {
	mu    sync.Mutex
	locks map[int64]*docLock
}

type docLock struct {
	sem  chan struct{}
	refs int
}

func newLocker() *locker {
	return &locker{locks: map[int64]*docLock{}}
}

// lock blocks until the document is free or ctx is done.
func (l *locker) lock(ctx context.Context, id int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &docLock{sem: make(chan struct{}, 1)}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.release(id, e)
		}, nil
	case <-ctx.Done():
		l.release(id, e)
		return nil, ctx.Err()
	}
}

func (l *locker) release(id int64, e *docLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
}
