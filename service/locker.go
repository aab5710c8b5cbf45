package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// LetterLocker serializes work per letter id inside one process. Different
// letters never wait on each other. Entries are dropped once unused.
type LetterLocker struct {
	mu    sync.Mutex
	locks map[string]*letterLock
}

type letterLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLetterLocker() *LetterLocker {
	return &LetterLocker{locks: make(map[string]*letterLock)}
}

// Lock blocks until the letter is free or ctx is done. The returned func
// releases the lock and must be called exactly once.
func (l *LetterLocker) Lock(ctx context.Context, letterID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[letterID]
	if !ok {
		lk = &letterLock{sem: semaphore.NewWeighted(1)}
		l.locks[letterID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	if err := lk.sem.Acquire(ctx, 1); err != nil {
		l.release(letterID, lk)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lk.sem.Release(1)
			l.release(letterID, lk)
		})
	}, nil
}

func (l *LetterLocker) release(letterID string, lk *letterLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, letterID)
	}
}

// held 当前持有或等待中的信件数, 测试用
func (l *LetterLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
