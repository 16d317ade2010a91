package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// UserLocks serializes mutating operations per user aggregate so two
// concurrent debits on the same account cannot interleave. Weight-1
// semaphores keyed by user id; acquisition respects the context.
type UserLocks struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewUserLocks() *UserLocks {
	return &UserLocks{sems: make(map[string]*semaphore.Weighted)}
}

// Acquire blocks until the user's lock is held and returns the release
// function.
func (l *UserLocks) Acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.sems[userID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[userID] = sem
	}
	l.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
