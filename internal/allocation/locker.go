package allocation

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"
)

// Locker serializes work on a key. The returned release func must be called
// exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NopLocker never blocks.
type NopLocker struct{}

// Acquire returns immediately.
func (NopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// LocalLocker serializes callers inside one process.
type LocalLocker struct {
	slots *xsync.Map[string, chan struct{}]
}

// NewLocalLocker builds an in-process keyed locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: xsync.NewMap[string, chan struct{}]()}
}

// Acquire blocks until key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	slot, _ := l.slots.LoadOrStore(key, make(chan struct{}, 1))
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
