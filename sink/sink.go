// Package sink holds consumer-side handlers for realtime channels. Handlers run in the
// consumer goroutine and may block; the control loop never waits on them.
package sink

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/clintpurser/frankahw/realtime"
)

// Latest keeps the most recently delivered message.
type Latest[T any] struct {
	mu  sync.RWMutex
	msg realtime.Message[T]
	ok  bool
}

// Handle implements realtime.Handler.
func (l *Latest[T]) Handle(_ context.Context, msg realtime.Message[T]) error {
	l.mu.Lock()
	l.msg = msg
	l.ok = true
	l.mu.Unlock()
	return nil
}

// Get returns the last delivered message, or false if nothing was delivered yet.
func (l *Latest[T]) Get() (realtime.Message[T], bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.msg, l.ok
}

// Multi runs every handler for each message and joins their errors.
func Multi[T any](handlers ...realtime.Handler[T]) realtime.Handler[T] {
	return func(ctx context.Context, msg realtime.Message[T]) error {
		var firstErr error
		failed := 0
		for _, h := range handlers {
			if err := h(ctx, msg); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				failed++
			}
		}
		if failed > 1 {
			return errors.Wrapf(firstErr, "%d of %d handlers failed, first", failed, len(handlers))
		}
		return firstErr
	}
}

// Slow delays every delivery by d before calling next. Used to emulate a slow transport.
func Slow[T any](d time.Duration, next realtime.Handler[T]) realtime.Handler[T] {
	return func(ctx context.Context, msg realtime.Message[T]) error {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if next == nil {
			return nil
		}
		return next(ctx, msg)
	}
}
