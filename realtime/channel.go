// Package realtime provides the single-slot, non-blocking handoff used between the control
// loop and best-effort telemetry consumers.
//
// The producer calls TryPublish from the control cycle. It never waits: if the consumer still
// holds the previous message the attempt is dropped and counted as a miss. The consumer runs
// in its own goroutine and may block on its own I/O for as long as it likes.
//
// Every TryPublish attempt either bumps the sequence number or the miss counter, so
// Sequence + Misses is the number of attempts made on the channel.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// turn says who may touch the slot next.
type turn uint8

const (
	turnProducer turn = iota // slot empty, producer may write
	turnConsumer             // message pending, waiting for the consumer
	turnDraining             // consumer took the message and is still handling it
)

// Message is one published payload stamped with its channel-local sequence number.
type Message[T any] struct {
	Seq     uint64
	Stamp   time.Time
	Payload T
}

// Handler processes a message on the consumer side. It may block.
type Handler[T any] func(ctx context.Context, msg Message[T]) error

// Stats is a point-in-time copy of a channel's counters.
type Stats struct {
	Name string `json:"name"`
	// Sequence is the number of successful publishes, and the Seq of the latest message.
	Sequence uint64 `json:"sequence"`
	// Misses counts publish attempts dropped because the consumer was busy.
	Misses    uint64 `json:"misses"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Busy      bool   `json:"busy"`
}

// Attempts is the total number of TryPublish calls.
func (s Stats) Attempts() uint64 {
	return s.Sequence + s.Misses
}

// Channel is a generic single-slot handoff with one producer and one consumer.
type Channel[T any] struct {
	name string

	mu   sync.Mutex // protects turn and msg; the producer only ever TryLocks it
	turn turn
	msg  Message[T]

	ready chan struct{} // wakes the consumer; capacity 1, never blocks the producer

	seq       atomic.Uint64
	misses    atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	busy      atomic.Bool
}

// NewChannel creates an empty channel.
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{
		name:  name,
		ready: make(chan struct{}, 1),
	}
}

// Name returns the channel name.
func (c *Channel[T]) Name() string {
	return c.name
}

// TryPublish stores payload if the consumer is done with the previous message. It returns
// false, and counts a miss, if a message is still pending, being drained, or the slot lock is
// momentarily held by the consumer. It never blocks.
func (c *Channel[T]) TryPublish(payload T) bool {
	if !c.mu.TryLock() {
		c.misses.Add(1)
		return false
	}
	if c.turn != turnProducer {
		c.mu.Unlock()
		c.misses.Add(1)
		return false
	}
	seq := c.seq.Add(1)
	c.msg = Message[T]{Seq: seq, Stamp: time.Now(), Payload: payload}
	c.turn = turnConsumer
	c.busy.Store(true)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// TakeLatest hands the pending message to the consumer. The slot stays busy until Release is
// called, so the consumer can use the message without it being overwritten. Consumer side only.
func (c *Channel[T]) TakeLatest() (Message[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.turn != turnConsumer {
		return Message[T]{}, false
	}
	c.turn = turnDraining
	msg := c.msg
	var zero T
	c.msg.Payload = zero
	return msg, true
}

// Release gives the slot back to the producer after a TakeLatest. Consumer side only.
func (c *Channel[T]) Release() {
	c.mu.Lock()
	if c.turn == turnDraining {
		c.turn = turnProducer
		c.busy.Store(false)
	}
	c.mu.Unlock()
}

// Ready is signalled after each successful publish.
func (c *Channel[T]) Ready() <-chan struct{} {
	return c.ready
}

// Consume runs the consumer loop until ctx is done: wait for a message, take it, hand it to
// handle and release the slot. Handler errors are counted and do not stop the loop.
func (c *Channel[T]) Consume(ctx context.Context, handle Handler[T]) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ready:
		}

		msg, ok := c.TakeLatest()
		if !ok {
			continue
		}
		err := handle(ctx, msg)
		c.Release()
		if err != nil {
			c.failed.Add(1)
		} else {
			c.delivered.Add(1)
		}
	}
}

// Stats returns the channel counters. Safe to call from any goroutine.
func (c *Channel[T]) Stats() Stats {
	return Stats{
		Name:      c.name,
		Sequence:  c.seq.Load(),
		Misses:    c.misses.Load(),
		Delivered: c.delivered.Load(),
		Failed:    c.failed.Load(),
		Busy:      c.busy.Load(),
	}
}
