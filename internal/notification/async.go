package notification

import (
	"context"
	"sync"

	"github.com/ando01/BirdView/internal/logger"
)

const defaultQueueSize = 32

// Async delivers events to the wrapped notifier on a single goroutine so a
// slow service never stalls the caller. Events are dropped when the queue is
// full.
type Async struct {
	next  Notifier
	queue chan Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsync starts the delivery goroutine. Close must be called to stop it.
func NewAsync(next Notifier, queueSize int) *Async {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	a := &Async{next: next, queue: make(chan Event, queueSize)}
	a.wg.Go(a.deliver)
	return a
}

// Notify queues e and returns immediately.
func (a *Async) Notify(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}
	select {
	case a.queue <- e:
	default:
		GetLogger().Warn("notification queue full, dropping event",
			logger.String("event_id", e.EventID),
			logger.Int("queue_size", cap(a.queue)))
	}
	return nil
}

func (a *Async) deliver() {
	for e := range a.queue {
		Dispatch(context.Background(), a.next, e)
	}
}

// Close delivers the queued events and stops the goroutine.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
}
