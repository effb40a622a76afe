// Package notify wakes long-polling readers and forwards clipboard
// events to an optional webhook.
package notify

import (
	"context"
	"sync"
	"time"
)

// Broker is a broadcast wake-up primitive. Every NotifyAll releases all
// goroutines currently waiting on the channel returned by Changed.
type Broker struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewBroker() *Broker {
	return &Broker{ch: make(chan struct{})}
}

// Changed returns a channel that is closed by the next NotifyAll.
// Take it before checking the condition to avoid missing a wake-up.
func (b *Broker) Changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

// NotifyAll wakes every current waiter.
func (b *Broker) NotifyAll() {
	b.mu.Lock()
	close(b.ch)
	b.ch = make(chan struct{})
	b.mu.Unlock()
}

// Wait blocks until NotifyAll, timeout or ctx cancellation.
// It returns true only when woken by NotifyAll.
func (b *Broker) Wait(ctx context.Context, timeout time.Duration) bool {
	return WaitOn(ctx, b.Changed(), timeout)
}

// WaitOn waits on a channel previously obtained from Changed.
func WaitOn(ctx context.Context, changed <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-changed:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
