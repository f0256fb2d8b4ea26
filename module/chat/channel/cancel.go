package channel

import (
	"context"
	"sync"

	"AirChat/tools/safe"
)

// Cancellable is returned by every asynchronous Reference operation.
type Cancellable interface {
	// Cancel stops further callbacks and events of the call. It does not
	// roll back what was already delivered, and must not be called from
	// inside the same call's callback.
	Cancel()
}

// call guards the deliveries of one operation. Once done is set nothing
// more is delivered.
type call struct {
	ctx    context.Context
	cancel context.CancelFunc
	r      *reference

	mu   sync.Mutex
	done bool
}

func (c *call) Cancel() {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
	c.cancel()
	c.r.forget(c)
}

// deliver runs f unless the call already ended.
func (c *call) deliver(f func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return false
	}
	f()
	return true
}

// finish runs f as the last delivery of the call.
func (c *call) finish(f func()) bool {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return false
	}
	f()
	c.done = true
	c.mu.Unlock()
	c.cancel()
	c.r.forget(c)
	return true
}

func (c *call) ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// async runs f in its own goroutine unless c already ended.
func (r *reference) async(c *call, f func()) {
	if c.ended() {
		return
	}
	safe.SafeGo(f)
}
