package reconcile

import (
	"sync"

	"github.com/eapache/queue"
)

// mailbox is an unbounded FIFO of closures: post never blocks, so a
// listener called synchronously from inside the loop can always enqueue.
type mailbox struct {
	mu     sync.Mutex
	q      *queue.Queue
	signal chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{q: queue.New(), signal: make(chan struct{}, 1)}
}

func (m *mailbox) post(f func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.q.Add(f)
	m.mu.Unlock()
	m.wake()
	return true
}

func (m *mailbox) wake() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// close rejects further posts; queued closures are still handed out.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

// pop blocks until a closure is queued or the mailbox is closed and empty.
func (m *mailbox) pop() (func(), bool) {
	for {
		m.mu.Lock()
		if m.q.Length() > 0 {
			f := m.q.Remove().(func())
			m.mu.Unlock()
			return f, true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, false
		}
		<-m.signal
	}
}
