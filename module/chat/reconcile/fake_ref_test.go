package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"AirChat/module/chat/channel"
	"AirChat/module/chat/model"
	"AirChat/module/chat/stream"
)

type cancelFunc func()

func (f cancelFunc) Cancel() { f() }

// fakeRef behaves like a channel reference whose backend answers only
// when the test says so.
type fakeRef struct {
	me        model.User
	listeners *stream.Registry

	mu        sync.Mutex
	loads     []func(model.Snapshot, error)
	withCache []bool
	sends     map[model.MessageID]func(error)
	deletes   map[model.MessageID]func(error)
	sendCount map[model.MessageID]int
	cancelled int
}

func newFakeRef(me model.User) *fakeRef {
	return &fakeRef{
		me:        me,
		listeners: stream.NewRegistry(),
		sends:     make(map[model.MessageID]func(error)),
		deletes:   make(map[model.MessageID]func(error)),
		sendCount: make(map[model.MessageID]int),
	}
}

func (f *fakeRef) CurrentUser() model.User { return f.me }

func (f *fakeRef) Listen(l stream.Listener) stream.Subscription {
	return f.listeners.Subscribe(l)
}

func (f *fakeRef) cancel() channel.Cancellable {
	return cancelFunc(func() {
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
	})
}

func (f *fakeRef) LoadSnapshot(_ context.Context, includeLocalCache bool, done func(model.Snapshot, error)) channel.Cancellable {
	f.mu.Lock()
	f.loads = append(f.loads, done)
	f.withCache = append(f.withCache, includeLocalCache)
	f.mu.Unlock()
	return f.cancel()
}

func (f *fakeRef) Send(_ context.Context, msg model.Message, done func(error)) channel.Cancellable {
	f.listeners.OnMessagesChanged([]model.Change[model.Message]{model.AddedOf(msg)}, model.Pending)
	f.mu.Lock()
	f.sends[msg.ID] = done
	f.sendCount[msg.ID]++
	f.mu.Unlock()
	return f.cancel()
}

func (f *fakeRef) Delete(_ context.Context, msg model.Message, done func(error)) channel.Cancellable {
	f.listeners.OnMessagesChanged([]model.Change[model.Message]{model.RemovedOf(msg)}, model.Pending)
	f.mu.Lock()
	f.deletes[msg.ID] = done
	f.mu.Unlock()
	return f.cancel()
}

func (f *fakeRef) loadDone() (func(model.Snapshot, error), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.loads) == 0 {
		return nil, fmt.Errorf("no load issued")
	}
	return f.loads[len(f.loads)-1], nil
}

func (f *fakeRef) loadFlags() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.withCache...)
}

func (f *fakeRef) pendingSends() []model.MessageID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.MessageID, 0, len(f.sends))
	for id := range f.sends {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (f *fakeRef) pendingDeletes() []model.MessageID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.MessageID, 0, len(f.deletes))
	for id := range f.deletes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (f *fakeRef) takeSend(id model.MessageID) func(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	done := f.sends[id]
	delete(f.sends, id)
	return done
}

func (f *fakeRef) takeDelete(id model.MessageID) func(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	done := f.deletes[id]
	delete(f.deletes, id)
	return done
}

func (f *fakeRef) confirmSend(msg model.Message) {
	f.listeners.OnMessagesChanged([]model.Change[model.Message]{model.AddedOf(msg)}, model.Confirmed)
	f.takeSend(msg.ID)(nil)
}

func (f *fakeRef) failSend(id model.MessageID, err error) {
	f.takeSend(id)(err)
}

func (f *fakeRef) confirmDelete(msg model.Message) {
	f.listeners.OnMessagesChanged([]model.Change[model.Message]{model.RemovedOf(msg)}, model.Confirmed)
	f.takeDelete(msg.ID)(nil)
}

func (f *fakeRef) failDelete(id model.MessageID, err error) {
	f.takeDelete(id)(err)
}

func (f *fakeRef) emit(md model.ChangeMetadata, changes ...model.Change[model.Message]) {
	f.listeners.OnMessagesChanged(changes, md)
}

// invariants is checked on the engine goroutine.
func (e *Engine) invariants() error {
	if len(e.order) != len(e.byID) {
		return fmt.Errorf("order has %d ids, index has %d", len(e.order), len(e.byID))
	}
	seen := make(map[model.MessageID]struct{}, len(e.order))
	for _, id := range e.order {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
	sets := []map[model.MessageID]struct{}{e.pendingWrite, e.sendError, e.pendingDelete}
	for i, s := range sets {
		for id := range s {
			if _, ok := e.byID[id]; !ok {
				return fmt.Errorf("state for absent id %s", id)
			}
			for j, o := range sets {
				if i == j {
					continue
				}
				if _, ok := o[id]; ok {
					return fmt.Errorf("id %s in two state sets", id)
				}
			}
		}
	}
	return nil
}
