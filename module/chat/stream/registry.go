package stream

import (
	"sync"

	"AirChat/module/chat/model"
)

// Subscription is the handle returned by Registry.Subscribe.
type Subscription interface {
	Unsubscribe()
}

// Registry fans deliveries out to every subscribed listener in
// registration order. It is itself a Listener.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []entry
}

type entry struct {
	id uint64
	l  Listener
}

type handle struct {
	r  *Registry
	id uint64
	o  sync.Once
}

func (h *handle) Unsubscribe() {
	h.o.Do(func() { h.r.remove(h.id) })
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Subscribe(l Listener) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.subs = append(r.subs, entry{id: r.nextID, l: l})
	return &handle{r: r, id: r.nextID}
}

// Replace drops every registration and installs l alone. A nil l just
// clears the registry. Handles of dropped registrations become no-ops.
func (r *Registry) Replace(l Listener) Subscription {
	r.mu.Lock()
	r.subs = nil
	r.mu.Unlock()
	if l == nil {
		return &handle{r: r}
	}
	return r.Subscribe(l)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.subs {
		if e.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

func (r *Registry) snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Listener, len(r.subs))
	for i, e := range r.subs {
		out[i] = e.l
	}
	return out
}

func (r *Registry) OnMessagesChanged(changes []model.Change[model.Message], md model.ChangeMetadata) {
	for _, l := range r.snapshot() {
		l.OnMessagesChanged(changes, md)
	}
}

func (r *Registry) OnTypingEvent(ev model.TypingEvent, md model.ChangeMetadata) {
	for _, l := range r.snapshot() {
		l.OnTypingEvent(ev, md)
	}
}

func (r *Registry) OnChannelUpdated(ch model.Channel, md model.ChangeMetadata) {
	for _, l := range r.snapshot() {
		l.OnChannelUpdated(ch, md)
	}
}

func (r *Registry) OnMemberEvent(ev model.MemberEvent, md model.ChangeMetadata) {
	for _, l := range r.snapshot() {
		l.OnMemberEvent(ev, md)
	}
}
