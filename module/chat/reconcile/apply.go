package reconcile

import (
	"go.uber.org/zap"

	"AirChat/module/chat/model"
)

func (e *Engine) stateOf(id model.MessageID) State {
	if _, ok := e.pendingWrite[id]; ok {
		return PendingWrite
	}
	if _, ok := e.sendError[id]; ok {
		return SendError
	}
	if _, ok := e.pendingDelete[id]; ok {
		return PendingDelete
	}
	return Normal
}

// setState keeps the three id sets disjoint.
func (e *Engine) setState(id model.MessageID, s State) {
	delete(e.pendingWrite, id)
	delete(e.sendError, id)
	delete(e.pendingDelete, id)
	switch s {
	case PendingWrite:
		e.pendingWrite[id] = struct{}{}
	case SendError:
		e.sendError[id] = struct{}{}
	case PendingDelete:
		e.pendingDelete[id] = struct{}{}
	}
	e.dirty = true
}

func (e *Engine) present(id model.MessageID) bool {
	_, ok := e.byID[id]
	return ok
}

func (e *Engine) insert(m model.Message) {
	e.byID[m.ID] = m
	e.order = append(e.order, m.ID)
	e.dirty = true
}

func (e *Engine) remove(id model.MessageID) {
	if !e.present(id) {
		return
	}
	delete(e.byID, id)
	delete(e.fromSnapshot, id)
	e.setState(id, Normal)
	for i, x := range e.order {
		if x == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.dirty = true
}

func (e *Engine) applyChanges(changes []model.Change[model.Message], md model.ChangeMetadata) {
	for _, c := range changes {
		eventsTotal.WithLabelValues(c.Kind.String()).Inc()
		switch c.Kind {
		case model.Added:
			e.applyAdded(c.Item, md)
		case model.Updated:
			if e.present(c.Item.ID) {
				e.byID[c.Item.ID] = c.Item
				e.dirty = true
			}
		case model.Removed:
			e.applyRemoved(c.Item, md)
		case model.Moved:
		default:
			e.log.Warn("unknown change kind", zap.Stringer("kind", c.Kind))
		}
	}
}

func (e *Engine) applyAdded(m model.Message, md model.ChangeMetadata) {
	if !e.present(m.ID) {
		delete(e.tombstones, m.ID)
		e.insert(m)
		return
	}
	switch e.stateOf(m.ID) {
	case PendingWrite, SendError:
		if md.IsPendingWrite {
			return
		}
		e.setState(m.ID, Normal)
	}
	e.byID[m.ID] = m
	e.dirty = true
}

func (e *Engine) applyRemoved(m model.Message, md model.ChangeMetadata) {
	if md.IsPendingWrite {
		if e.present(m.ID) {
			e.setState(m.ID, PendingDelete)
		}
		return
	}
	e.tombstones[m.ID] = struct{}{}
	e.remove(m.ID)
}

func (e *Engine) applyTyping(ev model.TypingEvent) {
	eventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	if ev.User.Equal(e.me) {
		return
	}
	idx := -1
	for i, u := range e.typing {
		if u.Equal(ev.User) {
			idx = i
			break
		}
	}
	switch ev.Kind {
	case model.TypingStarted:
		if idx < 0 {
			e.typing = append(e.typing, ev.User)
			e.dirty = true
		}
	case model.TypingStopped:
		if idx >= 0 {
			e.typing = append(e.typing[:idx], e.typing[idx+1:]...)
			e.dirty = true
		}
	}
}

func (e *Engine) applyChannel(ch model.Channel) {
	eventsTotal.WithLabelValues("channel").Inc()
	e.channel = ch
	e.dirty = true
}

func (e *Engine) load(includeLocalCache bool) {
	var id uint64
	c := e.ref.LoadSnapshot(e.ctx, includeLocalCache, func(s model.Snapshot, err error) {
		e.box.post(func() { e.applySnapshot(id, s, err) })
	})
	id = e.track(c)
}

func (e *Engine) applySnapshot(call uint64, s model.Snapshot, err error) {
	eventsTotal.WithLabelValues("snapshot").Inc()
	if err != nil || !s.Metadata.IsFromLocalCache {
		delete(e.calls, call)
	}
	e.dirty = true
	if err != nil {
		e.loading = false
		e.notify(Notice{Kind: LoadFailed, Err: err})
		return
	}
	if s.Channel.ID != "" || s.Channel.Name != "" {
		e.channel = s.Channel
	}
	e.loading = s.Metadata.IsFromLocalCache
	e.merge(s.Messages)
}

// merge puts the snapshot first, keeping per-id state, then keeps local
// and streamed entries the snapshot lacks. Entries known only from an
// earlier snapshot and absent now are dropped.
func (e *Engine) merge(msgs []model.Message) {
	order := make([]model.MessageID, 0, len(msgs)+len(e.order))
	seen := make(map[model.MessageID]struct{}, len(msgs))
	fromSnap := make(map[model.MessageID]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		if _, gone := e.tombstones[m.ID]; gone {
			continue
		}
		seen[m.ID] = struct{}{}
		fromSnap[m.ID] = struct{}{}
		order = append(order, m.ID)
		e.byID[m.ID] = m
	}
	for _, id := range e.order {
		if _, ok := seen[id]; ok {
			continue
		}
		_, snapOnly := e.fromSnapshot[id]
		if snapOnly && e.stateOf(id) == Normal {
			delete(e.byID, id)
			continue
		}
		if snapOnly {
			fromSnap[id] = struct{}{}
		}
		order = append(order, id)
	}
	e.order = order
	e.fromSnapshot = fromSnap
}
