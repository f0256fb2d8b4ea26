package channel

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"AirChat/module/chat/model"
	"AirChat/module/chat/presence"
	"AirChat/module/chat/stream"
	"AirChat/tools/errs"
	"AirChat/tools/ids"
)

type Pagination struct {
	Limit  int
	Before model.MessageID
}

// Reference is a handle on one channel. Completion callbacks and stream
// deliveries arrive on arbitrary goroutines.
type Reference interface {
	ID() model.ChannelID
	CurrentUser() model.User

	Listen(l stream.Listener) stream.Subscription
	// SetListener drops every listener and installs l.
	SetListener(l stream.Listener)

	// LoadSnapshot calls done twice when includeLocalCache is set and the
	// cache holds the channel: first with IsFromLocalCache, then with the
	// authoritative data.
	LoadSnapshot(ctx context.Context, includeLocalCache bool, done func(model.Snapshot, error)) Cancellable

	// Send emits Added(msg) as a pending write before returning. On
	// success the confirmed Added is emitted and done(nil) called; on
	// failure done receives a WriteFailed error and nothing is emitted.
	Send(ctx context.Context, msg model.Message, done func(error)) Cancellable
	// Delete mirrors Send with Removed and DeleteFailed.
	Delete(ctx context.Context, msg model.Message, done func(error)) Cancellable
	SendTypingEvent(ctx context.Context, ev model.TypingEvent, done func(error)) Cancellable

	StartWatching(ctx context.Context, done func(error)) Cancellable
	StopWatching(ctx context.Context, done func(error)) Cancellable
	LoadPage(ctx context.Context, page Pagination, done func(error)) Cancellable
	Hide(ctx context.Context, clearHistory bool, done func(error)) Cancellable
	Show(ctx context.Context, done func(error)) Cancellable
	Ban(ctx context.Context, m model.Member, done func(error)) Cancellable
	AddMembers(ctx context.Context, ms []model.Member, done func(error)) Cancellable
	RemoveMembers(ctx context.Context, ms []model.Member, done func(error)) Cancellable
	Invite(ctx context.Context, ms []model.Member, done func(error)) Cancellable
	AcceptInvite(ctx context.Context, msg *model.Message, done func(error)) Cancellable
	RejectInvite(ctx context.Context, msg *model.Message, done func(error)) Cancellable
	MarkRead(ctx context.Context, done func(error)) Cancellable
	Update(ctx context.Context, name string, done func(error)) Cancellable
	DeleteChannel(ctx context.Context, done func(error)) Cancellable

	// Close cancels every in-flight call and stops background work. Do
	// not call it from a callback.
	Close()
}

type reference struct {
	id        model.ChannelID
	client    *Client
	origin    string
	listeners *stream.Registry
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	calls   map[*call]struct{}
	sim     *presence.Simulator
	feedSub stream.Subscription
}

func newReference(c *Client, id model.ChannelID) *reference {
	ctx, cancel := context.WithCancel(context.Background())
	r := &reference{
		id:        id,
		client:    c,
		origin:    ids.UUID(),
		listeners: stream.NewRegistry(),
		ctx:       ctx,
		cancel:    cancel,
		calls:     make(map[*call]struct{}),
	}
	r.log = c.log.With(zap.String("channel", id), zap.String("origin", r.origin))

	if c.feed != nil {
		sub, err := c.feed.Subscribe(id, r.onEnvelope)
		if err != nil {
			r.log.Warn("live feed subscribe failed", zap.Error(err))
		} else {
			r.feedSub = sub
		}
	}
	if c.peer != nil {
		r.sim = presence.New(*c.peer, peerEmitter{r})
		r.sim.Start()
	}
	return r
}

func (r *reference) ID() model.ChannelID { return r.id }

func (r *reference) CurrentUser() model.User { return r.client.currentUser }

func (r *reference) Listen(l stream.Listener) stream.Subscription {
	return r.listeners.Subscribe(l)
}

func (r *reference) SetListener(l stream.Listener) {
	r.listeners.Replace(l)
}

func (r *reference) newCall(parent context.Context) *call {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	c := &call{ctx: ctx, cancel: cancel, r: r}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		c.done = true
		cancel()
		return c
	}
	r.calls[c] = struct{}{}
	return c
}

func (r *reference) forget(c *call) {
	r.mu.Lock()
	delete(r.calls, c)
	r.mu.Unlock()
}

func (r *reference) LoadSnapshot(ctx context.Context, includeLocalCache bool, done func(model.Snapshot, error)) Cancellable {
	c := r.newCall(ctx)
	if done == nil {
		done = func(model.Snapshot, error) {}
	}
	r.async(c, func() {
		if includeLocalCache && r.client.cache != nil {
			h, ok, err := r.client.cache.Get(c.ctx, r.id)
			switch {
			case err != nil:
				r.log.Warn("local cache read failed", zap.Error(err))
			case ok:
				c.deliver(func() { done(h.Snapshot(model.Cached), nil) })
			}
		}

		h, err := r.client.backend.Load(c.ctx, r.id)
		if err != nil {
			c.finish(func() {
				done(model.Snapshot{Channel: model.Channel{ID: r.id}}, errs.ErrLoadFailed.WrapMsg(err.Error(), "channel", r.id))
			})
			return
		}
		if r.client.cache != nil {
			if err := r.client.cache.Put(c.ctx, r.id, h); err != nil {
				r.log.Warn("local cache write failed", zap.Error(err))
			}
		}
		c.finish(func() { done(h.Snapshot(model.Confirmed), nil) })
	})
	return c
}

func (r *reference) Send(ctx context.Context, msg model.Message, done func(error)) Cancellable {
	c := r.newCall(ctx)
	changes := []model.Change[model.Message]{model.AddedOf(msg)}
	c.deliver(func() { r.listeners.OnMessagesChanged(changes, model.Pending) })

	r.async(c, func() {
		err := r.client.backend.Append(c.ctx, r.id, msg)
		if err != nil {
			r.log.Debug("send failed", zap.String("message", msg.ID), zap.Error(err))
			c.finish(func() {
				if done != nil {
					done(errs.ErrWriteFailed.WrapMsg(err.Error(), "message", msg.ID))
				}
			})
			return
		}
		c.finish(func() {
			r.listeners.OnMessagesChanged(changes, model.Confirmed)
			r.publish(stream.Envelope{Kind: stream.EnvelopeMessages, Changes: changes})
			if done != nil {
				done(nil)
			}
		})
	})
	return c
}

func (r *reference) Delete(ctx context.Context, msg model.Message, done func(error)) Cancellable {
	c := r.newCall(ctx)
	changes := []model.Change[model.Message]{model.RemovedOf(msg)}
	c.deliver(func() { r.listeners.OnMessagesChanged(changes, model.Pending) })

	r.async(c, func() {
		err := r.client.backend.Remove(c.ctx, r.id, msg.ID)
		if err != nil {
			r.log.Debug("delete failed", zap.String("message", msg.ID), zap.Error(err))
			c.finish(func() {
				if done != nil {
					done(errs.ErrDeleteFailed.WrapMsg(err.Error(), "message", msg.ID))
				}
			})
			return
		}
		c.finish(func() {
			r.listeners.OnMessagesChanged(changes, model.Confirmed)
			r.publish(stream.Envelope{Kind: stream.EnvelopeMessages, Changes: changes})
			if done != nil {
				done(nil)
			}
		})
	})
	return c
}

func (r *reference) SendTypingEvent(ctx context.Context, ev model.TypingEvent, done func(error)) Cancellable {
	c := r.newCall(ctx)
	r.async(c, func() {
		var err error
		if t := r.client.typing; t != nil {
			if ev.Kind == model.TypingStarted {
				err = t.Started(c.ctx, r.id, ev.User)
			} else {
				err = t.Stopped(c.ctx, r.id, ev.User.ID)
			}
		}
		c.finish(func() {
			r.publish(stream.Envelope{Kind: stream.EnvelopeTyping, Typing: &ev})
			if done != nil {
				done(errs.Wrap(err))
			}
		})
	})
	return c
}

// Update renames the channel.
func (r *reference) Update(ctx context.Context, name string, done func(error)) Cancellable {
	c := r.newCall(ctx)
	r.async(c, func() {
		if name == "" {
			c.finish(func() {
				if done != nil {
					done(errs.ErrArgs.WrapMsg("empty channel name"))
				}
			})
			return
		}
		ch, err := r.client.backend.Rename(c.ctx, r.id, name)
		c.finish(func() {
			if err == nil {
				r.listeners.OnChannelUpdated(ch, model.Confirmed)
				r.publish(stream.Envelope{Kind: stream.EnvelopeChannel, Channel: &ch})
			}
			if done != nil {
				done(err)
			}
		})
	})
	return c
}

func (r *reference) publish(env stream.Envelope) {
	feed := r.client.feed
	if feed == nil {
		return
	}
	env.Origin = r.origin
	env.ChannelID = r.id
	if err := feed.Publish(r.ctx, env); err != nil {
		r.log.Warn("live feed publish failed", zap.String("kind", string(env.Kind)), zap.Error(err))
	}
}

func (r *reference) onEnvelope(env stream.Envelope) {
	if env.Origin == r.origin || env.ChannelID != r.id {
		return
	}
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	if !env.Deliver(r.listeners) {
		r.log.Debug("dropped malformed envelope", zap.String("kind", string(env.Kind)))
	}
}

func (r *reference) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	calls := make([]*call, 0, len(r.calls))
	for c := range r.calls {
		calls = append(calls, c)
	}
	r.mu.Unlock()

	for _, c := range calls {
		c.Cancel()
	}
	if r.sim != nil {
		r.sim.Stop()
	}
	if r.feedSub != nil {
		r.feedSub.Unsubscribe()
	}
	r.cancel()
	r.listeners.Replace(nil)
}

type peerEmitter struct{ r *reference }

func (p peerEmitter) EmitTyping(ev model.TypingEvent) {
	p.r.listeners.OnTypingEvent(ev, model.Confirmed)
}

func (p peerEmitter) EmitMessage(msg model.Message) {
	p.r.listeners.OnMessagesChanged([]model.Change[model.Message]{model.AddedOf(msg)}, model.Confirmed)
}
