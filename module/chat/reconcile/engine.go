// Package reconcile keeps the optimistic view of a channel: it applies
// local intents immediately and reconciles them with the confirmations,
// failures and snapshots the channel reference reports later.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"AirChat/logger"
	"AirChat/module/chat/channel"
	"AirChat/module/chat/model"
	"AirChat/module/chat/stream"
	"AirChat/tools/errs"
)

// Reference is the part of channel.Reference the engine drives.
type Reference interface {
	CurrentUser() model.User
	Listen(l stream.Listener) stream.Subscription
	LoadSnapshot(ctx context.Context, includeLocalCache bool, done func(model.Snapshot, error)) channel.Cancellable
	Send(ctx context.Context, msg model.Message, done func(error)) channel.Cancellable
	Delete(ctx context.Context, msg model.Message, done func(error)) channel.Cancellable
}

var (
	ErrClosed     = errs.ErrCancelled.WrapMsg("engine closed")
	ErrNotStarted = errs.ErrRejected.WrapMsg("engine not started")
)

type Option func(*Engine)

// WithOnChange is called on the engine goroutine after every change with
// the new view. It must not call back into the engine's blocking methods.
func WithOnChange(f func(View)) Option {
	return func(e *Engine) { e.onChange = f }
}

// WithOnNotice is called on the engine goroutine for every failure.
func WithOnNotice(f func(Notice)) Option {
	return func(e *Engine) { e.onNotice = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine is a single-goroutine actor. Everything below the mailbox is
// owned by that goroutine.
type Engine struct {
	ref      Reference
	me       model.User
	log      *zap.Logger
	onChange func(View)
	onNotice func(Notice)

	box    *mailbox
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	view   atomic.Pointer[View]
	sub    stream.Subscription

	mu      sync.Mutex
	started bool
	closed  bool

	// loop state
	channel       model.Channel
	order         []model.MessageID
	byID          map[model.MessageID]model.Message
	fromSnapshot  map[model.MessageID]struct{}
	pendingWrite  map[model.MessageID]struct{}
	sendError     map[model.MessageID]struct{}
	pendingDelete map[model.MessageID]struct{}
	tombstones    map[model.MessageID]struct{}
	typing        []model.User
	loading       bool
	version       uint64
	dirty         bool
	calls         map[uint64]channel.Cancellable
	nextCall      uint64
	gauges        gauges
}

func New(ref Reference, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		ref:           ref,
		me:            ref.CurrentUser(),
		box:           newMailbox(),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		byID:          make(map[model.MessageID]model.Message),
		fromSnapshot:  make(map[model.MessageID]struct{}),
		pendingWrite:  make(map[model.MessageID]struct{}),
		sendError:     make(map[model.MessageID]struct{}),
		pendingDelete: make(map[model.MessageID]struct{}),
		tombstones:    make(map[model.MessageID]struct{}),
		calls:         make(map[uint64]channel.Cancellable),
	}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.Named("engine")
	}
	e.view.Store(&View{})
	return e
}

// Start subscribes to the reference and loads the snapshot, cache first.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true
	enginesRunning.Inc()
	e.sub = e.ref.Listen(listener{e})
	go e.run()
	e.box.post(func() {
		e.loading = true
		e.dirty = true
		e.load(true)
	})
}

// Close cancels in-flight calls and stops the engine goroutine. It must
// not be called from OnChange or OnNotice.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if !started {
		e.cancel()
		return
	}
	e.sub.Unsubscribe()
	e.box.post(func() {
		for id, c := range e.calls {
			c.Cancel()
			delete(e.calls, id)
		}
		e.gauges.reset()
	})
	e.box.close()
	<-e.done
	e.cancel()
	enginesRunning.Dec()
}

// View returns the latest published view.
func (e *Engine) View() View {
	return *e.view.Load()
}

// Sync returns once every event queued before the call was applied.
func (e *Engine) Sync(ctx context.Context) error {
	return e.call(ctx, func() error { return nil })
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		f, ok := e.box.pop()
		if !ok {
			return
		}
		e.step(f)
		if e.dirty {
			e.publish()
		}
	}
}

func (e *Engine) step(f func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("engine step panicked", zap.Error(errs.ErrPanic(r)))
		}
	}()
	f()
}

// call runs f on the engine goroutine and waits for its result.
func (e *Engine) call(ctx context.Context, f func() error) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	res := make(chan error, 1)
	if !e.box.post(func() { res <- f() }) {
		return ErrClosed
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		select {
		case err := <-res:
			return err
		default:
			return ErrClosed
		}
	}
}

func (e *Engine) publish() {
	e.dirty = false
	e.version++
	items := make([]Item, 0, len(e.order))
	counts := make(map[State]int, 3)
	for _, id := range e.order {
		m := e.byID[id]
		s := e.stateOf(id)
		counts[s]++
		items = append(items, Item{
			Message: m,
			State:   s,
			Label:   Label(m, s),
			Mine:    m.IsFrom(e.me),
		})
	}
	v := &View{
		Version: e.version,
		Channel: e.channel,
		Items:   items,
		Loading: e.loading,
		Typing:  append([]model.User(nil), e.typing...),
	}
	e.view.Store(v)
	e.gauges.set(counts)
	if e.onChange != nil {
		e.onChange(*v)
	}
}

func (e *Engine) notify(n Notice) {
	if n.Kind != Rejected {
		failuresTotal.WithLabelValues(string(n.Kind)).Inc()
	}
	e.log.Info("notice", zap.String("kind", string(n.Kind)), zap.String("message", n.MessageID), zap.Error(n.Err))
	if e.onNotice != nil {
		e.onNotice(n)
	}
}

func (e *Engine) track(c channel.Cancellable) uint64 {
	e.nextCall++
	e.calls[e.nextCall] = c
	return e.nextCall
}

// listener forwards reference deliveries into the mailbox.
type listener struct{ e *Engine }

func (l listener) OnMessagesChanged(changes []model.Change[model.Message], md model.ChangeMetadata) {
	cs := append([]model.Change[model.Message](nil), changes...)
	l.e.box.post(func() { l.e.applyChanges(cs, md) })
}

func (l listener) OnTypingEvent(ev model.TypingEvent, md model.ChangeMetadata) {
	l.e.box.post(func() { l.e.applyTyping(ev) })
}

func (l listener) OnChannelUpdated(ch model.Channel, md model.ChangeMetadata) {
	l.e.box.post(func() { l.e.applyChannel(ch) })
}

func (l listener) OnMemberEvent(model.MemberEvent, model.ChangeMetadata) {}
