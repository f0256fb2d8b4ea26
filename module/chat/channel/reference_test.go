package channel

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"AirChat/module/chat/cache"
	"AirChat/module/chat/model"
	"AirChat/module/chat/presence"
	"AirChat/module/chat/store"
	"AirChat/module/chat/stream"
	"AirChat/tools/errs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var me = model.User{ID: "u-me", Name: "Me"}

const chanID = "c1"

type delivery struct {
	changes []model.Change[model.Message]
	md      model.ChangeMetadata
}

type recorder struct {
	stream.NopListener
	mu       sync.Mutex
	messages []delivery
	typing   []model.TypingEvent
	channels []model.Channel
}

func (r *recorder) OnMessagesChanged(c []model.Change[model.Message], md model.ChangeMetadata) {
	r.mu.Lock()
	r.messages = append(r.messages, delivery{c, md})
	r.mu.Unlock()
}

func (r *recorder) OnTypingEvent(ev model.TypingEvent, _ model.ChangeMetadata) {
	r.mu.Lock()
	r.typing = append(r.typing, ev)
	r.mu.Unlock()
}

func (r *recorder) OnChannelUpdated(ch model.Channel, _ model.ChangeMetadata) {
	r.mu.Lock()
	r.channels = append(r.channels, ch)
	r.mu.Unlock()
}

func (r *recorder) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.messages...)
}

func (r *recorder) typingEvents() []model.TypingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TypingEvent(nil), r.typing...)
}

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	_, err := store.Seed(context.Background(), mem, model.Channel{ID: chanID, Name: "Chat with Bahadir"}, me)
	require.NoError(t, err)
	return mem
}

func errCh() (func(error), chan error) {
	ch := make(chan error, 1)
	return func(err error) { ch <- err }, ch
}

func wait(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("completion not delivered")
		return nil
	}
}

func TestSendEmitsPendingThenConfirmed(t *testing.T) {
	mem := seeded(t)
	ref := NewClient(me, mem).ChannelReference(chanID)
	defer ref.Close()
	rec := &recorder{}
	ref.Listen(rec)

	m := model.NewMessage("hello", me)
	done, ch := errCh()
	ref.Send(context.Background(), m, done)

	// pending delivery happens before Send returns
	first := rec.deliveries()
	require.Len(t, first, 1)
	assert.True(t, first[0].md.IsPendingWrite)
	assert.Equal(t, model.Added, first[0].changes[0].Kind)

	require.NoError(t, wait(t, ch))
	all := rec.deliveries()
	require.Len(t, all, 2)
	assert.False(t, all[1].md.IsPendingWrite)
	assert.Equal(t, m.ID, all[1].changes[0].Item.ID)

	h, err := mem.Load(context.Background(), chanID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, h.Messages[len(h.Messages)-1].ID)
}

func TestSendFailureEmitsNothingMore(t *testing.T) {
	faulty := store.NewFaulty(seeded(t), store.FaultConfig{SendFailureRate: 1}, rand.New(rand.NewSource(1)))
	ref := NewClient(me, faulty).ChannelReference(chanID)
	defer ref.Close()
	rec := &recorder{}
	ref.SetListener(rec)

	done, ch := errCh()
	ref.Send(context.Background(), model.NewMessage("hello", me), done)
	err := wait(t, ch)
	assert.True(t, errors.Is(err, errs.ErrWriteFailed))
	assert.Contains(t, err.Error(), "Error sending this message.")
	assert.Len(t, rec.deliveries(), 1)
}

func TestDeleteSuccessAndFailure(t *testing.T) {
	mem := seeded(t)
	faulty := store.NewFaulty(mem, store.FaultConfig{}, rand.New(rand.NewSource(1)))
	ref := NewClient(me, faulty).ChannelReference(chanID)
	defer ref.Close()
	rec := &recorder{}
	ref.Listen(rec)

	h, err := mem.Load(context.Background(), chanID)
	require.NoError(t, err)
	target := h.Messages[0]

	faulty.SetConfig(store.FaultConfig{DeleteFailureRate: 1})
	done, ch := errCh()
	ref.Delete(context.Background(), target, done)
	err = wait(t, ch)
	assert.True(t, errors.Is(err, errs.ErrDeleteFailed))
	require.Len(t, rec.deliveries(), 1)
	assert.True(t, rec.deliveries()[0].md.IsPendingWrite)

	faulty.SetConfig(store.FaultConfig{})
	ref.Delete(context.Background(), target, done)
	require.NoError(t, wait(t, ch))
	all := rec.deliveries()
	require.Len(t, all, 3)
	assert.Equal(t, model.Removed, all[2].changes[0].Kind)
	assert.False(t, all[2].md.IsPendingWrite)

	h, err = mem.Load(context.Background(), chanID)
	require.NoError(t, err)
	assert.Len(t, h.Messages, 8)
}

func TestLoadSnapshotTwoPhases(t *testing.T) {
	mem := seeded(t)
	full, err := mem.Load(context.Background(), chanID)
	require.NoError(t, err)
	local := cache.NewMemory()
	require.NoError(t, local.Put(context.Background(), chanID, full.Prefix(store.CachedPrefix)))

	ref := NewClient(me, mem, WithCache(local)).ChannelReference(chanID)
	defer ref.Close()

	var mu sync.Mutex
	var snaps []model.Snapshot
	finished := make(chan struct{})
	ref.LoadSnapshot(context.Background(), true, func(s model.Snapshot, err error) {
		assert.NoError(t, err)
		mu.Lock()
		snaps = append(snaps, s)
		n := len(snaps)
		mu.Unlock()
		if n == 2 {
			close(finished)
		}
	})
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot not delivered twice")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, snaps[0].Metadata.IsFromLocalCache)
	assert.Len(t, snaps[0].Messages, 3)
	assert.False(t, snaps[1].Metadata.IsFromLocalCache)
	assert.Len(t, snaps[1].Messages, 9)
	assert.Equal(t, "Chat with Bahadir", snaps[1].Channel.Name)

	cached, ok, err := local.Get(context.Background(), chanID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached.Messages, 9)
}

func TestLoadSnapshotWithoutCacheDeliversOnce(t *testing.T) {
	local := cache.NewMemory()
	mem := seeded(t)
	ref := NewClient(me, mem, WithCache(local)).ChannelReference(chanID)
	defer ref.Close()

	snaps := make(chan model.Snapshot, 2)
	ref.LoadSnapshot(context.Background(), false, func(s model.Snapshot, err error) {
		assert.NoError(t, err)
		snaps <- s
	})
	s := <-snaps
	assert.False(t, s.Metadata.IsFromLocalCache)
	select {
	case <-snaps:
		t.Fatal("second delivery")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoadSnapshotFailure(t *testing.T) {
	ref := NewClient(me, store.NewMemory()).ChannelReference("missing")
	defer ref.Close()
	errs1 := make(chan error, 1)
	ref.LoadSnapshot(context.Background(), true, func(_ model.Snapshot, err error) { errs1 <- err })
	err := wait(t, errs1)
	assert.True(t, errors.Is(err, errs.ErrLoadFailed))
}

// gate blocks Append until released.
type gate struct {
	store.Backend
	release chan struct{}
}

func (g *gate) Append(ctx context.Context, id model.ChannelID, m model.Message) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.Backend.Append(ctx, id, m)
}

func TestCancelSuppressesCallbacks(t *testing.T) {
	g := &gate{Backend: seeded(t), release: make(chan struct{})}
	ref := NewClient(me, g).ChannelReference(chanID)
	defer ref.Close()
	rec := &recorder{}
	ref.Listen(rec)

	called := make(chan error, 1)
	c := ref.Send(context.Background(), model.NewMessage("x", me), func(err error) { called <- err })
	c.Cancel()
	close(g.release)

	select {
	case <-called:
		t.Fatal("callback after cancel")
	case <-time.After(100 * time.Millisecond):
	}
	// the pending delivery made before Cancel stays
	assert.Len(t, rec.deliveries(), 1)
}

func TestCloseCancelsEverything(t *testing.T) {
	g := &gate{Backend: seeded(t), release: make(chan struct{})}
	ref := NewClient(me, g).ChannelReference(chanID)
	rec := &recorder{}
	ref.Listen(rec)

	called := make(chan error, 1)
	ref.Send(context.Background(), model.NewMessage("x", me), func(err error) { called <- err })
	ref.Close()
	close(g.release)
	select {
	case <-called:
		t.Fatal("callback after close")
	case <-time.After(100 * time.Millisecond):
	}

	// calls on a closed reference never deliver
	ref.Send(context.Background(), model.NewMessage("y", me), func(err error) { called <- err })
	assert.Len(t, rec.deliveries(), 1)
}

func TestUnsupportedOperations(t *testing.T) {
	ref := NewClient(me, seeded(t)).ChannelReference(chanID)
	defer ref.Close()
	ctx := context.Background()

	ops := []func(func(error)) Cancellable{
		func(d func(error)) Cancellable { return ref.StartWatching(ctx, d) },
		func(d func(error)) Cancellable { return ref.StopWatching(ctx, d) },
		func(d func(error)) Cancellable { return ref.LoadPage(ctx, Pagination{Limit: 10}, d) },
		func(d func(error)) Cancellable { return ref.Hide(ctx, true, d) },
		func(d func(error)) Cancellable { return ref.Show(ctx, d) },
		func(d func(error)) Cancellable { return ref.Ban(ctx, model.Member{User: me}, d) },
		func(d func(error)) Cancellable { return ref.AddMembers(ctx, nil, d) },
		func(d func(error)) Cancellable { return ref.RemoveMembers(ctx, nil, d) },
		func(d func(error)) Cancellable { return ref.Invite(ctx, nil, d) },
		func(d func(error)) Cancellable { return ref.AcceptInvite(ctx, nil, d) },
		func(d func(error)) Cancellable { return ref.RejectInvite(ctx, nil, d) },
		func(d func(error)) Cancellable { return ref.MarkRead(ctx, d) },
		func(d func(error)) Cancellable { return ref.DeleteChannel(ctx, d) },
	}
	for _, op := range ops {
		done, ch := errCh()
		op(done)
		assert.True(t, errors.Is(wait(t, ch), errs.ErrNotSupported))
	}
}

func TestUpdateRenamesChannel(t *testing.T) {
	ref := NewClient(me, seeded(t)).ChannelReference(chanID)
	defer ref.Close()
	rec := &recorder{}
	ref.Listen(rec)

	done, ch := errCh()
	ref.Update(context.Background(), "Team", done)
	require.NoError(t, wait(t, ch))
	rec.mu.Lock()
	assert.Equal(t, []model.Channel{{ID: chanID, Name: "Team"}}, rec.channels)
	rec.mu.Unlock()

	ref.Update(context.Background(), "", done)
	assert.True(t, errors.Is(wait(t, ch), errs.ErrArgs))
}

func TestSimulatedPeer(t *testing.T) {
	clock := presence.NewManualClock(time.Unix(0, 0))
	cfg := presence.DefaultConfig()
	cfg.FirstDelay = presence.Range{Min: 5 * time.Second, Max: 5 * time.Second}
	cfg.TypingFor = presence.Range{Min: 3 * time.Second, Max: 3 * time.Second}
	cfg.Rearm = presence.Range{Min: 6 * time.Second, Max: 6 * time.Second}
	cfg.Clock = clock
	cfg.Rand = rand.New(rand.NewSource(7))
	ref := NewClient(me, seeded(t), WithSimulatedPeer(cfg)).ChannelReference(chanID)
	rec := &recorder{}
	ref.Listen(rec)

	clock.Advance(4 * time.Second)
	assert.Empty(t, rec.typingEvents())
	clock.Advance(time.Second)
	require.Equal(t, []model.TypingEvent{model.StartedTyping(presence.Bahadir)}, rec.typingEvents())
	clock.Advance(3 * time.Second)
	assert.Len(t, rec.typingEvents(), 2)
	d := rec.deliveries()
	require.Len(t, d, 1)
	assert.Equal(t, model.Confirmed, d[0].md)
	assert.Equal(t, presence.Bahadir, d[0].changes[0].Item.Author)

	ref.Close()
	assert.Equal(t, 0, clock.Pending())
}

// localFeed is an in-process stream.Feed.
type localFeed struct {
	mu   sync.Mutex
	next int
	subs map[model.ChannelID]map[int]func(stream.Envelope)
}

func newLocalFeed() *localFeed {
	return &localFeed{subs: make(map[model.ChannelID]map[int]func(stream.Envelope))}
}

type feedSub func()

func (f feedSub) Unsubscribe() { f() }

func (f *localFeed) Publish(_ context.Context, env stream.Envelope) error {
	f.mu.Lock()
	hs := make([]func(stream.Envelope), 0, len(f.subs[env.ChannelID]))
	for _, h := range f.subs[env.ChannelID] {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(env)
	}
	return nil
}

func (f *localFeed) Subscribe(id model.ChannelID, h func(stream.Envelope)) (stream.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[id] == nil {
		f.subs[id] = make(map[int]func(stream.Envelope))
	}
	f.next++
	n := f.next
	f.subs[id][n] = h
	return feedSub(func() {
		f.mu.Lock()
		delete(f.subs[id], n)
		f.mu.Unlock()
	}), nil
}

func TestFeedRelaysToOtherReferences(t *testing.T) {
	mem := seeded(t)
	feed := newLocalFeed()
	alice := NewClient(me, mem, WithFeed(feed)).ChannelReference(chanID)
	defer alice.Close()
	john := model.User{ID: "u-john", Name: "John"}
	bob := NewClient(john, mem, WithFeed(feed)).ChannelReference(chanID)
	defer bob.Close()

	recA, recB := &recorder{}, &recorder{}
	alice.Listen(recA)
	bob.Listen(recB)

	done, ch := errCh()
	m := model.NewMessage("hi john", me)
	alice.Send(context.Background(), m, done)
	require.NoError(t, wait(t, ch))

	// alice sees pending + confirmed, no echo
	assert.Len(t, recA.deliveries(), 2)
	db := recB.deliveries()
	require.Len(t, db, 1)
	assert.False(t, db[0].md.IsPendingWrite)
	assert.Equal(t, m.ID, db[0].changes[0].Item.ID)

	alice.SendTypingEvent(context.Background(), model.StartedTyping(me), done)
	require.NoError(t, wait(t, ch))
	assert.Equal(t, []model.TypingEvent{model.StartedTyping(me)}, recB.typingEvents())
	assert.Empty(t, recA.typingEvents())
}
