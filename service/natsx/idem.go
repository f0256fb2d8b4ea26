package natsx

import (
	"context"
	"strings"
	"sync"
	"time"
)

type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

// MemIdem remembers keys in process memory until they expire.
type MemIdem struct {
	mu   sync.Mutex
	m    map[string]int64 // key -> expire unix nano
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

func NewMemIdem(defaultTTL time.Duration) *MemIdem {
	mi := &MemIdem{m: make(map[string]int64), ttl: defaultTTL, stop: make(chan struct{})}
	go mi.sweep(time.Minute)
	return mi
}

func (mi *MemIdem) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mi.stop:
			return
		case <-t.C:
			now := time.Now().UnixNano()
			mi.mu.Lock()
			for k, exp := range mi.m {
				if exp <= now {
					delete(mi.m, k)
				}
			}
			mi.mu.Unlock()
		}
	}
}

func (mi *MemIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := time.Now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if exp, ok := mi.m[key]; ok && exp > now.UnixNano() {
		return true, nil
	}
	mi.m[key] = now.Add(ttl).UnixNano()
	return false, nil
}

func (mi *MemIdem) Close() {
	mi.once.Do(func() { close(mi.stop) })
}

func msgIDFromHeader(h map[string]string) string {
	for _, k := range []string{HeaderMsgID, "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Idempotent drops messages whose id was already handled within ttl.
// Messages without an id header are keyed by subject and payload.
func Idempotent(store IdemStore, ttl time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			id := msgIDFromHeader(msg.Header)
			if id == "" {
				id = msg.Subject + "|" + strings.TrimSpace(string(msg.Data))
			}
			if seen, _ := store.SeenOnce(id, ttl); seen {
				return nil
			}
			return next(ctx, msg)
		}
	}
}
