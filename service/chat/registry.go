package chat

import (
	"sync"

	"AirChat/module/chat/model"
)

// Registry indexes live sessions by id and by user. One user may hold
// several sessions (tabs, devices).
type Registry struct {
	mu     sync.RWMutex
	byUser map[model.UserID]map[string]*Session
	byID   map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[model.UserID]map[string]*Session),
		byID:   make(map[string]*Session),
	}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byUser[s.User.ID]
	if m == nil {
		m = make(map[string]*Session)
		r.byUser[s.User.ID] = m
	}
	m[s.ID] = s
	r.byID[s.ID] = s
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, s.ID)
	if m := r.byUser[s.User.ID]; m != nil {
		delete(m, s.ID)
		if len(m) == 0 {
			delete(r.byUser, s.User.ID)
		}
	}
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) ListByUser(u model.UserID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byUser[u]))
	for _, s := range r.byUser[u] {
		out = append(out, s)
	}
	return out
}

func (r *Registry) ListAll() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
