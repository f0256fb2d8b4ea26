// Package presence simulates a peer in the channel: it types for a while,
// sends a short message, then starts again.
package presence

import (
	"math/rand"
	"sync"
	"time"

	"AirChat/module/chat/model"
)

type Range struct {
	Min time.Duration `yaml:"min" mapstructure:"min"`
	Max time.Duration `yaml:"max" mapstructure:"max"`
}

func (r Range) pick(rnd *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rnd.Int63n(int64(r.Max-r.Min)+1))
}

type Config struct {
	Peer model.User

	FirstDelay Range
	TypingFor  Range
	Rearm      Range

	Clock Clock
	Rand  *rand.Rand
}

// Bahadir is the peer of the demo conversation.
var Bahadir = model.User{ID: "user-bahadir", Name: "Bahadir"}

func DefaultConfig() Config {
	return Config{
		Peer:       Bahadir,
		FirstDelay: Range{Min: 5 * time.Second, Max: 10 * time.Second},
		TypingFor:  Range{Min: 2 * time.Second, Max: 5 * time.Second},
		Rearm:      Range{Min: 5 * time.Second, Max: 8 * time.Second},
	}
}

// Emitter receives what the simulated peer does. Calls are made with the
// simulator's lock held: implementations must return promptly and must not
// call back into the Simulator on the same goroutine.
type Emitter interface {
	EmitTyping(ev model.TypingEvent)
	EmitMessage(msg model.Message)
}

type Simulator struct {
	cfg  Config
	emit Emitter

	mu      sync.Mutex
	timer   Timer
	started bool
	stopped bool
}

func New(cfg Config, emit Emitter) *Simulator {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Peer.IsZero() {
		cfg.Peer = Bahadir
	}
	return &Simulator{cfg: cfg, emit: emit}
}

func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.scheduleLocked(s.cfg.FirstDelay, s.startTyping)
}

// Stop cancels the pending timer. Nothing is emitted once Stop returns.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Simulator) scheduleLocked(r Range, step func()) {
	if s.stopped {
		return
	}
	d := r.pick(s.cfg.Rand)
	s.timer = s.cfg.Clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped {
			return
		}
		step()
	})
}

// steps run with s.mu held

func (s *Simulator) startTyping() {
	s.emit.EmitTyping(model.StartedTyping(s.cfg.Peer))
	s.scheduleLocked(s.cfg.TypingFor, s.stopTyping)
}

func (s *Simulator) stopTyping() {
	s.emit.EmitTyping(model.StoppedTyping(s.cfg.Peer))
	s.emit.EmitMessage(model.NewMessage(Lorem(s.cfg.Rand, 1, 8), s.cfg.Peer))
	s.scheduleLocked(s.cfg.Rearm, s.startTyping)
}
