package store

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"AirChat/module/chat/model"
	"AirChat/tools/errs"
)

var (
	ErrInjectedSend   = errs.New("Error sending this message.")
	ErrInjectedDelete = errs.New("Too many bugs...")
	ErrInjectedLoad   = errs.New("Can't reach the chat servers.")
)

// FaultConfig drives the Faulty wrapper. Rates are probabilities in [0,1].
type FaultConfig struct {
	SendFailureRate   float64       `yaml:"send_failure_rate" mapstructure:"send_failure_rate"`
	DeleteFailureRate float64       `yaml:"delete_failure_rate" mapstructure:"delete_failure_rate"`
	LoadFailureRate   float64       `yaml:"load_failure_rate" mapstructure:"load_failure_rate"`
	WriteLatency      time.Duration `yaml:"write_latency" mapstructure:"write_latency"`
	LoadLatency       time.Duration `yaml:"load_latency" mapstructure:"load_latency"`
}

// DemoFaults are the rates and latencies of the hosted demo: one send in
// four and one delete in three fail.
func DemoFaults() FaultConfig {
	return FaultConfig{
		SendFailureRate:   0.25,
		DeleteFailureRate: 1.0 / 3.0,
		WriteLatency:      2 * time.Second,
		LoadLatency:       2500 * time.Millisecond,
	}
}

// Faulty wraps a Backend with latency and random failures.
type Faulty struct {
	next Backend

	mu  sync.Mutex
	cfg FaultConfig
	rnd *rand.Rand
}

func NewFaulty(next Backend, cfg FaultConfig, rnd *rand.Rand) *Faulty {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Faulty{next: next, cfg: cfg, rnd: rnd}
}

func (f *Faulty) Config() FaultConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// SetConfig swaps the tunables; calls already sleeping keep the old latency.
func (f *Faulty) SetConfig(cfg FaultConfig) {
	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
}

func (f *Faulty) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rnd.Float64() < rate
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Faulty) EnsureChannel(ctx context.Context, ch model.Channel) error {
	return f.next.EnsureChannel(ctx, ch)
}

func (f *Faulty) Load(ctx context.Context, channelID model.ChannelID) (History, error) {
	cfg := f.Config()
	if err := wait(ctx, cfg.LoadLatency); err != nil {
		return History{}, err
	}
	if f.roll(cfg.LoadFailureRate) {
		return History{}, ErrInjectedLoad
	}
	return f.next.Load(ctx, channelID)
}

func (f *Faulty) Append(ctx context.Context, channelID model.ChannelID, msg model.Message) error {
	cfg := f.Config()
	if err := wait(ctx, cfg.WriteLatency); err != nil {
		return err
	}
	if f.roll(cfg.SendFailureRate) {
		return ErrInjectedSend
	}
	return f.next.Append(ctx, channelID, msg)
}

func (f *Faulty) Remove(ctx context.Context, channelID model.ChannelID, msgID model.MessageID) error {
	cfg := f.Config()
	if err := wait(ctx, cfg.WriteLatency); err != nil {
		return err
	}
	if f.roll(cfg.DeleteFailureRate) {
		return ErrInjectedDelete
	}
	return f.next.Remove(ctx, channelID, msgID)
}

func (f *Faulty) Rename(ctx context.Context, channelID model.ChannelID, name string) (model.Channel, error) {
	cfg := f.Config()
	if err := wait(ctx, cfg.WriteLatency); err != nil {
		return model.Channel{}, err
	}
	return f.next.Rename(ctx, channelID, name)
}
