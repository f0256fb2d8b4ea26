package natsx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"AirChat/logger"
	"AirChat/tools/errs"
)

type Config struct {
	Servers       []string      `yaml:"servers"`
	Name          string        `yaml:"name"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	Timeout       time.Duration `yaml:"timeout"`
	// Publish retries on transient errors, Backoff apart.
	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
}

// Client wraps one core NATS connection.
type Client struct {
	cfg Config
	nc  *nats.Conn
	log *zap.Logger

	mu   sync.Mutex
	subs map[*nats.Subscription]struct{}
}

func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	log := logger.Named("natsx")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", cfg.Servers)
	}
	return &Client{
		cfg:  cfg,
		nc:   nc,
		log:  log,
		subs: make(map[*nats.Subscription]struct{}),
	}, nil
}

func (c *Client) Conn() *nats.Conn { return c.nc }

// Publish sends data on subject with headers, retrying Retries times.
func (c *Client) Publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	var err error
	for i := 0; i <= c.cfg.Retries; i++ {
		if err = c.nc.PublishMsg(msg); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.Backoff):
		}
	}
	return errs.WrapMsg(err, "nats publish", "subject", subject)
}

// Subscribe runs h, wrapped by mws, for every message on subject.
func (c *Client) Subscribe(subject string, h Handler, mws ...Middleware) (*Subscription, error) {
	h = Chain(h, mws...)
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		msg := Message{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		}
		if err := h(context.Background(), msg); err != nil {
			c.log.Debug("handler failed", zap.String("subject", m.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "nats subscribe", "subject", subject)
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()
	return &Subscription{c: c, sub: sub}, nil
}

// Close drains the subscriptions and the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	for sub := range c.subs {
		_ = sub.Drain()
		delete(c.subs, sub)
	}
	c.mu.Unlock()
	if c.nc != nil {
		return c.nc.Drain()
	}
	return nil
}

type Subscription struct {
	c    *Client
	sub  *nats.Subscription
	once sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.c.mu.Lock()
		delete(s.c.subs, s.sub)
		s.c.mu.Unlock()
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.c.log.Warn("nats unsubscribe failed", zap.Error(err))
		}
	})
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
