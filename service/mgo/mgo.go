package mgo

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"AirChat/logger"
	"AirChat/tools/errs"
)

type Config struct {
	URI         string   `yaml:"uri"`
	Address     []string `yaml:"address"` // used when URI is empty
	Database    string   `yaml:"database"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	AuthSource  string   `yaml:"auth_source"`
	MaxPoolSize uint64   `yaml:"max_pool_size"`
}

const defaultMaxPoolSize = 100

// clientOptions prefers a full URI, then the address list. Explicit
// credentials override any in the URI.
func clientOptions(cfg Config) (*options.ClientOptions, error) {
	if cfg.Database == "" {
		return nil, errs.ErrArgs.WrapMsg("mongo database is required")
	}
	var opts *options.ClientOptions
	switch {
	case cfg.URI != "":
		opts = options.Client().ApplyURI(cfg.URI)
	case len(cfg.Address) > 0:
		opts = options.Client().SetHosts(cfg.Address)
	default:
		return nil, errs.ErrArgs.WrapMsg("mongo uri or address is required")
	}
	pool := cfg.MaxPoolSize
	if pool == 0 {
		pool = defaultMaxPoolSize
	}
	opts.SetMaxPoolSize(pool)
	if cfg.Username != "" {
		src := cfg.AuthSource
		if src == "" {
			src = cfg.Database
		}
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password, AuthSource: src})
	}
	return opts, nil
}

// retryable is false for auth failures (codes 13 and 18) and once ctx ends.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code != 13 && ce.Code != 18
	}
	return true
}

type MongoManager struct {
	mu        sync.RWMutex
	client    *mongo.Client
	db        *mongo.Database
	readyCh   chan struct{} // closed on first successful connect
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr = MongoManager{readyCh: make(chan struct{})}

func connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	cli, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(cctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}

// StartAsync keeps a connection until ctx is done: it retries with
// backoff, closes Ready on the first success and reconnects after
// repeated failed health checks.
func StartAsync(ctx context.Context, cfg Config) {
	log := logger.Named("mgo")
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second
			failThresh  = 3
		)

		for {
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := connect(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.client = cli
					globalMgr.db = cli.Database(cfg.Database)
					globalMgr.mu.Unlock()
					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					log.Info("mongo connected", zap.String("database", cfg.Database))
					break
				}
				globalMgr.lastErr.Store(err)
				log.Warn("mongo connect failed", zap.Int("attempt", attempt), zap.Error(err))
				if !retryable(ctx, err) {
					return
				}

				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff / 5)))
				timer := time.NewTimer(backoff - jitter/2)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			if !healthLoop(ctx, healthEvery, failThresh) {
				return
			}
		}
	}()
}

// healthLoop pings until ctx ends (false) or the connection is deemed
// lost (true).
func healthLoop(ctx context.Context, every time.Duration, failThresh int) bool {
	fail := 0
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			drop()
			return false
		case <-t.C:
			globalMgr.mu.RLock()
			c := globalMgr.client
			globalMgr.mu.RUnlock()
			if c == nil {
				return true
			}
			if err := c.Ping(ctx, nil); err != nil {
				fail++
				globalMgr.lastErr.Store(err)
				if fail >= failThresh {
					drop()
					return true
				}
			} else {
				fail = 0
			}
		}
	}
}

func drop() {
	globalMgr.mu.Lock()
	defer globalMgr.mu.Unlock()
	if globalMgr.client != nil {
		_ = globalMgr.client.Disconnect(context.Background())
		globalMgr.client = nil
		globalMgr.db = nil
	}
}

func Ready() <-chan struct{} { return globalMgr.readyCh }

// Err is the most recent connection error.
func Err() error {
	if v := globalMgr.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	return globalMgr.db, globalMgr.db != nil
}

// WaitDB blocks until the first connection or ctx ends.
func WaitDB(ctx context.Context) (*mongo.Database, error) {
	select {
	case <-Ready():
	case <-ctx.Done():
		if err := Err(); err != nil {
			return nil, errs.WrapMsg(err, "mongo not ready")
		}
		return nil, ctx.Err()
	}
	db, ok := TryGetDB()
	if !ok {
		return nil, errs.ErrInternalServer.WrapMsg("mongo connection lost")
	}
	return db, nil
}
