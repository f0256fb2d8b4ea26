package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"AirChat/tools/errs"
)

var (
	redisMu  sync.Mutex
	redisMgr *RedisManager
)

type RedisManager struct {
	client *redis.Client
}

type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// New connects and pings.
func New(ctx context.Context, c Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.WrapMsg(err, "redis ping", "addr", c.Addr)
	}
	return rdb, nil
}

// InitRedis sets up the process-wide client once.
func InitRedis(ctx context.Context, c Config) error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr != nil {
		return nil
	}
	rdb, err := New(ctx, c)
	if err != nil {
		return err
	}
	redisMgr = &RedisManager{client: rdb}
	return nil
}

func GetRedis() *redis.Client {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr == nil {
		panic("Redis not initialized, call InitRedis first")
	}
	return redisMgr.client
}

func CloseRedis() error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr == nil {
		return nil
	}
	err := redisMgr.client.Close()
	redisMgr = nil
	return err
}
