// Package global wires the process: stores, cache, feed, presence and the
// gateway, as selected by config.
package global

import (
	"context"
	"time"

	"github.com/golang/glog"
	goredis "github.com/redis/go-redis/v9"

	"AirChat/global/config"
	"AirChat/logger"
	"AirChat/module/chat/cache"
	"AirChat/module/chat/channel"
	"AirChat/module/chat/model"
	"AirChat/module/chat/store"
	"AirChat/service/chat"
	"AirChat/service/chat/handlers"
	"AirChat/service/mgo"
	"AirChat/service/natsx"
	"AirChat/service/pg"
	"AirChat/service/storage"
	"AirChat/service/storage/redis"
	"AirChat/tools/errs"
	"AirChat/tools/ids"
	"AirChat/tools/security"
)

// DemoUserID owns the "me" half of the seeded conversation.
const DemoUserID = "user-me"

type App struct {
	Cfg     *config.AppConfig
	Me      model.User
	Backend store.Backend
	Faulty  *store.Faulty // nil when faults are off
	Cache   cache.Cache
	Typing  *storage.TypingPresence
	Gateway *chat.Server

	closers []func()
}

// Boot builds every component. Close releases them in reverse order.
func Boot(ctx context.Context, cfg *config.AppConfig) (_ *App, err error) {
	logger.SetLevel(cfg.Log.Level)
	ids.SetNodeID(cfg.NodeID)

	app := &App{Cfg: cfg, Me: model.User{ID: DemoUserID, Name: cfg.Me}}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var opts []channel.ClientOption
	if app.Backend, err = app.openBackend(ctx); err != nil {
		return nil, err
	}
	ch := model.Channel{ID: cfg.Store.ChannelID, Name: cfg.Store.ChannelName}
	var seeded store.History
	if cfg.Store.Seed {
		if seeded, err = store.Seed(ctx, app.Backend, ch, app.Me); err != nil {
			return nil, errs.WrapMsg(err, "seed channel", "channel", ch.ID)
		}
		glog.Infof("[Boot] seeded %q with %d messages", ch.Name, len(seeded.Messages))
	} else if err = app.Backend.EnsureChannel(ctx, ch); err != nil {
		return nil, err
	}

	if cfg.Faults.Enabled {
		app.Faulty = store.NewFaulty(app.Backend, cfg.Faults.FaultConfig, nil)
		app.Backend = app.Faulty
		glog.Infof("[Boot] fault injection on: send=%.2f delete=%.2f",
			cfg.Faults.SendFailureRate, cfg.Faults.DeleteFailureRate)
		if cfg.Nacos.Enabled {
			if err = config.WatchFaults(ctx, cfg.Nacos, cfg.Faults.FaultConfig, app.Faulty.SetConfig); err != nil {
				glog.Warningf("[Boot] nacos watcher disabled: %v", err)
				err = nil
			}
		}
	}

	if cfg.Cache.Enabled {
		if app.Cache, err = openCache(cfg.Cache); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = app.Cache.Close() })
		if cfg.Store.Seed {
			if err = app.Cache.Put(ctx, ch.ID, seeded.Prefix(store.CachedPrefix)); err != nil {
				return nil, err
			}
		}
		opts = append(opts, channel.WithCache(app.Cache))
	}

	if cfg.Typing.Enabled {
		rdb, rerr := app.redis(ctx)
		if rerr != nil {
			return nil, rerr
		}
		app.Typing = storage.NewTypingPresence(rdb, cfg.Typing.TTL)
		opts = append(opts, channel.WithTypingTracker(app.Typing))
	}

	if cfg.NATS.Enabled {
		nc, nerr := natsx.NewClient(cfg.NATS.Config)
		if nerr != nil {
			return nil, nerr
		}
		idem := natsx.NewMemIdem(cfg.NATS.IdemTTL)
		app.closers = append(app.closers, func() {
			idem.Close()
			_ = nc.Close()
		})
		opts = append(opts, channel.WithFeed(natsx.NewFeed(nc, idem, cfg.NATS.IdemTTL)))
		glog.Infof("[Boot] nats feed on %v", cfg.NATS.Servers)
	}

	if cfg.Presence.Enabled {
		opts = append(opts, channel.WithSimulatedPeer(cfg.Presence.Simulator()))
	}

	gwOpts := chat.Options{
		ChannelID:      ch.ID,
		Backend:        app.Backend,
		ClientOptions:  opts,
		JWT:            security.Options{Secret: []byte(cfg.JWT.Secret), Alg: cfg.JWT.Alg, TTL: cfg.JWT.TTL, Issuer: "airchat"},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		KnownUsers:     []model.User{app.Me},
	}
	if app.Typing != nil {
		gwOpts.Typing = app.Typing
	}
	app.Gateway = chat.NewServer(gwOpts)
	handlers.RegisterDefaults(app.Gateway.Disp())
	return app, nil
}

func (a *App) openBackend(ctx context.Context) (store.Backend, error) {
	cfg := a.Cfg
	switch cfg.Store.Kind {
	case config.StoreRedis:
		rdb, err := a.redis(ctx)
		if err != nil {
			return nil, err
		}
		return store.NewRedis(rdb), nil
	case config.StoreMongo:
		mgo.StartAsync(ctx, cfg.Mongo)
		wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := mgo.WaitDB(wctx)
		if err != nil {
			return nil, errs.WrapMsg(err, "wait mongo", "uri", cfg.Mongo.URI)
		}
		m := store.NewMongo(db)
		if err := m.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return m, nil
	case config.StorePostgres:
		pool, err := pg.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		p := store.NewPostgres(pool)
		if err := p.Migrate(ctx); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return store.NewMemory(), nil
	}
}

// redis connects the shared client on first use.
func (a *App) redis(ctx context.Context) (goredis.UniversalClient, error) {
	if err := redis.InitRedis(ctx, a.Cfg.Redis); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = redis.CloseRedis() })
	return redis.GetRedis(), nil
}

func openCache(c config.CacheConfig) (cache.Cache, error) {
	if c.Path == "" {
		return cache.NewMemory(), nil
	}
	p, err := cache.OpenPebble(c.Path)
	if err != nil {
		return nil, err
	}
	if chans, err := p.Channels(); err == nil {
		glog.Infof("[Boot] pebble cache %s holds %d channels", c.Path, len(chans))
	}
	return p, nil
}

func (a *App) Close() {
	if a.Gateway != nil {
		a.Gateway.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	glog.Flush()
	logger.Sync()
}
