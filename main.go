package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"AirChat/global"
	"AirChat/global/config"
)

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config file")
	envFile := flag.String("env", ".env", "dotenv file, ignored when missing")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envFile)
	if err != nil {
		glog.Errorf("[Main] load config: %v", err)
		glog.Flush()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := global.Boot(ctx, cfg)
	if err != nil {
		glog.Errorf("[Main] boot: %v", err)
		glog.Flush()
		os.Exit(1)
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Gateway.Run(gctx, cfg.Server.Addr, cfg.Server.ShutdownGrace)
	})
	glog.Infof("[Main] AirChat up on %s, channel %q (store=%s)", cfg.Server.Addr, cfg.Store.ChannelName, cfg.Store.Kind)

	if err := g.Wait(); err != nil {
		glog.Errorf("[Main] exit: %v", err)
	}
	glog.Infof("[Main] bye")
}
