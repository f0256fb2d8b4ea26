package config

import (
	"context"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"

	"AirChat/logger"
	"AirChat/module/chat/store"
	"AirChat/tools/decode"
	"AirChat/tools/errs"
)

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      uint64 `yaml:"port"`
	Namespace string `yaml:"namespace"`
	DataID    string `yaml:"data_id"`
	Group     string `yaml:"group"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	CacheDir  string `yaml:"cache_dir"`
	LogDir    string `yaml:"log_dir"`
}

func newNacosClient(c NacosConfig) (config_client.IConfigClient, error) {
	cacheDir, logDir := c.CacheDir, c.LogDir
	if cacheDir == "" {
		cacheDir = "nacos/cache"
	}
	if logDir == "" {
		logDir = "nacos/log"
	}
	cli, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig: constant.NewClientConfig(
			constant.WithNamespaceId(c.Namespace),
			constant.WithTimeoutMs(5000),
			constant.WithNotLoadCacheAtStart(true),
			constant.WithLogLevel("warn"),
			constant.WithCacheDir(cacheDir),
			constant.WithLogDir(logDir),
			constant.WithUsername(c.Username),
			constant.WithPassword(c.Password),
		),
		ServerConfigs: []constant.ServerConfig{*constant.NewServerConfig(c.Host, c.Port)},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "create nacos config client")
	}
	return cli, nil
}

// ParseFaults applies the "faults" section of a YAML document (or the whole
// document when there is no such section) on top of base.
func ParseFaults(data string, base store.FaultConfig) (store.FaultConfig, error) {
	m, err := decode.YAML([]byte(data))
	if err != nil {
		return base, errs.ErrArgs.WrapMsg(err.Error())
	}
	if sub, ok := m["faults"].(map[string]any); ok {
		m = sub
	}
	out := base
	if err := decode.Into(m, &out); err != nil {
		return base, errs.ErrArgs.WrapMsg(err.Error())
	}
	return out, nil
}

// WatchFaults loads the fault tunables from Nacos and re-applies them on every
// published change until ctx is done. Bad payloads are logged and skipped.
func WatchFaults(ctx context.Context, c NacosConfig, base store.FaultConfig, apply func(store.FaultConfig)) error {
	cli, err := newNacosClient(c)
	if err != nil {
		return err
	}
	log := logger.Named("nacos")
	update := func(data string) {
		fc, err := ParseFaults(data, base)
		if err != nil {
			log.Warn("ignoring fault config", zap.Error(err))
			return
		}
		log.Info("fault config applied",
			zap.Float64("send", fc.SendFailureRate),
			zap.Float64("delete", fc.DeleteFailureRate),
			zap.Duration("write_latency", fc.WriteLatency))
		apply(fc)
	}

	param := vo.ConfigParam{DataId: c.DataID, Group: c.Group}
	content, err := cli.GetConfig(param)
	if err != nil {
		cli.CloseClient()
		return errs.WrapMsg(err, "get nacos config", "data_id", c.DataID)
	}
	if content != "" {
		update(content)
	}

	param.OnChange = func(_, _, _, data string) { update(data) }
	if err := cli.ListenConfig(param); err != nil {
		cli.CloseClient()
		return errs.WrapMsg(err, "listen nacos config", "data_id", c.DataID)
	}
	go func() {
		<-ctx.Done()
		_ = cli.CancelListenConfig(vo.ConfigParam{DataId: c.DataID, Group: c.Group})
		cli.CloseClient()
	}()
	return nil
}
