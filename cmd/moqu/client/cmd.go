package client

import (
	"context"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/moqu/cmd/moqu/subcmd"
	mq_config "github.com/temoto/moqu/mq/config"
	mqnet "github.com/temoto/moqu/mq/net"
)

var Mod = subcmd.Mod{Name: "client", Usage: "subscribe and run handle.<kind> programs", Main: Main}

func Main(ctx context.Context, config *mq_config.Config, args []string) error {
	log := subcmd.Log(ctx)
	key, err := subcmd.RequireKey(config)
	if err != nil {
		return err
	}

	client := mqnet.NewClient(config.ClientOptions(key, log))
	defer client.Close()
	stopMetrics, err := subcmd.ServeMetrics(ctx, config, client.RegisterMetrics)
	if err != nil {
		return err
	}
	defer stopMetrics()

	subcmd.SdNotify(daemon.SdNotifyReady)
	err = client.Run(ctx)
	if errors.Cause(err) == context.Canceled {
		err = nil
	}
	log.Infof("client stopped cliseq=%d stat=%s", client.Cliseq(), client.Stat())
	return err
}
