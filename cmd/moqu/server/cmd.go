package server

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/moqu/cmd/moqu/subcmd"
	"github.com/temoto/moqu/mq"
	mq_config "github.com/temoto/moqu/mq/config"
	mqnet "github.com/temoto/moqu/mq/net"
	"github.com/temoto/moqu/mq/seal"
)

var Mod = subcmd.Mod{Name: "server", Usage: "run queue server", Main: Main}

func Main(ctx context.Context, config *mq_config.Config, args []string) error {
	log := subcmd.Log(ctx)
	key, ok, err := config.SealKey(os.Getenv)
	if err != nil {
		return errors.Annotate(err, "key")
	}
	if !ok {
		if key, err = seal.NewKey(); err != nil {
			return err
		}
		log.Infof("generated new key")
	}
	if err = printKey(os.Stdout, key, isatty.IsTerminal(os.Stdout.Fd())); err != nil {
		return err
	}

	server := mqnet.NewServer(config.ServerOptions(key, log))
	if err = server.Listen(ctx); err != nil {
		return err
	}
	defer server.Close()
	stopMetrics, err := subcmd.ServeMetrics(ctx, config, server.RegisterMetrics)
	if err != nil {
		return err
	}
	defer stopMetrics()

	subcmd.SdNotify(daemon.SdNotifyReady)
	log.Infof("server init complete, running")
	err = server.Run(ctx)
	if errors.Cause(err) == context.Canceled {
		err = nil
	}
	log.Infof("server stopped stat=%s queue=%s", server.Stat(), server.QueueStat())
	return err
}

// printKey shows key for provisioning clients, QR code only for humans.
func printKey(w io.Writer, key seal.Key, terminal bool) error {
	line := fmt.Sprintf("%s=%s", mq.KeyEnv, key.Hex())
	if _, err := fmt.Fprintf(w, "Key: %s\n", line); err != nil {
		return errors.Annotate(err, "print key")
	}
	if !terminal {
		return nil
	}
	qr, err := renderQR(line)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, qr)
	return errors.Annotate(err, "print key")
}
