package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/moqu/cmd/moqu/client"
	"github.com/temoto/moqu/cmd/moqu/publish"
	"github.com/temoto/moqu/cmd/moqu/server"
	"github.com/temoto/moqu/cmd/moqu/subcmd"
	"github.com/temoto/moqu/log2"
	mq_config "github.com/temoto/moqu/mq/config"
)

var modules = []subcmd.Mod{
	client.Mod,
	publish.Mod,
	publish.ShellMod,
	server.Mod,
}

func main() {
	flagConfig := flag.String("config", mq_config.DefaultName, "config file, optional unless set explicitly")
	flagPort := flag.Int("p", 0, "server UDP port (default 34122)")
	flagHost := flag.String("h", "", "server host to connect to (default localhost)")
	flagIPv6 := flag.Bool("6", false, "use IPv6")
	flagDebug := flag.Bool("debug", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	log := log2.NewStderr(log2.LInfo)
	if subcmd.SdNotify("start") {
		// under systemd, assume journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	config, err := mq_config.Read(log, mq_config.NewOsFullReader(),
		mq_config.Source{Name: *flagConfig, Optional: !explicit["config"]})
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if explicit["p"] {
		config.Port = *flagPort
	}
	if explicit["h"] {
		config.Host = *flagHost
	}
	if explicit["6"] {
		config.IPv6 = *flagIPv6
	}
	if explicit["debug"] {
		config.LogDebug = *flagDebug
	}
	config.Defaults()
	if err = config.Validate(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if config.LogDebug {
		log.SetLevel(log2.LDebug)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = context.WithValue(ctx, log2.ContextKey, log)

	if err = mod.Main(ctx, config, flag.Args()[1:]); err != nil {
		cancel()
		log.Fatalf("%s: %s", mod.Name, errors.ErrorStack(err))
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] command [command flags]\n\nCommands:\n", os.Args[0])
	for _, m := range modules {
		fmt.Fprintf(out, "  %-8s %s\n", m.Name, m.Usage)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}
