// Support sub-commands in moqu application.
// It's simple but fine so far.
package subcmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/coreos/go-systemd/daemon"
	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
	mq_config "github.com/temoto/moqu/mq/config"
	"github.com/temoto/moqu/mq/seal"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(ctx context.Context, config *mq_config.Config, args []string) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown command='%s'", command)
	}
	return found, nil
}

func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

func Log(ctx context.Context) *log2.Log { return log2.ContextValueLogger(ctx, log2.ContextKey) }

// RequireKey is for commands that can not work without pre-shared key.
func RequireKey(config *mq_config.Config) (seal.Key, error) {
	key, ok, err := config.SealKey(os.Getenv)
	if err != nil {
		return key, errors.Annotate(err, "key")
	}
	if !ok {
		return key, errors.NotFoundf("key, set %s or config key", mq.KeyEnv)
	}
	return key, nil
}

// CountErrors returns counter incremented for every error written to log.
func CountErrors(log *log2.Log) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moqu",
		Name:      "errors_logged_total",
		Help:      "Errors written to log.",
	})
	log.SetErrorFunc(func(error) { c.Inc() })
	return c
}

// ServeMetrics starts Prometheus endpoint if config.MetricsListen is set.
// register adds application collectors. Returned func stops http server.
func ServeMetrics(ctx context.Context, config *mq_config.Config, register func(prometheus.Registerer) error) (func(), error) {
	if config.MetricsListen == "" {
		return func() {}, nil
	}
	log := Log(ctx)
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, errors.Annotate(err, "metrics")
	}
	if err := reg.Register(CountErrors(log)); err != nil {
		return nil, errors.Annotate(err, "metrics")
	}
	if err := register(reg); err != nil {
		return nil, errors.Annotate(err, "metrics")
	}
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	srv := &http.Server{Addr: config.MetricsListen, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics listen=%s err=%v", config.MetricsListen, err)
		}
	}()
	log.Infof("metrics listen=%s", config.MetricsListen)
	return func() { _ = srv.Close() }, nil
}
