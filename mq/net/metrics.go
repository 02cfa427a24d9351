package mqnet

import (
	"expvar"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/temoto/moqu/helpers"
)

const metricsNamespace = "moqu"

type metricSet struct {
	labels     prometheus.Labels
	collectors []prometheus.Collector
}

func newMetricSet(role string) *metricSet {
	return &metricSet{labels: prometheus.Labels{"role": role}}
}

func (ms *metricSet) counter(name, help string, v *expvar.Int) {
	ms.collectors = append(ms.collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   metricsNamespace,
		Name:        name,
		Help:        help,
		ConstLabels: ms.labels,
	}, func() float64 { return float64(v.Value()) }))
}

func (ms *metricSet) gauge(name, help string, f func() float64) {
	ms.collectors = append(ms.collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        name,
		Help:        help,
		ConstLabels: ms.labels,
	}, f))
}

func (ms *metricSet) session(ss *SessionStat, mb *Mailbox) {
	for _, d := range []struct {
		name string
		c    *Counters
	}{{"recv", &ss.Recv}, {"send", &ss.Send}} {
		ms.counter(d.name+"_datagrams_total", "Datagrams by direction.", &d.c.Total.Count)
		ms.counter(d.name+"_bytes_total", "Datagram bytes by direction.", &d.c.Total.Size)
		ms.counter(d.name+"_items_total", "Item carrying datagrams by direction.", &d.c.Item.Count)
	}
	ms.counter("decode_drops_total", "Inbound datagrams failed to decode.", &ss.Drop)
	ms.gauge("last_recv_age_seconds", "Seconds since last valid datagram, 0 if none.",
		func() float64 { return ss.SinceLastRecv().Seconds() })
	if mb != nil {
		ms.counter("mailbox_dropped_total", "Outgoing messages dropped by bounded mailbox.", &mb.Dropped)
		ms.gauge("mailbox_pending", "Outgoing messages waiting for send.",
			func() float64 { return float64(mb.Len()) })
	}
}

func (ms *metricSet) register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range ms.collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	return helpers.FoldErrors(errs)
}

func (s *Server) RegisterMetrics(reg prometheus.Registerer) error {
	ms := newMetricSet("server")
	ms.session(&s.stat, s.mailbox)
	qs := &s.engine.Stat
	ms.gauge("queue_length", "Items retained until acknowledged.", func() float64 { return float64(qs.Len.Value()) })
	ms.gauge("queue_sseq", "Last assigned item sequence.", func() float64 { return float64(qs.Sseq.Value()) })
	ms.gauge("queue_cliseq", "Last acknowledged item sequence.", func() float64 { return float64(qs.Cliseq.Value()) })
	ms.gauge("subscribed", "1 when subscriber address is known.", func() float64 { return float64(qs.Subscribed.Value()) })
	return ms.register(reg)
}

func (c *Client) RegisterMetrics(reg prometheus.Registerer) error {
	ms := newMetricSet("client")
	ms.session(&c.stat, c.mailbox)
	ms.gauge("queue_cliseq", "Last acknowledged item sequence.", func() float64 { return float64(c.Cliseq()) })
	return ms.register(reg)
}
