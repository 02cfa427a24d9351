package mqnet

import (
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
	"github.com/temoto/moqu/mq/handler"
)

const (
	DefaultLivenessInterval = 1500 * time.Millisecond
	DefaultStaleAfter       = 10 * time.Second
)

// ClientState is owned by client event loop.
type ClientState struct {
	Cliseq        uint64 // highest seq delivered to handler
	Ready         bool   // false until first Item synchronised Cliseq
	LastHeartbeat time.Time
}

type ClientEngine struct {
	State ClientState

	clock      clock.Clock
	handler    handler.ItemHandler
	log        *log2.Log
	out        Outbox
	server     netip.AddrPort
	staleAfter time.Duration
}

type ClientEngineOptions struct {
	Clock      clock.Clock
	Handler    handler.ItemHandler
	Log        *log2.Log
	Out        Outbox
	Server     netip.AddrPort
	StaleAfter time.Duration
}

func NewClientEngine(opt ClientEngineOptions) *ClientEngine {
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	if opt.StaleAfter == 0 {
		opt.StaleAfter = DefaultStaleAfter
	}
	return &ClientEngine{
		clock:      opt.Clock,
		handler:    opt.Handler,
		log:        opt.Log,
		out:        opt.Out,
		server:     opt.Server,
		staleAfter: opt.StaleAfter,
	}
}

func (ce *ClientEngine) Step(e Event) {
	switch e.Kind {
	case EventInbound:
		ce.onUpdate(e.From, e.Update)
	case EventLivenessTick:
		ce.onLiveness()
	default:
		ce.log.Errorf("client: code error unexpected event=%s", e.String())
	}
}

// Stale reports whether subscription must be (re)announced.
func (ce *ClientEngine) Stale() bool {
	if ce.State.LastHeartbeat.IsZero() {
		return true
	}
	return ce.clock.Since(ce.State.LastHeartbeat) > ce.staleAfter
}

func (ce *ClientEngine) onUpdate(from netip.AddrPort, u mq.ServerUpdate) {
	s := &ce.State
	switch u.Kind {
	case mq.UpdateHeartbeat:
		s.LastHeartbeat = ce.clock.Now()
		ce.log.Debugf("client: heartbeat server uptime=%ds", u.Uptime)
		ce.out.Post(ce.server, mq.NewWatermark(s.Cliseq))

	case mq.UpdateItem:
		switch {
		case u.Seq == s.Cliseq+1:
			s.Ready = true
			s.Cliseq = u.Seq
			if ce.handler != nil {
				if err := ce.handler.Handle(u.Item); err != nil {
					ce.log.Errorf("client: seq=%d handle item=%s err=%v", u.Seq, u.Item.String(), err)
				}
			}
			ce.out.Post(ce.server, mq.NewWatermark(s.Cliseq))

		case !s.Ready:
			// fresh client adopts server position, item is redelivered after next heartbeat
			s.Ready = true
			if u.Seq > 0 {
				s.Cliseq = u.Seq - 1
			}
			ce.log.Infof("client: synchronised cliseq=%d", s.Cliseq)

		default:
			ce.log.Warnf("client: out of order seq=%d cliseq=%d", u.Seq, s.Cliseq)
		}

	default:
		ce.log.Errorf("client: from=%s unexpected update=%s", from, u.String())
	}
}

func (ce *ClientEngine) onLiveness() {
	if ce.Stale() {
		ce.log.Debugf("client: announce addr to server=%s", ce.server)
		ce.out.Post(ce.server, mq.NewAddrUpdate())
	}
}
