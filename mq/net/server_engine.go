package mqnet

import (
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
	"golang.org/x/time/rate"
)

const DefaultHeartbeatInterval = 1500 * time.Millisecond

// ServerState is owned by server event loop.
type ServerState struct {
	Queue      Queue
	Subscriber netip.AddrPort // invalid until first AddrUpdate
	Start      time.Time
}

type ServerEngine struct {
	State ServerState
	Stat  QueueStat

	clock   clock.Clock
	log     *log2.Log
	out     Outbox
	dropLog *rate.Limiter
}

func NewServerEngine(clk clock.Clock, log *log2.Log, out Outbox) *ServerEngine {
	if clk == nil {
		clk = clock.New()
	}
	return &ServerEngine{
		State: ServerState{Start: clk.Now()},
		clock: clk,
		log:   log,
		out:   out,
		// flood of garbage datagrams must not flood the log
		dropLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (se *ServerEngine) Step(e Event) {
	switch e.Kind {
	case EventInbound:
		se.onRequest(e.From, e.Request)
	case EventHeartbeatTick:
		se.onHeartbeat()
	default:
		se.log.Errorf("server: code error unexpected event=%s", e.String())
	}
	se.Stat.update(&se.State.Queue, se.State.Subscriber.IsValid())
}

// DecodeDropped is called from reader goroutine, touches no state.
func (se *ServerEngine) DecodeDropped(from netip.AddrPort, err error) {
	if se.dropLog.AllowN(se.clock.Now(), 1) {
		se.log.Infof("server: drop from=%s err=%v", from, err)
	}
}

func (se *ServerEngine) Uptime() time.Duration { return se.clock.Since(se.State.Start) }

func (se *ServerEngine) onRequest(from netip.AddrPort, r mq.ClientRequest) {
	s := &se.State
	switch r.Kind {
	case mq.RequestAddrUpdate:
		if s.Subscriber != from {
			se.log.Infof("server: subscriber addr=%s previous=%s", from, s.Subscriber)
		}
		s.Subscriber = from

	case mq.RequestPublish:
		seq := s.Queue.Insert(r.Item)
		se.log.Debugf("server: publish seq=%d from=%s item=%s", seq, from, r.Item.String())

	case mq.RequestWatermark:
		s.Queue.PopUntil(r.Seq)
		if seq, item, ok := s.Queue.Front(); ok {
			// reply to whoever asked, not necessarily the subscriber
			se.out.Post(from, mq.NewItemUpdate(seq, item))
		}

	default:
		se.log.Errorf("server: from=%s unexpected request=%s", from, r.String())
	}
}

func (se *ServerEngine) onHeartbeat() {
	if !se.State.Subscriber.IsValid() {
		return
	}
	uptime := uint64(se.Uptime() / time.Second)
	se.out.Post(se.State.Subscriber, mq.NewHeartbeat(uptime))
}
