package mqnet

import (
	"expvar"
	"fmt"
	"net/netip"
	"sync"

	"github.com/temoto/moqu/mq"
)

type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventInbound
	EventHeartbeatTick
	EventLivenessTick
)

func (k EventKind) String() string {
	switch k {
	case EventInbound:
		return "Inbound"
	case EventHeartbeatTick:
		return "HeartbeatTick"
	case EventLivenessTick:
		return "LivenessTick"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is consumed by engine Step, exactly one per loop iteration.
// For EventInbound, From is datagram source and Request (server side)
// or Update (client side) is the decoded message.
type Event struct {
	Kind    EventKind
	From    netip.AddrPort
	Request mq.ClientRequest
	Update  mq.ServerUpdate
}

func InboundRequest(from netip.AddrPort, r mq.ClientRequest) Event {
	return Event{Kind: EventInbound, From: from, Request: r}
}
func InboundUpdate(from netip.AddrPort, u mq.ServerUpdate) Event {
	return Event{Kind: EventInbound, From: from, Update: u}
}

func (e Event) String() string {
	if e.Kind != EventInbound {
		return e.Kind.String()
	}
	if e.Request.Kind != mq.RequestInvalid {
		return fmt.Sprintf("Inbound(from=%s %s)", e.From, e.Request.String())
	}
	return fmt.Sprintf("Inbound(from=%s %s)", e.From, e.Update.String())
}

type Outgoing struct {
	To  netip.AddrPort
	Msg mq.Message
}

// Outbox accepts messages from event loop. Post must not block.
type Outbox interface {
	Post(to netip.AddrPort, m mq.Message)
}

type MailboxOptions struct {
	// 0 is unbounded, otherwise oldest pending message is dropped on overflow.
	Limit int
}

// Mailbox is FIFO between event loop and send pump.
// Lock only guards the slice; protocol state never leaves the loop.
type Mailbox struct {
	mu      sync.Mutex
	pending []Outgoing
	limit   int
	notify  chan struct{}
	Dropped expvar.Int
}

var _ Outbox = (*Mailbox)(nil)

func NewMailbox(opt MailboxOptions) *Mailbox {
	return &Mailbox{
		limit:  opt.Limit,
		notify: make(chan struct{}, 1),
	}
}

func (mb *Mailbox) Post(to netip.AddrPort, m mq.Message) {
	mb.mu.Lock()
	if mb.limit > 0 && len(mb.pending) >= mb.limit {
		n := copy(mb.pending, mb.pending[1:])
		mb.pending[n] = Outgoing{}
		mb.pending = mb.pending[:n]
		mb.Dropped.Add(1)
	}
	mb.pending = append(mb.pending, Outgoing{To: to, Msg: m})
	mb.mu.Unlock()

	select {
	case mb.notify <- struct{}{}:
	default:
	}
}

// Wait is signalled after Post, possibly once for many posts.
func (mb *Mailbox) Wait() <-chan struct{} { return mb.notify }

// Take moves all pending messages into buf[:0] in post order.
func (mb *Mailbox) Take(buf []Outgoing) []Outgoing {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	buf = append(buf[:0], mb.pending...)
	clear(mb.pending)
	mb.pending = mb.pending[:0]
	return buf
}

func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.pending)
}

// OutboxFunc adapts function to Outbox, used in engine tests.
type OutboxFunc func(to netip.AddrPort, m mq.Message)

func (f OutboxFunc) Post(to netip.AddrPort, m mq.Message) { f(to, m) }
