package mqnet

import (
	"context"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/moqu/helpers"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq/handler"
	"github.com/temoto/moqu/mq/seal"
)

// Client is the subscriber, mobile side.
// Responsible for:
// - announce own address while server heartbeats are missing
// - acknowledge delivered items with watermark
// - pass items to handler in order
type Client struct {
	sync.Mutex // protects conn
	alive      *alive.Alive
	conn       *packetConn
	err        helpers.AtomicError
	events     chan Event
	mailbox    *Mailbox
	opt        ClientOptions
	stat       SessionStat
	cliseq     atomic.Uint64
	server     atomic.Value // of netip.AddrPort
}

type ClientOptions struct {
	Clock            clock.Clock
	Handler          handler.ItemHandler
	Host             string
	IPv6             bool
	Key              seal.Key
	LivenessInterval time.Duration
	Log              *log2.Log
	Mailbox          MailboxOptions
	Port             uint16 // 0 is mq.DefaultPort
	StaleAfter       time.Duration
	// Log and drop undecodable datagrams instead of ending session.
	TolerateDecodeErrors bool
}

func NewClient(opt ClientOptions) *Client {
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	if opt.Host == "" {
		opt.Host = "localhost"
	}
	if opt.LivenessInterval == 0 {
		opt.LivenessInterval = DefaultLivenessInterval
	}
	if opt.StaleAfter == 0 {
		opt.StaleAfter = DefaultStaleAfter
	}
	return &Client{
		alive:   alive.NewAlive(),
		events:  make(chan Event),
		mailbox: NewMailbox(opt.Mailbox),
		opt:     opt,
	}
}

func (c *Client) Stat() *SessionStat { return &c.stat }

// Cliseq is snapshot of last acknowledged sequence, safe from any goroutine.
func (c *Client) Cliseq() uint64 { return c.cliseq.Load() }

// Server is resolved server address, valid after Run started.
func (c *Client) Server() netip.AddrPort {
	a, _ := c.server.Load().(netip.AddrPort)
	return a
}

// Run binds ephemeral socket, resolves server and runs event loop
// until ctx is done, Close or fatal error.
func (c *Client) Run(ctx context.Context) error {
	if !c.alive.Add(1) {
		return ErrClosing
	}
	defer c.alive.Done()

	server, err := resolveServer(ctx, c.opt.Host, c.opt.Port, c.opt.IPv6)
	if err != nil {
		return errors.Annotate(err, "client")
	}
	c.server.Store(server)
	udp, err := listenUDP(ctx, c.opt.IPv6, 0)
	if err != nil {
		return errors.Annotate(err, "client")
	}
	conn := newPacketConn(udp, NewCodec(c.opt.Key), c.opt.Log, &c.stat)
	c.Lock()
	c.conn = conn
	c.Unlock()
	if !c.alive.Add(2) {
		_ = conn.Close()
		return ErrClosing
	}
	c.opt.Log.Infof("client: local=%s server=%s", conn.LocalAddr(), server)
	go c.reader(conn)
	go runPump(c.alive.StopChan(), c.alive.Done, c.mailbox, conn, c.opt.Log)

	engine := NewClientEngine(ClientEngineOptions{
		Clock:      c.opt.Clock,
		Handler:    c.opt.Handler,
		Log:        c.opt.Log,
		Out:        c.mailbox,
		Server:     server,
		StaleAfter: c.opt.StaleAfter,
	})
	step := func(e Event) {
		engine.Step(e)
		c.cliseq.Store(engine.State.Cliseq)
	}
	ticker := c.opt.Clock.Ticker(c.opt.LivenessInterval)
	defer ticker.Stop()
	// announce right away instead of waiting first tick
	step(Event{Kind: EventLivenessTick})
	for {
		select {
		case e := <-c.events:
			step(e)
		case <-ticker.C:
			step(Event{Kind: EventLivenessTick})
		case <-ctx.Done():
			c.stop()
			return ctx.Err()
		case <-c.alive.StopChan():
			err, _ := c.err.Load()
			return err
		}
	}
}

func (c *Client) Close() error {
	c.stop()
	c.alive.Wait()
	err, _ := c.err.Load()
	return err
}

func (c *Client) stop() {
	c.alive.Stop()
	c.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.Unlock()
}

func (c *Client) fail(err error) {
	c.opt.Log.Error(err)
	c.err.StoreOnce(err)
	c.stop()
}

func (c *Client) reader(conn *packetConn) {
	defer c.alive.Done()
	for {
		from, u, err := conn.receiveUpdate()
		if !c.alive.IsRunning() {
			return
		}
		if err != nil {
			if IsDecodeError(err) && c.opt.TolerateDecodeErrors {
				c.opt.Log.Infof("client: drop from=%s err=%v", from, err)
				continue
			}
			c.fail(errors.Annotate(err, "client"))
			return
		}
		select {
		case c.events <- InboundUpdate(from, u):
		case <-c.alive.StopChan():
			return
		}
	}
}
