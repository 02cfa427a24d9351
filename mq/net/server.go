package mqnet

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/moqu/helpers"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq/seal"
)

// Server holds delivery queue for single subscriber.
// Publishers and subscriber talk to it with sealed UDP datagrams.
type Server struct {
	sync.Mutex // protects conn
	alive      *alive.Alive
	conn       *packetConn
	engine     *ServerEngine
	err        helpers.AtomicError
	events     chan Event
	log        *log2.Log
	mailbox    *Mailbox
	opt        ServerOptions
	stat       SessionStat
}

type ServerOptions struct {
	Clock             clock.Clock
	HeartbeatInterval time.Duration
	IPv6              bool
	Key               seal.Key
	Log               *log2.Log
	Mailbox           MailboxOptions
	Port              uint16 // 0 binds ephemeral port
}

func NewServer(opt ServerOptions) *Server {
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	if opt.HeartbeatInterval == 0 {
		opt.HeartbeatInterval = DefaultHeartbeatInterval
	}
	s := &Server{
		alive:   alive.NewAlive(),
		events:  make(chan Event),
		log:     opt.Log,
		mailbox: NewMailbox(opt.Mailbox),
		opt:     opt,
	}
	s.engine = NewServerEngine(opt.Clock, opt.Log, s.mailbox)
	return s
}

// Listen binds UDP socket. Run calls it if needed.
func (s *Server) Listen(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	if !s.alive.IsRunning() {
		return ErrClosing
	}
	if s.conn != nil {
		return nil
	}
	udp, err := listenUDP(ctx, s.opt.IPv6, s.opt.Port)
	if err != nil {
		return errors.Annotate(err, "server")
	}
	s.conn = newPacketConn(udp, NewCodec(s.opt.Key), s.log, &s.stat)
	s.log.Infof("server: listen addr=%s", s.conn.LocalAddr())
	return nil
}

// Addr is valid after Listen.
func (s *Server) Addr() netip.AddrPort {
	s.Lock()
	defer s.Unlock()
	if s.conn == nil {
		return netip.AddrPort{}
	}
	return s.conn.LocalAddr()
}

func (s *Server) Stat() *SessionStat    { return &s.stat }
func (s *Server) QueueStat() *QueueStat { return &s.engine.Stat }

// Run is the event loop, returns when ctx is done, on Close or on socket error.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	if !s.alive.Add(3) {
		return ErrClosing
	}
	defer s.alive.Done()
	go s.reader()
	go runPump(s.alive.StopChan(), s.alive.Done, s.mailbox, s.conn, s.log)

	ticker := s.opt.Clock.Ticker(s.opt.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case e := <-s.events:
			s.engine.Step(e)
		case <-ticker.C:
			s.engine.Step(Event{Kind: EventHeartbeatTick})
		case <-ctx.Done():
			s.stop()
			return ctx.Err()
		case <-s.alive.StopChan():
			err, _ := s.err.Load()
			return err
		}
	}
}

func (s *Server) Close() error {
	s.stop()
	s.alive.Wait()
	err, _ := s.err.Load()
	return err
}

func (s *Server) stop() {
	s.alive.Stop()
	s.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.Unlock()
}

func (s *Server) reader() {
	defer s.alive.Done()
	for {
		from, r, err := s.conn.receiveRequest()
		if !s.alive.IsRunning() {
			return
		}
		if err != nil {
			if IsDecodeError(err) {
				s.engine.DecodeDropped(from, err)
				continue
			}
			err = errors.Annotate(err, "server")
			s.log.Error(err)
			s.err.StoreOnce(err)
			s.stop()
			return
		}
		select {
		case s.events <- InboundRequest(from, r):
		case <-s.alive.StopChan():
			return
		}
	}
}
