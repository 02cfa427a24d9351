package mqnet

import (
	"context"
	"encoding"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
)

// Largest UDP payload.
const MaxDatagramSize = 64 << 10

var ErrClosing = fmt.Errorf("closing")

// packetConn is UDP socket speaking sealed messages.
// receive* must be called from single goroutine, send is safe for concurrent use.
type packetConn struct {
	udp       *net.UDPConn
	codec     *Codec
	log       *log2.Log
	stat      *SessionStat
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

func newPacketConn(udp *net.UDPConn, codec *Codec, log *log2.Log, stat *SessionStat) *packetConn {
	return &packetConn{
		udp:   udp,
		codec: codec,
		log:   log,
		stat:  stat,
		buf:   make([]byte, MaxDatagramSize),
	}
}

func (c *packetConn) LocalAddr() netip.AddrPort {
	return c.udp.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (c *packetConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.udp.Close() })
	return c.closeErr
}

// read returns socket error or *DecodeError.
func (c *packetConn) read(into encoding.BinaryUnmarshaler) (netip.AddrPort, int, error) {
	n, from, err := c.udp.ReadFromUDPAddrPort(c.buf)
	if err != nil {
		return from, n, errors.Annotate(err, "read")
	}
	if err = c.codec.Decode(c.buf[:n], into); err != nil {
		c.stat.Drop.Add(1)
		return from, n, err
	}
	c.stat.LastRecv.SetNow()
	return from, n, nil
}

func (c *packetConn) receiveRequest() (netip.AddrPort, mq.ClientRequest, error) {
	var r mq.ClientRequest
	from, n, err := c.read(&r)
	if err == nil {
		c.stat.Recv.Register(r, n)
	}
	return from, r, err
}

func (c *packetConn) receiveUpdate() (netip.AddrPort, mq.ServerUpdate, error) {
	var u mq.ServerUpdate
	from, n, err := c.read(&u)
	if err == nil {
		c.stat.Recv.Register(u, n)
	}
	return from, u, err
}

// send panics on encode error, it means message invariant was broken by caller.
func (c *packetConn) send(to netip.AddrPort, m mq.Message) error {
	b, err := c.codec.Encode(m)
	if err != nil {
		panic(fmt.Sprintf("code error to=%s err=%s", to, errors.ErrorStack(err)))
	}
	if _, err = c.udp.WriteToUDPAddrPort(b, to); err != nil {
		return errors.Annotatef(err, "send to=%s m=%s", to, m.String())
	}
	c.stat.Send.Register(m, len(b))
	return nil
}

func udpNetwork(ipv6 bool) string {
	if ipv6 {
		return "udp6"
	}
	return "udp4"
}

// listenUDP binds wildcard address of selected family, port 0 is ephemeral.
// IPv6 socket accepts IPv4 too where OS allows.
func listenUDP(ctx context.Context, ipv6 bool, port uint16) (*net.UDPConn, error) {
	addr := netip.AddrPortFrom(netip.IPv4Unspecified(), port)
	if ipv6 {
		addr = netip.AddrPortFrom(netip.IPv6Unspecified(), port)
	}
	network := udpNetwork(ipv6)
	lc := net.ListenConfig{Control: dualStackControl}
	pc, err := lc.ListenPacket(ctx, network, addr.String())
	if err != nil {
		return nil, errors.Annotatef(err, "listen network=%s addr=%s", network, addr)
	}
	return pc.(*net.UDPConn), nil
}

func resolveServer(ctx context.Context, host string, port uint16, ipv6 bool) (netip.AddrPort, error) {
	if port == 0 {
		port = mq.DefaultPort
	}
	network := "ip4"
	if ipv6 {
		network = "ip6"
	}
	addrs, err := net.DefaultResolver.LookupNetIP(ctx, network, host)
	if err != nil {
		return netip.AddrPort{}, errors.Annotatef(err, "resolve host=%s", host)
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, errors.NotFoundf("resolve host=%s network=%s", host, network)
	}
	return netip.AddrPortFrom(addrs[0].Unmap(), port), nil
}

// runPump drains mailbox into socket until stopch is closed.
// Transient send errors (e.g. ICMP unreachable reported on UDP) are logged.
func runPump(stopch <-chan struct{}, done func(), mb *Mailbox, conn *packetConn, log *log2.Log) {
	defer done()
	var batch []Outgoing
	for {
		select {
		case <-mb.Wait():
		case <-stopch:
			return
		}
		batch = mb.Take(batch)
		for _, o := range batch {
			if err := conn.send(o.To, o.Msg); err != nil {
				log.Error(err)
			}
		}
		clear(batch)
	}
}
