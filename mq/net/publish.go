package mqnet

import (
	"context"
	"net/netip"

	"github.com/juju/errors"
	"github.com/temoto/moqu/log2"
	"github.com/temoto/moqu/mq"
	"github.com/temoto/moqu/mq/seal"
)

type PublishOptions struct {
	Host string
	IPv6 bool
	Key  seal.Key
	Log  *log2.Log
	Port uint16 // 0 is mq.DefaultPort
}

// Publisher sends items to server over one socket. No delivery confirmation.
type Publisher struct {
	conn   *packetConn
	server netip.AddrPort
	stat   SessionStat
}

func NewPublisher(ctx context.Context, opt PublishOptions) (*Publisher, error) {
	if opt.Host == "" {
		opt.Host = "localhost"
	}
	server, err := resolveServer(ctx, opt.Host, opt.Port, opt.IPv6)
	if err != nil {
		return nil, errors.Annotate(err, "publish")
	}
	udp, err := listenUDP(ctx, opt.IPv6, 0)
	if err != nil {
		return nil, errors.Annotate(err, "publish")
	}
	p := &Publisher{server: server}
	p.conn = newPacketConn(udp, NewCodec(opt.Key), opt.Log, &p.stat)
	return p, nil
}

func (p *Publisher) Publish(item mq.Item) error {
	return errors.Annotate(p.conn.send(p.server, mq.NewPublish(item)), "publish")
}

func (p *Publisher) Server() netip.AddrPort { return p.server }
func (p *Publisher) Stat() *SessionStat     { return &p.stat }
func (p *Publisher) Close() error           { return p.conn.Close() }

// Publish is one shot NewPublisher, Publish, Close.
func Publish(ctx context.Context, opt PublishOptions, item mq.Item) error {
	p, err := NewPublisher(ctx, opt)
	if err != nil {
		return err
	}
	err = p.Publish(item)
	if cerr := p.Close(); err == nil {
		err = errors.Annotate(cerr, "publish close")
	}
	return err
}
