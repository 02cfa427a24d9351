package mqnet

// Complex values are read and modified atomically, but not consistently,
// i.e. it is possible to read .Count=1 .Size=0 because Size has not updated yet.

import (
	"expvar"
	"fmt"
	"time"

	"github.com/temoto/atomic_clock"
	"github.com/temoto/moqu/mq"
)

type SessionStat struct {
	Recv Counters
	Send Counters
	// datagrams which failed envelope, authentication or payload decoding
	Drop     expvar.Int
	LastRecv atomic_clock.Clock
}

func (ss *SessionStat) SinceLastRecv() time.Duration {
	if ss.LastRecv.IsZero() {
		return 0
	}
	return atomic_clock.Since(&ss.LastRecv)
}

func (ss *SessionStat) String() string {
	return fmt.Sprintf(`{"recv":%s,"send":%s,"drop":%d}`,
		ss.Recv.String(), ss.Send.String(), ss.Drop.Value())
}

type Counters struct {
	Control CountSizePair // AddrUpdate, Watermark, Heartbeat
	Item    CountSizePair // Publish, Item
	Total   CountSizePair
}

// Register accounts one datagram of wire size carrying m.
func (c *Counters) Register(m mq.Message, size int) {
	c.Total.Count.Add(1)
	c.Total.Size.Add(int64(size))
	category := &c.Control
	switch x := m.(type) {
	case mq.ClientRequest:
		if x.Kind == mq.RequestPublish {
			category = &c.Item
		}
	case mq.ServerUpdate:
		if x.Kind == mq.UpdateItem {
			category = &c.Item
		}
	}
	category.Count.Add(1)
	category.Size.Add(int64(size))
}

func (c *Counters) String() string {
	return fmt.Sprintf(`{"control.count":%d,"control.size":%d,"item.count":%d,"item.size":%d,"total.count":%d,"total.size":%d}`,
		c.Control.Count.Value(), c.Control.Size.Value(),
		c.Item.Count.Value(), c.Item.Size.Value(),
		c.Total.Count.Value(), c.Total.Size.Value())
}

type CountSizePair struct {
	Count expvar.Int
	Size  expvar.Int
}

// QueueStat mirrors server queue for readers outside of event loop.
type QueueStat struct {
	Len    expvar.Int
	Sseq   expvar.Int
	Cliseq expvar.Int
	// 1 when subscriber address is known
	Subscribed expvar.Int
}

func (qs *QueueStat) update(q *Queue, subscribed bool) {
	qs.Len.Set(int64(q.Len()))
	qs.Sseq.Set(int64(q.Sseq()))
	qs.Cliseq.Set(int64(q.Cliseq()))
	if subscribed {
		qs.Subscribed.Set(1)
	} else {
		qs.Subscribed.Set(0)
	}
}

func (qs *QueueStat) String() string {
	return fmt.Sprintf(`{"len":%d,"sseq":%d,"cliseq":%d,"subscribed":%d}`,
		qs.Len.Value(), qs.Sseq.Value(), qs.Cliseq.Value(), qs.Subscribed.Value())
}
