package mqnet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/temoto/moqu/mq"
)

func TestSessionStat(t *testing.T) {
	t.Parallel()
	var ss SessionStat
	assert.Equal(t, time.Duration(0), ss.SinceLastRecv())

	note := mq.Item{Kind: "note", Content: "hi"}
	ss.Recv.Register(mq.NewAddrUpdate(), 30)
	ss.Recv.Register(mq.NewPublish(note), 40)
	ss.Send.Register(mq.NewItemUpdate(1, note), 41)
	ss.Send.Register(mq.NewHeartbeat(3), 31)
	ss.Drop.Add(1)
	ss.LastRecv.SetNow()

	assert.Equal(t, int64(2), ss.Recv.Total.Count.Value())
	assert.Equal(t, int64(70), ss.Recv.Total.Size.Value())
	assert.Equal(t, int64(1), ss.Recv.Item.Count.Value())
	assert.Equal(t, int64(40), ss.Recv.Item.Size.Value())
	assert.Equal(t, int64(1), ss.Recv.Control.Count.Value())
	assert.Equal(t, int64(41), ss.Send.Item.Size.Value())
	assert.Equal(t, int64(31), ss.Send.Control.Size.Value())
	assert.GreaterOrEqual(t, ss.SinceLastRecv(), time.Duration(0))
	assert.Less(t, ss.SinceLastRecv(), time.Minute)
	assert.Equal(t,
		`{"recv":{"control.count":1,"control.size":30,"item.count":1,"item.size":40,"total.count":2,"total.size":70},`+
			`"send":{"control.count":1,"control.size":31,"item.count":1,"item.size":41,"total.count":2,"total.size":72},"drop":1}`,
		ss.String())
}

func TestQueueStat(t *testing.T) {
	t.Parallel()
	var q Queue
	var qs QueueStat
	q.Insert(mq.Item{Kind: "a"})
	q.Insert(mq.Item{Kind: "b"})
	q.PopUntil(1)
	qs.update(&q, true)
	assert.Equal(t, `{"len":1,"sseq":2,"cliseq":1,"subscribed":1}`, qs.String())
	qs.update(&q, false)
	assert.Equal(t, int64(0), qs.Subscribed.Value())
}
