package mqnet

import (
	"github.com/temoto/moqu/mq"
)

type queueEntry struct {
	seq  uint64
	item mq.Item
}

// Queue is server side ordered store of items not yet acknowledged.
// Invariant: it holds exactly items with seq in (cliseq, sseq].
// Not safe for concurrent use, owned by server event loop.
type Queue struct {
	entries []queueEntry
	head    int
	sseq    uint64 // highest assigned
	cliseq  uint64 // highest no longer retained
}

func (q *Queue) Insert(item mq.Item) uint64 {
	q.sseq++
	q.entries = append(q.entries, queueEntry{seq: q.sseq, item: item})
	return q.sseq
}

func (q *Queue) Front() (uint64, mq.Item, bool) {
	if q.Len() == 0 {
		return 0, mq.Item{}, false
	}
	e := &q.entries[q.head]
	return e.seq, e.item, true
}

// PopUntil drops entries up to and including target.
// Target is clamped to sseq so acknowledgment of unknown sequence terminates.
func (q *Queue) PopUntil(target uint64) {
	target = minUint64(target, q.sseq)
	for q.cliseq < target && q.Len() > 0 {
		q.pop()
	}
}

func (q *Queue) Len() int       { return len(q.entries) - q.head }
func (q *Queue) Sseq() uint64   { return q.sseq }
func (q *Queue) Cliseq() uint64 { return q.cliseq }

func (q *Queue) pop() {
	q.entries[q.head] = queueEntry{} // release item strings
	q.head++
	q.cliseq++
	// compact when consumed prefix dominates
	if q.head == len(q.entries) {
		q.entries = q.entries[:0]
		q.head = 0
	} else if q.head >= 64 && q.head*2 >= len(q.entries) {
		n := copy(q.entries, q.entries[q.head:])
		clear(q.entries[n:])
		q.entries = q.entries[:n]
		q.head = 0
	}
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
