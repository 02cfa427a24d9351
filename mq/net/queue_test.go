package mqnet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/moqu/mq"
)

func TestQueueOrder(t *testing.T) {
	t.Parallel()
	a, b, c := mq.Item{Kind: "k", Content: "A"}, mq.Item{Kind: "k", Content: "B"}, mq.Item{Kind: "k", Content: "C"}
	q := &Queue{}
	_, _, ok := q.Front()
	assert.False(t, ok)

	assert.Equal(t, uint64(1), q.Insert(a))
	assert.Equal(t, uint64(2), q.Insert(b))
	assert.Equal(t, uint64(3), q.Insert(c))

	seq, item, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, a, item)
	// peek does not remove
	seq, _, _ = q.Front()
	assert.Equal(t, uint64(1), seq)

	q.PopUntil(1)
	seq, item, ok = q.Front()
	require.True(t, ok)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, b, item)
	assert.Equal(t, uint64(1), q.Cliseq())

	q.PopUntil(100)
	_, _, ok = q.Front()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, uint64(3), q.Cliseq())
	assert.Equal(t, uint64(3), q.Sseq())
}

func TestQueuePopUntil(t *testing.T) {
	t.Parallel()
	cases := []struct {
		inserts      int
		pops         []uint64
		expectCliseq uint64
		expectFront  uint64 // 0 = empty
	}{
		{0, []uint64{5}, 0, 0},
		{0, []uint64{^uint64(0)}, 0, 0},
		{3, []uint64{0}, 0, 1},
		{3, []uint64{2, 1}, 2, 3},
		{3, []uint64{2, 2}, 2, 3},
		{3, []uint64{3}, 3, 0},
		{3, []uint64{^uint64(0)}, 3, 0},
		{200, []uint64{70, 150}, 150, 151},
		{200, []uint64{199}, 199, 200},
	}
	for _, c := range cases {
		c := c
		t.Run(fmt.Sprintf("%d/%v", c.inserts, c.pops), func(t *testing.T) {
			q := &Queue{}
			for i := 1; i <= c.inserts; i++ {
				q.Insert(mq.Item{Kind: "k", Content: fmt.Sprint(i)})
			}
			for _, p := range c.pops {
				q.PopUntil(p)
			}
			assert.Equal(t, c.expectCliseq, q.Cliseq())
			assert.Equal(t, uint64(c.inserts), q.Sseq())
			assert.Equal(t, int(q.Sseq()-q.Cliseq()), q.Len())
			seq, item, ok := q.Front()
			if c.expectFront == 0 {
				assert.False(t, ok)
			} else {
				require.True(t, ok)
				assert.Equal(t, c.expectFront, seq)
				assert.Equal(t, fmt.Sprint(c.expectFront), item.Content)
			}
		})
	}
}

func TestQueueInsertAfterDrain(t *testing.T) {
	t.Parallel()
	q := &Queue{}
	q.Insert(mq.Item{Content: "1"})
	q.PopUntil(100)
	assert.Equal(t, uint64(2), q.Insert(mq.Item{Content: "x"}))
	seq, item, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, "x", item.Content)
	assert.Equal(t, uint64(1), q.Cliseq())
}
