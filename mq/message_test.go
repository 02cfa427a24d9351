package mq_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/moqu/mq"
)

func TestMessageEncoding(t *testing.T) {
	t.Parallel()
	note := mq.Item{Kind: "note", Content: "hi"}
	cases := []struct {
		name string
		msg  mq.Message
		hex  string
	}{
		{"addr-update", mq.NewAddrUpdate(), "01"},
		{"publish", mq.NewPublish(note), "02046e6f7465026869"},
		{"watermark", mq.NewWatermark(5), "0305"},
		{"watermark-large", mq.NewWatermark(300), "03ac02"},
		{"heartbeat", mq.NewHeartbeat(300), "01ac02"},
		{"item", mq.NewItemUpdate(1, note), "0201046e6f7465026869"},
		{"item-empty", mq.NewItemUpdate(7, mq.Item{}), "02070000"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			b, err := c.msg.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, c.hex, hex.EncodeToString(b))

			switch expect := c.msg.(type) {
			case mq.ClientRequest:
				var r mq.ClientRequest
				require.NoError(t, r.UnmarshalBinary(b))
				assert.Equal(t, expect, r)
			case mq.ServerUpdate:
				var u mq.ServerUpdate
				require.NoError(t, u.UnmarshalBinary(b))
				assert.Equal(t, expect, u)
			}
		})
	}
}

func TestMessageMarshalInvalidKind(t *testing.T) {
	t.Parallel()
	_, err := mq.ClientRequest{}.MarshalBinary()
	assert.Error(t, err)
	_, err = mq.ServerUpdate{Kind: 9}.MarshalBinary()
	assert.Error(t, err)
}

func TestClientRequestDecodeError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		hex    string
		expect string
	}{
		{"", "kind: varint: unexpected EOF"},
		{"00", "request kind=0 not valid"},
		{"09", "request kind=9 not valid"},
		{"8102", "request kind=257 not valid"},
		{"8202", "request kind=258 not valid"},
		{"830205", "request kind=259 not valid"},
		{"0100", "trailing bytes=1"},
		{"03", "watermark: varint: unexpected EOF"},
		{"03ff", "watermark: varint invalid"},
		{"0204", "publish: kind: length=4 remaining=0: unexpected EOF"},
		{"02026e6f", "publish: content: length: varint: unexpected EOF"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.hex, func(t *testing.T) {
			b, err := hex.DecodeString(c.hex)
			require.NoError(t, err, "code error in test")
			var r mq.ClientRequest
			err = r.UnmarshalBinary(b)
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.expect)
		})
	}
}

func TestServerUpdateDecodeError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		hex    string
		expect string
	}{
		{"", "kind: varint: unexpected EOF"},
		{"03", "update kind=3 not valid"},
		{"8102", "update kind=257 not valid"},
		{"820205000000", "update kind=258 not valid"},
		{"01", "heartbeat: varint: unexpected EOF"},
		{"010100", "trailing bytes=1"},
		{"02", "item seq: varint: unexpected EOF"},
		{"0201", "item: kind: length: varint: unexpected EOF"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.hex, func(t *testing.T) {
			b, err := hex.DecodeString(c.hex)
			require.NoError(t, err, "code error in test")
			var u mq.ServerUpdate
			err = u.UnmarshalBinary(b)
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.expect)
		})
	}
}

func TestMessageString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "AddrUpdate", mq.NewAddrUpdate().String())
	assert.Equal(t, "Watermark(3)", mq.NewWatermark(3).String())
	assert.Equal(t, `Publish(kind=note content="hi")`, mq.NewPublish(mq.Item{Kind: "note", Content: "hi"}).String())
	assert.Equal(t, "Heartbeat(12)", mq.NewHeartbeat(12).String())
	assert.Equal(t, `Item(2,(kind=a content="b"))`, mq.NewItemUpdate(2, mq.Item{Kind: "a", Content: "b"}).String())
}
