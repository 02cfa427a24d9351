package mq

import (
	"fmt"
	"math"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/moqu/helpers"
)

// Wire encoding: varint(kind) followed by variant fields,
// integers as varints, strings length-delimited.

type RequestKind uint8

const (
	RequestInvalid RequestKind = iota
	RequestAddrUpdate
	RequestPublish
	RequestWatermark
)

func (k RequestKind) String() string {
	switch k {
	case RequestAddrUpdate:
		return "AddrUpdate"
	case RequestPublish:
		return "Publish"
	case RequestWatermark:
		return "Watermark"
	}
	return fmt.Sprintf("RequestKind(%d)", uint8(k))
}

// ClientRequest is sent client->server. Item is set for Publish, Seq for Watermark.
type ClientRequest struct {
	Kind RequestKind
	Item Item
	Seq  uint64
}

var _ Message = ClientRequest{}

func NewAddrUpdate() ClientRequest          { return ClientRequest{Kind: RequestAddrUpdate} }
func NewPublish(item Item) ClientRequest    { return ClientRequest{Kind: RequestPublish, Item: item} }
func NewWatermark(seq uint64) ClientRequest { return ClientRequest{Kind: RequestWatermark, Seq: seq} }

func (r ClientRequest) String() string {
	switch r.Kind {
	case RequestPublish:
		return fmt.Sprintf("Publish%s", r.Item.String())
	case RequestWatermark:
		return fmt.Sprintf("Watermark(%d)", r.Seq)
	}
	return r.Kind.String()
}

func (r ClientRequest) MarshalBinary() ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 16+len(r.Item.Kind)+len(r.Item.Content)))
	if err := buf.EncodeVarint(uint64(r.Kind)); err != nil {
		return nil, err
	}
	switch r.Kind {
	case RequestAddrUpdate:
	case RequestPublish:
		if err := encodeItem(buf, r.Item); err != nil {
			return nil, err
		}
	case RequestWatermark:
		if err := buf.EncodeVarint(r.Seq); err != nil {
			return nil, err
		}
	default:
		return nil, errors.NotValidf("request kind=%d", r.Kind)
	}
	return buf.Bytes(), nil
}

func (r *ClientRequest) UnmarshalBinary(b []byte) error {
	rd := helpers.NewVarintReader(b)
	kind, err := rd.Uint64()
	if err != nil {
		return errors.Annotate(err, "kind")
	}
	if kind > math.MaxUint8 {
		return errors.NotValidf("request kind=%d", kind)
	}
	*r = ClientRequest{Kind: RequestKind(kind)}
	switch r.Kind {
	case RequestAddrUpdate:
	case RequestPublish:
		if r.Item, err = decodeItem(rd); err != nil {
			return errors.Annotate(err, "publish")
		}
	case RequestWatermark:
		if r.Seq, err = rd.Uint64(); err != nil {
			return errors.Annotate(err, "watermark")
		}
	default:
		return errors.NotValidf("request kind=%d", kind)
	}
	return rd.Done()
}

type UpdateKind uint8

const (
	UpdateInvalid UpdateKind = iota
	UpdateHeartbeat
	UpdateItem
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateHeartbeat:
		return "Heartbeat"
	case UpdateItem:
		return "Item"
	}
	return fmt.Sprintf("UpdateKind(%d)", uint8(k))
}

// ServerUpdate is sent server->client.
// Uptime (seconds) is set for Heartbeat; Seq and Item for Item.
type ServerUpdate struct {
	Kind   UpdateKind
	Uptime uint64
	Seq    uint64
	Item   Item
}

var _ Message = ServerUpdate{}

func NewHeartbeat(uptime uint64) ServerUpdate {
	return ServerUpdate{Kind: UpdateHeartbeat, Uptime: uptime}
}
func NewItemUpdate(seq uint64, item Item) ServerUpdate {
	return ServerUpdate{Kind: UpdateItem, Seq: seq, Item: item}
}

func (u ServerUpdate) String() string {
	switch u.Kind {
	case UpdateHeartbeat:
		return fmt.Sprintf("Heartbeat(%d)", u.Uptime)
	case UpdateItem:
		return fmt.Sprintf("Item(%d,%s)", u.Seq, u.Item.String())
	}
	return u.Kind.String()
}

func (u ServerUpdate) MarshalBinary() ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 24+len(u.Item.Kind)+len(u.Item.Content)))
	if err := buf.EncodeVarint(uint64(u.Kind)); err != nil {
		return nil, err
	}
	switch u.Kind {
	case UpdateHeartbeat:
		if err := buf.EncodeVarint(u.Uptime); err != nil {
			return nil, err
		}
	case UpdateItem:
		if err := buf.EncodeVarint(u.Seq); err != nil {
			return nil, err
		}
		if err := encodeItem(buf, u.Item); err != nil {
			return nil, err
		}
	default:
		return nil, errors.NotValidf("update kind=%d", u.Kind)
	}
	return buf.Bytes(), nil
}

func (u *ServerUpdate) UnmarshalBinary(b []byte) error {
	rd := helpers.NewVarintReader(b)
	kind, err := rd.Uint64()
	if err != nil {
		return errors.Annotate(err, "kind")
	}
	if kind > math.MaxUint8 {
		return errors.NotValidf("update kind=%d", kind)
	}
	*u = ServerUpdate{Kind: UpdateKind(kind)}
	switch u.Kind {
	case UpdateHeartbeat:
		if u.Uptime, err = rd.Uint64(); err != nil {
			return errors.Annotate(err, "heartbeat")
		}
	case UpdateItem:
		if u.Seq, err = rd.Uint64(); err != nil {
			return errors.Annotate(err, "item seq")
		}
		if u.Item, err = decodeItem(rd); err != nil {
			return errors.Annotate(err, "item")
		}
	default:
		return errors.NotValidf("update kind=%d", kind)
	}
	return rd.Done()
}

func encodeItem(buf *proto.Buffer, item Item) error {
	if err := buf.EncodeStringBytes(item.Kind); err != nil {
		return err
	}
	return buf.EncodeStringBytes(item.Content)
}

func decodeItem(rd *helpers.VarintReader) (item Item, err error) {
	if item.Kind, err = rd.String(); err != nil {
		return item, errors.Annotate(err, "kind")
	}
	if item.Content, err = rd.String(); err != nil {
		return item, errors.Annotate(err, "content")
	}
	return item, nil
}
