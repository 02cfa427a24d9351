package mqnet

import (
	"encoding"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/moqu/mq"
	"github.com/temoto/moqu/mq/seal"
)

const (
	DecodeStageEnvelope = "envelope"
	DecodeStageOpen     = "open"
	DecodeStagePayload  = "payload"
)

// DecodeError is returned for any inbound datagram that can not be turned
// into a message. Stage is detail for logs only.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Stage, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

func IsDecodeError(err error) bool {
	_, ok := errors.Cause(err).(*DecodeError)
	return ok
}

// Codec seals outgoing messages and opens inbound datagrams.
type Codec struct {
	key seal.Key
}

func NewCodec(key seal.Key) *Codec { return &Codec{key: key} }

func (c *Codec) Encode(m mq.Message) ([]byte, error) {
	plain, err := m.MarshalBinary()
	if err != nil {
		return nil, errors.Annotatef(err, "encode m=%s", m.String())
	}
	sealed, err := seal.Seal(c.key, plain)
	if err != nil {
		return nil, errors.Annotate(err, "encode seal")
	}
	b, err := sealed.MarshalBinary()
	return b, errors.Annotate(err, "encode envelope")
}

func (c *Codec) Decode(b []byte, into encoding.BinaryUnmarshaler) error {
	var sealed seal.Sealed
	if err := sealed.UnmarshalBinary(b); err != nil {
		return &DecodeError{Stage: DecodeStageEnvelope, Err: err}
	}
	plain, err := seal.Open(&sealed, c.key)
	if err != nil {
		return &DecodeError{Stage: DecodeStageOpen, Err: err}
	}
	if err = into.UnmarshalBinary(plain); err != nil {
		return &DecodeError{Stage: DecodeStagePayload, Err: err}
	}
	return nil
}

func (c *Codec) DecodeRequest(b []byte) (mq.ClientRequest, error) {
	var r mq.ClientRequest
	err := c.Decode(b, &r)
	return r, err
}

func (c *Codec) DecodeUpdate(b []byte) (mq.ServerUpdate, error) {
	var u mq.ServerUpdate
	err := c.Decode(b, &u)
	return u, err
}
