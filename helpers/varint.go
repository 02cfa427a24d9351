package helpers

import (
	"io"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
)

// VarintReader consumes protobuf wire encoded varints and length-delimited
// byte strings from a buffer, tracking position so callers can reject
// trailing garbage.
type VarintReader struct {
	b []byte
}

func NewVarintReader(b []byte) *VarintReader { return &VarintReader{b: b} }

func (r *VarintReader) Len() int { return len(r.b) }

func (r *VarintReader) Uint64() (uint64, error) {
	if len(r.b) == 0 {
		return 0, errors.Annotate(io.ErrUnexpectedEOF, "varint")
	}
	x, n := proto.DecodeVarint(r.b)
	if n == 0 {
		return 0, errors.Errorf("varint invalid b=%x", r.b[:minInt(len(r.b), 10)])
	}
	r.b = r.b[n:]
	return x, nil
}

// Bytes returns a slice of the underlying buffer, not a copy.
func (r *VarintReader) Bytes() ([]byte, error) {
	length, err := r.Uint64()
	if err != nil {
		return nil, errors.Annotate(err, "length")
	}
	if length > uint64(len(r.b)) {
		return nil, errors.Annotatef(io.ErrUnexpectedEOF, "length=%d remaining=%d", length, len(r.b))
	}
	b := r.b[:length]
	r.b = r.b[length:]
	return b, nil
}

func (r *VarintReader) String() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}

// Done returns error if unread bytes remain.
func (r *VarintReader) Done() error {
	if len(r.b) != 0 {
		return errors.Errorf("trailing bytes=%d", len(r.b))
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
