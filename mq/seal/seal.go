// Package seal wraps AES-128-GCM authenticated encryption under a pre-shared key.
// Every datagram on the wire is a Sealed envelope.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/moqu/helpers"
)

const (
	KeySize   = 16
	NonceSize = 12
	TagSize   = 16

	EnvelopeMagic = uint16(0x6d71) // "mq"
)

var (
	ErrAuthentication = fmt.Errorf("authentication failure")
	ErrEnvelope       = fmt.Errorf("malformed envelope")
)

type Key struct {
	bytes [KeySize]byte
}

// NewKey returns random key.
func NewKey() (Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k.bytes[:]); err != nil {
		return k, errors.Annotate(err, "rand key")
	}
	return k, nil
}

func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, errors.NotValidf("key length=%d expected=%d", len(b), KeySize)
	}
	copy(k.bytes[:], b)
	return k, nil
}

func KeyFromHex(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, errors.Annotate(err, "key hex")
	}
	return KeyFromBytes(b)
}

func (k Key) Hex() string { return hex.EncodeToString(k.bytes[:]) }

// String does not reveal key material.
func (k Key) String() string { return "seal.Key(***)" }

func (k Key) aead() cipher.AEAD {
	block, err := aes.NewCipher(k.bytes[:])
	if err != nil {
		// aes.NewCipher fails only on wrong key length
		panic(fmt.Sprintf("code error aes.NewCipher err=%v", err))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(fmt.Sprintf("code error cipher.NewGCM err=%v", err))
	}
	return aead
}

type Sealed struct {
	Nonce      [NonceSize]byte
	Ciphertext []byte // with tag
}

// Seal encrypts and authenticates plaintext under fresh random nonce.
// Error means system random source failed.
func Seal(key Key, plaintext []byte) (*Sealed, error) {
	s := &Sealed{}
	if _, err := io.ReadFull(rand.Reader, s.Nonce[:]); err != nil {
		return nil, errors.Annotate(err, "rand nonce")
	}
	s.Ciphertext = key.aead().Seal(nil, s.Nonce[:], plaintext, nil)
	return s, nil
}

// Open returns ErrAuthentication on any verification failure, never partial plaintext.
func Open(s *Sealed, key Key) ([]byte, error) {
	if s == nil || len(s.Ciphertext) < TagSize {
		return nil, ErrAuthentication
	}
	plain, err := key.aead().Open(nil, s.Nonce[:], s.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plain, nil
}

// MarshalBinary format: magic uint16 big endian | bytes(nonce) | bytes(ciphertext)
// where bytes(x) is varint length prefixed.
func (s *Sealed) MarshalBinary() ([]byte, error) {
	b := make([]byte, 2, 2+1+NonceSize+binary.MaxVarintLen32+len(s.Ciphertext))
	binary.BigEndian.PutUint16(b, EnvelopeMagic)
	buf := proto.NewBuffer(b)
	if err := buf.EncodeRawBytes(s.Nonce[:]); err != nil {
		return nil, err
	}
	if err := buf.EncodeRawBytes(s.Ciphertext); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary copies ciphertext, b may be reused by caller.
func (s *Sealed) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return errors.Annotate(io.ErrUnexpectedEOF, "magic")
	}
	if magic := binary.BigEndian.Uint16(b); magic != EnvelopeMagic {
		return errors.Annotatef(ErrEnvelope, "magic=%04x", magic)
	}
	rd := helpers.NewVarintReader(b[2:])
	nonce, err := rd.Bytes()
	if err != nil {
		return errors.Annotate(err, "nonce")
	}
	if len(nonce) != NonceSize {
		return errors.Annotatef(ErrEnvelope, "nonce length=%d", len(nonce))
	}
	ct, err := rd.Bytes()
	if err != nil {
		return errors.Annotate(err, "ciphertext")
	}
	if err = rd.Done(); err != nil {
		return err
	}
	copy(s.Nonce[:], nonce)
	s.Ciphertext = append(s.Ciphertext[:0], ct...)
	return nil
}
