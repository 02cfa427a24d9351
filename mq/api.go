// Package mq holds message types shared by moqu server, client and publisher.
package mq

import (
	"encoding"
	"fmt"
)

const (
	DefaultPort = 34122
	KeyEnv      = "MOQU_KEY"
)

// Item is the unit of delivery. Kind names the downstream handler,
// Content is opaque payload text.
type Item struct {
	Kind    string
	Content string
}

func (i Item) String() string {
	return fmt.Sprintf("(kind=%s content=%q)", i.Kind, i.Content)
}

// Message is any value that may be sealed and sent on the wire.
type Message interface {
	encoding.BinaryMarshaler
	fmt.Stringer
}
