// Package transport carries protocol messages between a control panel and a
// rendering surface. Both ends see the same Channel interface whether they
// share a process (Pipe) or talk over a WebSocket.
//
// Messages are serialized through the protocol codec on every hop, so the two
// sides never share references. Delivery is fire-and-forget: there is no
// acknowledgement, and a full inbox drops the message.
package transport

import (
	"errors"

	"github.com/taigrr/showroom/pkg/protocol"
)

var (
	// ErrClosed is returned by Send after either end has been closed.
	ErrClosed = errors.New("transport: channel closed")
	// ErrDropped is returned by Send when the receiver's inbox is full.
	ErrDropped = errors.New("transport: message dropped")
)

// DefaultBuffer is the inbox size of each channel end.
const DefaultBuffer = 64

// Channel is one end of a typed message channel.
type Channel interface {
	// Send delivers m to the other end without blocking.
	Send(m protocol.Message) error
	// Messages yields decoded messages from the other end. It is closed when
	// the channel closes.
	Messages() <-chan protocol.Message
	// Close shuts the channel down. It is safe to call more than once.
	Close() error
}
