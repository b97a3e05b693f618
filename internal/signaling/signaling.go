// Package signaling carries the relay protocol used to bootstrap peer links:
// the typed message taxonomy, the Link abstraction over a relay connection,
// a WebSocket implementation of Link, and a small in-process relay that
// implements the server side of the protocol for development and tests.
package signaling

import "context"

// Link is a bidirectional, ordered message channel to a relay server.
//
// Receive returns only well-formed messages; anything the link cannot
// decode is logged and dropped by the implementation. A non-nil error from
// Receive means the link is finished.
type Link interface {
	Send(msg Message) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}
