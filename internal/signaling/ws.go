package signaling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/1ureka/rtcmesh/internal/util"
)

// Compile-time interface check.
var _ Link = (*WSLink)(nil)

// WSLink is a Link over a gorilla WebSocket connection. Writes are
// serialized with a mutex; reads happen on a single background goroutine
// started by newWSLink.
type WSLink struct {
	conn *websocket.Conn
	mu   sync.Mutex

	inbox  chan Message
	done   chan struct{} // closed by readLoop when the connection fails
	err    error         // set before done is closed
	closed chan struct{} // closed by Close

	closeOnce sync.Once
}

// Dial connects to the relay at rawURL, announcing room and display name as
// query parameters, e.g.:
//
//	ws://relay.example.org/ws?room=lobby&name=alice
func Dial(ctx context.Context, rawURL, room, name string) (*WSLink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("room", room)
	q.Set("name", name)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	return newWSLink(conn), nil
}

func newWSLink(conn *websocket.Conn) *WSLink {
	l := &WSLink{
		conn:   conn,
		inbox:  make(chan Message, 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// readLoop decodes relay frames until the connection fails. Frames that are
// not text or do not decode are dropped.
func (l *WSLink) readLoop() {
	for {
		typ, data, err := l.conn.ReadMessage()
		if err != nil {
			l.err = fmt.Errorf("reading from relay: %w", err)
			close(l.done)
			return
		}

		if typ != websocket.TextMessage {
			util.LogWarning("relay sent an unexpected binary frame (%d bytes)", len(data))
			continue
		}

		msg, err := Decode(data)
		if err != nil {
			util.LogWarning("dropping relay frame: %v", err)
			continue
		}

		select {
		case l.inbox <- msg:
		case <-l.closed:
			return
		}
	}
}

// Send writes a client-originated message.
func (l *WSLink) Send(msg Message) error {
	if err := msg.ValidateOutbound(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteJSON(msg)
}

// Receive blocks until the next message, link failure, or ctx cancellation.
// Messages already buffered are returned before a link failure is reported.
// Once Close has been called it only returns net.ErrClosed, whatever the
// read loop saw while the connection went down.
func (l *WSLink) Receive(ctx context.Context) (Message, error) {
	select {
	case <-l.closed:
		return Message{}, net.ErrClosed
	case msg := <-l.inbox:
		return msg, nil
	default:
	}

	select {
	case msg := <-l.inbox:
		return msg, nil
	case <-l.done:
		if l.isClosed() {
			return Message{}, net.ErrClosed
		}
		return Message{}, l.err
	case <-l.closed:
		return Message{}, net.ErrClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (l *WSLink) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Close sends a normal close frame and tears the connection down.
func (l *WSLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)

		l.mu.Lock()
		writeErr := l.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		l.mu.Unlock()
		if errors.Is(writeErr, websocket.ErrCloseSent) {
			writeErr = nil
		}
		err = errors.Join(writeErr, l.conn.Close())
	})
	return err
}
