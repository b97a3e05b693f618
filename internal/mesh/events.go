package mesh

import (
	"context"
	"sync"
)

// ConnectionHandler observes a connection being established or ended.
type ConnectionHandler func(conn *Connection)

// MessageHandler observes a payload received on a logical channel.
type MessageHandler func(payload []byte, channel string, conn *Connection)

// bus fans events out to observers in registration order.
//
// Dispatch is synchronous on the goroutine that raised the event, which is
// the transport's callback goroutine for state changes and channel
// messages. An observer that blocks delays that peer's later callbacks.
type bus struct {
	mu          sync.RWMutex
	established []ConnectionHandler
	ended       []ConnectionHandler
	messages    []MessageHandler
}

func (b *bus) onEstablished(fn ConnectionHandler) {
	b.mu.Lock()
	b.established = append(b.established, fn)
	b.mu.Unlock()
}

func (b *bus) onEnded(fn ConnectionHandler) {
	b.mu.Lock()
	b.ended = append(b.ended, fn)
	b.mu.Unlock()
}

func (b *bus) onMessage(fn MessageHandler) {
	b.mu.Lock()
	b.messages = append(b.messages, fn)
	b.mu.Unlock()
}

func (b *bus) emitEstablished(conn *Connection) {
	b.mu.RLock()
	handlers := b.established
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(conn)
	}
}

func (b *bus) emitEnded(conn *Connection) {
	b.mu.RLock()
	handlers := b.ended
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(conn)
	}
}

func (b *bus) emitMessage(payload []byte, channel string, conn *Connection) {
	b.mu.RLock()
	handlers := b.messages
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(payload, channel, conn)
	}
}

// OnConnection registers fn to run each time a connection opens.
func (m *Manager) OnConnection(fn ConnectionHandler) { m.bus.onEstablished(fn) }

// OnConnectionEnd registers fn to run each time a connection closes.
func (m *Manager) OnConnectionEnd(fn ConnectionHandler) { m.bus.onEnded(fn) }

// OnMessage registers fn for payloads on every logical channel.
func (m *Manager) OnMessage(fn MessageHandler) { m.bus.onMessage(fn) }

// OnChannelMessage registers fn for payloads on one logical channel.
func (m *Manager) OnChannelMessage(channel string, fn func(payload []byte, conn *Connection)) {
	m.bus.onMessage(func(payload []byte, rx string, conn *Connection) {
		if rx == channel {
			fn(payload, conn)
		}
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// AwaitPeer
// ──────────────────────────────────────────────────────────────────────────────

// waiters holds AwaitPeer callers keyed by peer id.
type waiters struct {
	mu      sync.Mutex
	pending map[string][]chan *Connection
}

func (w *waiters) add(id string) chan *Connection {
	ch := make(chan *Connection, 1)

	w.mu.Lock()
	if w.pending == nil {
		w.pending = make(map[string][]chan *Connection)
	}
	w.pending[id] = append(w.pending[id], ch)
	w.mu.Unlock()
	return ch
}

func (w *waiters) drop(id string, ch chan *Connection) {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.pending[id]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(w.pending, id)
	} else {
		w.pending[id] = list
	}
}

func (w *waiters) resolve(conn *Connection) {
	w.mu.Lock()
	list := w.pending[conn.id]
	delete(w.pending, conn.id)
	w.mu.Unlock()

	for _, ch := range list {
		ch <- conn
	}
}

// AwaitPeer returns the peer's connection once it is open. An unknown id
// fails immediately with ErrNotFound. If the record never opens (its
// negotiation fails, or it is removed while pending) AwaitPeer only
// returns when ctx ends.
func (m *Manager) AwaitPeer(ctx context.Context, id string) (*Connection, error) {
	conn, err := m.registry.get(id)
	if err != nil {
		return nil, err
	}
	if conn.State() == StateOpen {
		return conn, nil
	}

	ch := m.waiters.add(id)
	defer m.waiters.drop(id, ch)

	// The record may have opened between the first check and add.
	if conn.State() == StateOpen {
		return conn, nil
	}

	select {
	case opened := <-ch:
		return opened, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
