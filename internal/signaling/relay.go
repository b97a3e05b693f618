package signaling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTarget is returned when a peer message names no member of the room.
var ErrUnknownTarget = errors.New("unknown target")

// sink receives messages the relay delivers to one member.
type sink interface {
	deliver(msg Message) error
}

type member struct {
	name string
	sink sink
}

// Relay is an in-process implementation of the relay side of the protocol.
// It assigns member ids, announces newcomers to the existing members of a
// room, and forwards peer messages within a room, rewriting target to
// source. It never inspects descriptions or candidates.
type Relay struct {
	mu    sync.Mutex
	rooms map[string]map[string]*member
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{rooms: make(map[string]map[string]*member)}
}

// join registers a member and returns its assigned id. The newcomer gets
// JoinSelf before anyone else learns about it.
func (r *Relay) join(room, name string, s sink) string {
	id := uuid.NewString()

	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*member)
		r.rooms[room] = members
	}
	existing := make([]*member, 0, len(members))
	for _, m := range members {
		existing = append(existing, m)
	}
	members[id] = &member{name: name, sink: s}
	r.mu.Unlock()

	_ = s.deliver(Message{Type: TypeJoinSelf, ID: id})
	for _, m := range existing {
		_ = m.sink.deliver(Message{Type: TypeJoin, ID: id, Username: name})
	}
	return id
}

// leave drops a member. Remaining members are not told; they notice through
// their transports.
func (r *Relay) leave(room, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// route forwards a client-originated peer message from source to its target.
func (r *Relay) route(room, source string, msg Message) error {
	if err := msg.ValidateOutbound(); err != nil {
		return err
	}
	if !msg.IsPeerMessage() {
		return fmt.Errorf("%w: %s is not a peer message", ErrMalformedMessage, msg.Type)
	}

	r.mu.Lock()
	target, ok := r.rooms[room][msg.Target]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, msg.Target)
	}

	msg.Source = source
	msg.Target = ""
	return target.sink.deliver(msg)
}

// Members returns the number of members currently in room.
func (r *Relay) Members(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[room])
}

// ──────────────────────────────────────────────────────────────────────────────
// In-process link
// ──────────────────────────────────────────────────────────────────────────────

// Compile-time interface check.
var _ Link = (*MemoryLink)(nil)

// MemoryLink is a Link attached directly to a Relay. Deliveries are queued
// without bound so the relay never blocks on a slow reader.
type MemoryLink struct {
	relay *Relay
	room  string
	id    string
	box   *mailbox

	closeOnce sync.Once
}

// Connect joins room under name and returns the member's link. The
// JoinSelf message is already queued when Connect returns.
func (r *Relay) Connect(room, name string) *MemoryLink {
	l := &MemoryLink{relay: r, room: room, box: newMailbox()}
	l.id = r.join(room, name, l.box)
	return l
}

// ID returns the relay-assigned member id.
func (l *MemoryLink) ID() string { return l.id }

func (l *MemoryLink) Send(msg Message) error {
	return l.relay.route(l.room, l.id, msg)
}

func (l *MemoryLink) Receive(ctx context.Context) (Message, error) {
	return l.box.pop(ctx)
}

// Close leaves the room. Pending messages are discarded.
func (l *MemoryLink) Close() error {
	l.closeOnce.Do(func() {
		l.relay.leave(l.room, l.id)
		l.box.close()
	})
	return nil
}

// mailbox is an unbounded FIFO with a blocking, cancellable pop.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	closed bool
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (b *mailbox) deliver(msg Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return net.ErrClosed
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
	return nil
}

func (b *mailbox) pop(ctx context.Context) (Message, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return Message{}, net.ErrClosed
		}
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return msg, nil
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (b *mailbox) close() {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}
