package mesh

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rtcmesh/internal/transport"
)

// State is the lifecycle state of a Connection. Transitions only move
// forward: Init → Open → Closed, or Init → Closed.
type State int

const (
	StateInit State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Connection is the record for one remote peer. It owns the peer's
// transport; its channel set is fixed when the record is created.
type Connection struct {
	id        string
	name      string
	transport transport.Peer
	channels  map[string]transport.Channel

	mu    sync.Mutex
	state State

	// Local candidates are held until our description has gone out, so
	// the relay never carries a candidate ahead of its Offer or Answer.
	described bool
	pending   []webrtc.ICECandidateInit
}

func newConnection(id, name string, peer transport.Peer) *Connection {
	return &Connection{
		id:        id,
		name:      name,
		transport: peer,
		channels:  make(map[string]transport.Channel),
		state:     StateInit,
	}
}

// ID returns the relay-assigned peer id.
func (c *Connection) ID() string { return c.id }

// Name returns the peer's display name. Responders learn it from Init;
// initiators from the relay's Join.
func (c *Connection) Name() string { return c.name }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Channel returns the handle for a logical channel.
func (c *Connection) Channel(name string) (transport.Channel, bool) {
	ch, ok := c.channels[name]
	return ch, ok
}

// Channels returns the logical channel names, ordered by channel id.
func (c *Connection) Channels() []string {
	names := make([]string, 0, len(c.channels))
	for name := range c.channels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return c.channels[names[i]].ID() < c.channels[names[j]].ID()
	})
	return names
}

// Send queues payload on the named channel of this connection.
func (c *Connection) Send(channel string, payload []byte) error {
	ch, ok := c.channels[channel]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	if c.State() == StateClosed {
		return transport.ErrChannelClosed
	}
	return ch.Send(payload)
}

// advance moves the record to next and reports the state it left. It
// refuses any transition that is not strictly forward.
func (c *Connection) advance(next State) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.state
	if next <= prev {
		return prev, false
	}
	c.state = next
	return prev, true
}

// holdCandidate queues a local candidate if our description has not been
// sent yet. It reports whether the caller should forward it now, which is
// never the case once the record is closed.
func (c *Connection) holdCandidate(candidate webrtc.ICECandidateInit) (forward bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return false
	}
	if !c.described {
		c.pending = append(c.pending, candidate)
		return false
	}
	return true
}

// markDescribed records that our description was sent and returns the
// candidates held until then.
func (c *Connection) markDescribed() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.described = true
	pending := c.pending
	c.pending = nil
	if c.state == StateClosed {
		return nil
	}
	return pending
}
