// Package mesh keeps a full mesh of direct peer links among the members of a
// room. A Manager turns relay-delivered signaling (Join, Init, Offer, Answer,
// IceCandidate) into one transport per remote peer, with deterministic roles:
// the member that observes a Join initiates, the newcomer responds. Each
// link carries a fixed set of pre-negotiated logical channels, and
// connection and channel events are delivered to registered observers.
package mesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/1ureka/rtcmesh/internal/signaling"
	"github.com/1ureka/rtcmesh/internal/transport"
	"github.com/1ureka/rtcmesh/internal/util"
)

// Options configures a Manager.
type Options struct {
	Room       string
	Name       string
	Channels   Descriptor
	Transports transport.Factory
}

// Manager owns every connection record of one room participant.
//
// Signaling messages are handled one at a time by Run. Transport callbacks
// arrive on pion's goroutines; they only touch the registry and the record
// they belong to, both of which are mutex-guarded.
type Manager struct {
	link       signaling.Link
	transports transport.Factory

	room     string
	name     string
	channels Descriptor

	selfMu sync.Mutex
	selfID string

	registry *registry
	bus      bus
	waiters  waiters

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a Manager bound to link. Nothing happens until Run is called.
func New(link signaling.Link, opts Options) (*Manager, error) {
	if link == nil {
		return nil, errors.New("mesh: nil signaling link")
	}
	if opts.Transports == nil {
		return nil, errors.New("mesh: nil transport factory")
	}
	if opts.Room == "" {
		return nil, errors.New("mesh: room is required")
	}
	if err := opts.Channels.Validate(); err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}

	return &Manager{
		link:       link,
		transports: opts.Transports,
		room:       opts.Room,
		name:       opts.Name,
		channels:   opts.Channels.clone(),
		registry:   newRegistry(),
	}, nil
}

// Room returns the room this manager was created for.
func (m *Manager) Room() string { return m.room }

// Name returns our display name.
func (m *Manager) Name() string { return m.name }

// ID returns the identity the relay assigned to us, once JoinSelf arrived.
func (m *Manager) ID() (string, bool) {
	m.selfMu.Lock()
	defer m.selfMu.Unlock()
	return m.selfID, m.selfID != ""
}

// Channels returns a copy of the channel descriptor.
func (m *Manager) Channels() Descriptor { return m.channels.clone() }

// Run processes signaling messages until ctx is cancelled, the link fails,
// or Close is called. Protocol anomalies are logged and skipped.
func (m *Manager) Run(ctx context.Context) error {
	util.LogInfo("joining room %q as %q", m.room, m.name)

	for {
		msg, err := m.link.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// After Close the link's error only describes the teardown.
			if m.closed.Load() {
				return nil
			}
			return fmt.Errorf("signaling link: %w", err)
		}

		if err := m.handle(msg); err != nil {
			util.LogWarning("dropping %s from %q: %v", msg.Type, msg.Peer(), err)
		}
	}
}

// Close ends every connection and closes the signaling link. Ended
// notifications still fire for connections that were live.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)

		var errs []error
		for _, c := range m.registry.all() {
			if err := c.transport.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing transport for %s: %w", c.id, err))
			}
			m.end(c)
		}
		errs = append(errs, m.link.Close())
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}

// send forwards a client message to the relay. Failures are logged; the
// affected negotiation stalls in Init, which is the only observable effect.
func (m *Manager) send(msg signaling.Message) {
	if err := m.link.Send(msg); err != nil {
		util.LogWarning("failed to send %s to %q: %v", msg.Type, msg.Target, err)
	}
}
