package mesh

import (
	"errors"
	"fmt"
	"sort"
)

// Descriptor maps logical channel names to pre-negotiated channel ids. Every
// participant of a room must use an identical descriptor; nothing checks
// this at runtime, and a mismatch silently pairs the wrong channels.
type Descriptor map[string]uint16

// Validate rejects empty descriptors, empty names and shared ids.
func (d Descriptor) Validate() error {
	if len(d) == 0 {
		return errors.New("channel descriptor is empty")
	}

	seen := make(map[uint16]string, len(d))
	for _, name := range d.names() {
		id := d[name]
		if name == "" {
			return fmt.Errorf("channel %d has an empty name", id)
		}
		if other, ok := seen[id]; ok {
			return fmt.Errorf("channels %q and %q share id %d", other, name, id)
		}
		seen[id] = name
	}
	return nil
}

// names returns the channel names ordered by id, then name.
func (d Descriptor) names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if d[names[i]] != d[names[j]] {
			return d[names[i]] < d[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func (d Descriptor) clone() Descriptor {
	out := make(Descriptor, len(d))
	for name, id := range d {
		out[name] = id
	}
	return out
}

// openChannels creates every descriptor channel on c's transport and routes
// inbound payloads to the bus tagged with the logical name. It runs before
// c is stored in the registry.
func (m *Manager) openChannels(c *Connection) error {
	for _, name := range m.channels.names() {
		ch, err := c.transport.CreateChannel(name, m.channels[name])
		if err != nil {
			return err
		}

		label := name
		ch.OnMessage(func(payload []byte) {
			if c.State() == StateClosed {
				return
			}
			m.bus.emitMessage(payload, label, c)
		})
		c.channels[name] = ch
	}
	return nil
}

// Send queues payload on the named channel of one peer. It does not block;
// a full queue fails with transport.ErrQueueFull.
func (m *Manager) Send(peerID, channel string, payload []byte) error {
	c, err := m.registry.get(peerID)
	if err != nil {
		return err
	}
	return c.Send(channel, payload)
}

// Broadcast queues payload on the named channel of every open connection.
// Channel sends never block, so a peer that is closed or not draining its
// queue fails only its own send. All failures are returned joined.
func (m *Manager) Broadcast(channel string, payload []byte) error {
	if _, ok := m.channels[channel]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	var errs []error
	for _, c := range m.registry.listOpen() {
		if err := c.Send(channel, payload); err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", c.id, err))
		}
	}
	return errors.Join(errs...)
}

// Connections returns a snapshot of the open connections, sorted by peer id.
func (m *Manager) Connections() []*Connection {
	return m.registry.listOpen()
}
