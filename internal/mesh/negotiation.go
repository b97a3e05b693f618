package mesh

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rtcmesh/internal/signaling"
	"github.com/1ureka/rtcmesh/internal/util"
)

// handle applies one relay message. Returned errors are protocol anomalies;
// the caller logs them and carries on.
func (m *Manager) handle(msg signaling.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	switch msg.Type {
	case signaling.TypeJoinSelf:
		return m.handleJoinSelf(msg.ID)
	case signaling.TypeJoin:
		return m.handleJoin(msg.ID, msg.Username)
	case signaling.TypeInit:
		return m.handleInit(msg.Source, msg.Name)
	case signaling.TypeOffer:
		return m.handleOffer(msg.Source, *msg.Offer)
	case signaling.TypeAnswer:
		return m.handleAnswer(msg.Source, *msg.Answer)
	case signaling.TypeIceCandidate:
		return m.handleCandidate(msg.Source, *msg.Candidate)
	}
	return fmt.Errorf("%w: unexpected type %q", ErrMalformedMessage, msg.Type)
}

// handleJoinSelf records our own identity. It is write-once.
func (m *Manager) handleJoinSelf(id string) error {
	m.selfMu.Lock()
	defer m.selfMu.Unlock()

	if m.selfID != "" {
		return fmt.Errorf("%w: have %s, relay sent %s", ErrIdentityAssigned, m.selfID, id)
	}
	m.selfID = id
	util.LogInfo("relay assigned id %s", id)
	return nil
}

// handleJoin makes us the initiator towards a newcomer: Init, then Offer.
func (m *Manager) handleJoin(id, name string) error {
	if self, ok := m.ID(); ok && self == id {
		return fmt.Errorf("%w: join announces ourselves", ErrInvalidPeer)
	}

	c, err := m.connect(id, name)
	if err != nil {
		return err
	}
	util.LogPeer("initiating connection", id, name)

	m.send(signaling.NewInit(id, m.name))

	offer, err := c.transport.CreateOffer()
	if err != nil {
		m.fail(c, fmt.Errorf("creating offer: %w", err))
		return nil
	}
	if err := c.transport.SetLocalDescription(offer); err != nil {
		m.fail(c, fmt.Errorf("setting local offer: %w", err))
		return nil
	}
	m.send(signaling.NewOffer(id, offer))
	m.flushCandidates(c)
	return nil
}

// handleInit makes us the responder: create the record and wait for the Offer.
func (m *Manager) handleInit(id, name string) error {
	if _, err := m.registry.get(id); err == nil {
		util.LogDebug("init from %s: record already exists", id)
		return nil
	}

	if _, err := m.connect(id, name); err != nil {
		return err
	}
	util.LogPeer("awaiting offer", id, name)
	return nil
}

func (m *Manager) handleOffer(id string, offer webrtc.SessionDescription) error {
	c, err := m.registry.get(id)
	if err != nil {
		return fmt.Errorf("%w: offer from %s without a record", ErrInvalidPeer, id)
	}

	if err := c.transport.SetRemoteDescription(offer); err != nil {
		m.fail(c, fmt.Errorf("applying offer: %w", err))
		return nil
	}
	answer, err := c.transport.CreateAnswer()
	if err != nil {
		m.fail(c, fmt.Errorf("creating answer: %w", err))
		return nil
	}
	if err := c.transport.SetLocalDescription(answer); err != nil {
		m.fail(c, fmt.Errorf("setting local answer: %w", err))
		return nil
	}
	m.send(signaling.NewAnswer(id, answer))
	m.flushCandidates(c)
	return nil
}

func (m *Manager) handleAnswer(id string, answer webrtc.SessionDescription) error {
	c, err := m.registry.get(id)
	if err != nil {
		return fmt.Errorf("%w: answer from %s without a record", ErrInvalidPeer, id)
	}

	if err := c.transport.SetRemoteDescription(answer); err != nil {
		m.fail(c, fmt.Errorf("applying answer: %w", err))
	}
	return nil
}

// handleCandidate hands a remote candidate to the peer's transport.
// Candidates for peers without a record are dropped, not buffered.
func (m *Manager) handleCandidate(id string, candidate webrtc.ICECandidateInit) error {
	c, err := m.registry.get(id)
	if err != nil {
		util.LogDebug("dropping candidate from %s: no record", id)
		return nil
	}

	if err := c.transport.AddICECandidate(candidate); err != nil {
		util.LogWarning("candidate from %s rejected: %v", id, err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Record lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// connect creates a record with its transport and channels, subscribes to
// the transport's events, and stores it. A record it replaces is closed.
func (m *Manager) connect(id, name string) (*Connection, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("manager closed, ignoring %s", id)
	}

	peer, err := m.transports()
	if err != nil {
		return nil, fmt.Errorf("creating transport for %s: %w", id, err)
	}

	c := newConnection(id, name, peer)
	if err := m.openChannels(c); err != nil {
		_ = peer.Close()
		return nil, fmt.Errorf("creating channels for %s: %w", id, err)
	}

	peer.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		if c.holdCandidate(candidate) {
			m.send(signaling.NewCandidate(c.id, candidate))
		}
	})
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.onStateChange(c, state)
	})

	if prior := m.registry.put(c); prior != nil {
		util.LogWarning("replacing %s record for %s", prior.State(), id)
		// Nothing can reach the orphan any more, not even Close.
		_ = prior.transport.Close()
		m.end(prior)
	}
	return c, nil
}

// flushCandidates sends the candidates discovered before our description.
func (m *Manager) flushCandidates(c *Connection) {
	for _, candidate := range c.markDescribed() {
		m.send(signaling.NewCandidate(c.id, candidate))
	}
}

// onStateChange drives Init → Open → Closed from transport state.
func (m *Manager) onStateChange(c *Connection, state webrtc.PeerConnectionState) {
	util.LogDebug("transport for %s: %s", c.id, state)

	switch state {
	case webrtc.PeerConnectionStateConnected:
		if _, ok := c.advance(StateOpen); !ok {
			return
		}
		util.Stats.AddPeer()
		util.LogPeer("connection established", c.id, c.name)
		m.waiters.resolve(c)
		m.bus.emitEstablished(c)

	case webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed:
		if m.end(c) {
			go func() { _ = c.transport.Close() }()
		}
	}
}

// fail ends a record whose negotiation broke on our side.
func (m *Manager) fail(c *Connection, err error) {
	util.LogError("negotiation with %s failed: %v", c.id, err)
	_ = c.transport.Close()
	m.end(c)
}

// end moves c to Closed, removes it from the registry and notifies
// observers. Only the first call for a record does anything.
func (m *Manager) end(c *Connection) bool {
	prev, ok := c.advance(StateClosed)
	if !ok {
		return false
	}

	m.registry.remove(c)
	if prev == StateOpen {
		util.Stats.RemovePeer()
	}
	util.LogPeer("connection ended", c.id, c.name)
	m.bus.emitEnded(c)
	return true
}
