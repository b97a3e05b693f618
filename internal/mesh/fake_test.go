package mesh

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/rtcmesh/internal/transport"
)

// Compile-time interface checks.
var (
	_ transport.Peer    = (*fakePeer)(nil)
	_ transport.Channel = (*fakeChannel)(nil)
)

// fakeNetwork links fakePeers in-process. An offer's SDP names the offering
// peer; when the offerer applies the answer both sides report Connected and
// their channels are paired by id.
type fakeNetwork struct {
	mu    sync.Mutex
	seq   int
	peers map[string]*fakePeer
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{peers: make(map[string]*fakePeer)}
}

func (n *fakeNetwork) factory() transport.Factory {
	return func() (transport.Peer, error) {
		n.mu.Lock()
		defer n.mu.Unlock()

		n.seq++
		p := &fakePeer{
			network:  n,
			token:    fmt.Sprintf("fake-%d", n.seq),
			channels: make(map[uint16]*fakeChannel),
		}
		n.peers[p.token] = p
		return p, nil
	}
}

func (n *fakeNetwork) lookup(sdp string) (*fakePeer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	p, ok := n.peers[strings.TrimPrefix(sdp, "sdp:")]
	if !ok {
		return nil, fmt.Errorf("unknown sdp %q", sdp)
	}
	return p, nil
}

type fakePeer struct {
	network *fakeNetwork
	token   string

	mu          sync.Mutex
	onState     func(webrtc.PeerConnectionState)
	onCandidate func(webrtc.ICECandidateInit)
	remote      *fakePeer
	hasRemote   bool
	connected   bool
	closed      bool
	sendErr     error
	channels    map[uint16]*fakeChannel
	offers      int
	answers     int
	candidates  []webrtc.ICECandidateInit
}

func (p *fakePeer) description(typ webrtc.SDPType) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: typ, SDP: "sdp:" + p.token}
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	p.offers++
	p.mu.Unlock()
	return p.description(webrtc.SDPTypeOffer), nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasRemote {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	p.answers++
	return p.description(webrtc.SDPTypeAnswer), nil
}

// SetLocalDescription discovers one host candidate, like a real agent would
// right after the description is applied.
func (p *fakePeer) SetLocalDescription(webrtc.SessionDescription) error {
	p.emitCandidate(webrtc.ICECandidateInit{Candidate: "candidate:" + p.token})
	return nil
}

func (p *fakePeer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	remote, err := p.network.lookup(sdp.SDP)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.remote = remote
	p.hasRemote = true
	p.mu.Unlock()

	if sdp.Type == webrtc.SDPTypeAnswer {
		remote.mu.Lock()
		remote.remote = p
		remote.mu.Unlock()

		p.connect()
		remote.connect()
	}
	return nil
}

func (p *fakePeer) connect() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.connected = true
	pending := make([]*fakeChannel, 0, len(p.channels))
	for _, ch := range p.channels {
		pending = append(pending, ch)
	}
	p.mu.Unlock()

	p.emitState(webrtc.PeerConnectionStateConnected)
	for _, ch := range pending {
		ch.flush()
	}
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasRemote {
		return errors.New("remote description not set")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onCandidate = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *fakePeer) CreateChannel(label string, id uint16) (transport.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[id]; ok {
		return nil, fmt.Errorf("channel id %d in use", id)
	}
	ch := &fakeChannel{peer: p, label: label, id: id}
	p.channels[id] = ch
	return ch, nil
}

// Close reports Closed once, as pion does.
func (p *fakePeer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.emitState(webrtc.PeerConnectionStateClosed)
	return nil
}

func (p *fakePeer) emitState(state webrtc.PeerConnectionState) {
	p.mu.Lock()
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

func (p *fakePeer) emitCandidate(c webrtc.ICECandidateInit) {
	p.mu.Lock()
	fn := p.onCandidate
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *fakePeer) receivedCandidates() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}

// refuseSends makes every channel of p fail Send with err.
func (p *fakePeer) refuseSends(err error) {
	p.mu.Lock()
	p.sendErr = err
	p.mu.Unlock()
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) negotiations() (offers, answers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offers, p.answers
}

type fakeChannel struct {
	peer  *fakePeer
	label string
	id    uint16

	mu      sync.Mutex
	handler func([]byte)
	queued  [][]byte
}

func (c *fakeChannel) Label() string { return c.label }
func (c *fakeChannel) ID() uint16    { return c.id }

func (c *fakeChannel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}

// Send delivers to the remote channel with the same id, queueing until the
// link is connected.
func (c *fakeChannel) Send(payload []byte) error {
	p := c.peer
	p.mu.Lock()
	closed, connected, sendErr := p.closed, p.connected, p.sendErr
	p.mu.Unlock()

	switch {
	case closed:
		return transport.ErrChannelClosed
	case sendErr != nil:
		return sendErr
	case !connected:
		c.mu.Lock()
		c.queued = append(c.queued, append([]byte(nil), payload...))
		c.mu.Unlock()
		return nil
	}
	c.deliver(payload)
	return nil
}

func (c *fakeChannel) flush() {
	c.mu.Lock()
	queued := c.queued
	c.queued = nil
	c.mu.Unlock()

	for _, payload := range queued {
		c.deliver(payload)
	}
}

func (c *fakeChannel) deliver(payload []byte) {
	c.peer.mu.Lock()
	remote := c.peer.remote
	c.peer.mu.Unlock()
	if remote == nil {
		return
	}

	remote.mu.Lock()
	target := remote.channels[c.id]
	remote.mu.Unlock()
	if target == nil {
		return
	}

	target.mu.Lock()
	fn := target.handler
	target.mu.Unlock()
	if fn != nil {
		fn(append([]byte(nil), payload...))
	}
}
