package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface check.
var _ Peer = (*pionPeer)(nil)

// pionPeer wraps a pion PeerConnection. Its context is cancelled on Close,
// stopping every channel sender it owns.
type pionPeer struct {
	pc *webrtc.PeerConnection

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewFactory returns a Factory creating pion-backed peers configured by cfg.
func NewFactory(cfg Config) Factory {
	api := cfg.newAPI()
	config := webrtc.Configuration{
		ICEServers: cfg.ICEServers,
	}

	return func() (Peer, error) {
		pc, err := api.NewPeerConnection(config)
		if err != nil {
			return nil, fmt.Errorf("creating PeerConnection: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		return &pionPeer{pc: pc, ctx: ctx, cancel: cancel}, nil
	}
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

func (p *pionPeer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

func (p *pionPeer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// OnICECandidate hides pion's nil end-of-gathering candidate.
func (p *pionPeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			fn(c.ToJSON())
		}
	})
}

func (p *pionPeer) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

// ---------------------------------------------------------------------------
// Channels
// ---------------------------------------------------------------------------

// CreateChannel creates a pre-negotiated, ordered DataChannel. Negotiated
// mode with a fixed id lets both sides create the channel independently,
// without OnDataChannel or an extra signaling round-trip.
func (p *pionPeer) CreateChannel(label string, id uint16) (Channel, error) {
	ordered := true
	negotiated := true

	dc, err := p.pc.CreateDataChannel(label, &webrtc.DataChannelInit{
		Ordered:    &ordered,
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		return nil, fmt.Errorf("creating channel %q (id %d): %w", label, id, err)
	}

	return newPionChannel(p.ctx, dc, id), nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Close stops every channel sender and closes the PeerConnection. Safe to
// call more than once.
func (p *pionPeer) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.closeErr = p.pc.Close()
		if errors.Is(p.closeErr, webrtc.ErrConnectionClosed) {
			p.closeErr = nil
		}
	})
	return p.closeErr
}
