// Package transport is the Peer Transport capability: one PeerConnection per
// remote peer, offer/answer and description handling, ICE candidate ingestion
// and discovery, and pre-negotiated data channels. The production
// implementation wraps pion/webrtc; the mesh package only sees the
// interfaces below.
package transport

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

var (
	// ErrChannelClosed is returned when sending on a channel whose transport
	// has shut down.
	ErrChannelClosed = errors.New("channel closed")

	// ErrQueueFull is returned when a channel's outbound queue has no room,
	// either because the channel has not opened yet or because the remote
	// side is not draining it.
	ErrQueueFull = errors.New("channel send queue full")
)

// Peer is the negotiated direct transport to one remote peer.
//
// Callbacks registered with OnICECandidate and OnConnectionStateChange may
// fire on any goroutine. Registering replaces the previous callback.
type Peer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(sdp webrtc.SessionDescription) error
	SetRemoteDescription(sdp webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	// OnICECandidate fires for every locally discovered candidate. The end
	// of gathering is not reported.
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))

	// CreateChannel creates a pre-negotiated, ordered channel. Both ends
	// must create the channel with the same id.
	CreateChannel(label string, id uint16) (Channel, error)

	Close() error
}

// Channel is one pre-negotiated sub-stream of a Peer.
type Channel interface {
	Label() string
	ID() uint16

	// Send queues payload for delivery without blocking. Payloads sent
	// before the channel opens are held until it does, up to the queue's
	// capacity; beyond that Send fails with ErrQueueFull.
	Send(payload []byte) error

	// OnMessage registers the inbound payload callback.
	OnMessage(fn func(payload []byte))
}

// Factory creates a fresh Peer for a new connection record.
type Factory func() (Peer, error)
