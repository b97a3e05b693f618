package mesh

import (
	"errors"

	"github.com/1ureka/rtcmesh/internal/signaling"
)

var (
	// ErrNotFound is returned when an operation names an unknown peer id.
	ErrNotFound = errors.New("peer not found")

	// ErrInvalidPeer marks a signaling message for a peer with no record.
	ErrInvalidPeer = errors.New("invalid peer")

	// ErrUnknownChannel is returned for a channel name outside the descriptor.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrIdentityAssigned marks a second JoinSelf.
	ErrIdentityAssigned = errors.New("own identity already assigned")

	// ErrMalformedMessage marks an undecodable or wrongly shaped signaling message.
	ErrMalformedMessage = signaling.ErrMalformedMessage
)
