package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// ErrMalformedMessage marks an undecodable or wrongly shaped signaling payload.
var ErrMalformedMessage = errors.New("malformed signaling message")

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	TypeJoinSelf     MessageType = "JoinSelf"
	TypeJoin         MessageType = "Join"
	TypeInit         MessageType = "Init"
	TypeOffer        MessageType = "Offer"
	TypeAnswer       MessageType = "Answer"
	TypeIceCandidate MessageType = "IceCandidate"
)

// Message is the JSON structure exchanged with the relay.
//
// Peer-to-peer messages (Init, Offer, Answer, IceCandidate) carry Target when
// sent by a client; the relay rewrites it to Source on delivery.
type Message struct {
	Type MessageType `json:"ty"`

	ID       string `json:"id,omitempty"`       // JoinSelf, Join
	Username string `json:"username,omitempty"` // Join
	Name     string `json:"name,omitempty"`     // Init

	Target string `json:"target,omitempty"`
	Source string `json:"source,omitempty"`

	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Peer returns the remote peer a delivered message refers to.
func (m Message) Peer() string {
	switch m.Type {
	case TypeJoinSelf, TypeJoin:
		return m.ID
	default:
		return m.Source
	}
}

// IsPeerMessage reports whether m travels between two clients.
func (m Message) IsPeerMessage() bool {
	switch m.Type {
	case TypeInit, TypeOffer, TypeAnswer, TypeIceCandidate:
		return true
	}
	return false
}

// NewInit builds a client-originated Init.
func NewInit(target, name string) Message {
	return Message{Type: TypeInit, Target: target, Name: name}
}

// NewOffer builds a client-originated Offer.
func NewOffer(target string, sdp webrtc.SessionDescription) Message {
	return Message{Type: TypeOffer, Target: target, Offer: &sdp}
}

// NewAnswer builds a client-originated Answer.
func NewAnswer(target string, sdp webrtc.SessionDescription) Message {
	return Message{Type: TypeAnswer, Target: target, Answer: &sdp}
}

// NewCandidate builds a client-originated IceCandidate.
func NewCandidate(target string, c webrtc.ICECandidateInit) Message {
	return Message{Type: TypeIceCandidate, Target: target, Candidate: &c}
}

// Validate checks that a message delivered by the relay has the fields its
// type requires.
func (m Message) Validate() error {
	return m.validate(false)
}

// ValidateOutbound checks a client-originated message.
func (m Message) ValidateOutbound() error {
	return m.validate(true)
}

func (m Message) validate(outbound bool) error {
	malformed := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrMalformedMessage, m.Type, fmt.Sprintf(format, args...))
	}

	switch m.Type {
	case TypeJoinSelf, TypeJoin:
		if outbound {
			return malformed("not sent by clients")
		}
		if m.ID == "" {
			return malformed("missing id")
		}
		return nil

	case TypeInit, TypeOffer, TypeAnswer, TypeIceCandidate:
		if outbound && m.Target == "" {
			return malformed("missing target")
		}
		if !outbound && m.Source == "" {
			return malformed("missing source")
		}

	case "":
		return fmt.Errorf("%w: missing type", ErrMalformedMessage)

	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, m.Type)
	}

	switch m.Type {
	case TypeOffer:
		if m.Offer == nil || m.Offer.Type != webrtc.SDPTypeOffer {
			return malformed("missing offer description")
		}
	case TypeAnswer:
		if m.Answer == nil || m.Answer.Type != webrtc.SDPTypeAnswer {
			return malformed("missing answer description")
		}
	case TypeIceCandidate:
		if m.Candidate == nil {
			return malformed("missing candidate")
		}
	}
	return nil
}

// Decode parses and validates a relay-delivered message.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Encode serializes a message for the wire.
func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
