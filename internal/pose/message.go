// Package pose is the small protocol peers use over the data channel to share
// position and voice-activity updates once connected.
package pose

import (
	"errors"
	"fmt"
	"math"

	"github.com/spatialcall/spatialcall/internal/geometry"
)

type Type string

const (
	TypePosition Type = "position"
	TypeSpeaking Type = "speaking"
)

// ErrDecode marks inbound messages that could not be decoded or failed
// validation. Receivers log and drop them.
var ErrDecode = errors.New("pose: decode error")

// Message is one data-channel update. Position messages carry Position and
// Facing; speaking messages carry IsSpeaking.
type Message struct {
	Type       Type               `json:"type" msgpack:"type"`
	PeerID     string             `json:"peerId,omitempty" msgpack:"peerId,omitempty"`
	Position   *geometry.Position `json:"position,omitempty" msgpack:"position,omitempty"`
	Facing     *float64           `json:"facing,omitempty" msgpack:"facing,omitempty"`
	IsSpeaking *bool              `json:"isSpeaking,omitempty" msgpack:"isSpeaking,omitempty"`
}

func NewPosition(peerID string, p geometry.Pose) Message {
	pos := p.Position
	facing := p.Facing
	return Message{Type: TypePosition, PeerID: peerID, Position: &pos, Facing: &facing}
}

func NewSpeaking(peerID string, speaking bool) Message {
	return Message{Type: TypeSpeaking, PeerID: peerID, IsSpeaking: &speaking}
}

// Validate checks that the fields required by the message type are present
// and finite.
func (m Message) Validate() error {
	switch m.Type {
	case TypePosition:
		if m.Position == nil {
			return fmt.Errorf("%w: position message missing position", ErrDecode)
		}
		if m.Facing == nil {
			return fmt.Errorf("%w: position message missing facing", ErrDecode)
		}
		if !m.Position.IsFinite() || math.IsNaN(*m.Facing) || math.IsInf(*m.Facing, 0) {
			return fmt.Errorf("%w: non-finite pose", ErrDecode)
		}
	case TypeSpeaking:
		if m.IsSpeaking == nil {
			return fmt.Errorf("%w: speaking message missing isSpeaking", ErrDecode)
		}
	case "":
		return fmt.Errorf("%w: missing type", ErrDecode)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrDecode, m.Type)
	}
	return nil
}

// PeerState is the last known state of the remote participant.
type PeerState struct {
	PeerID     string            `json:"peerId"`
	Position   geometry.Position `json:"position"`
	Facing     float64           `json:"facing"`
	IsSpeaking bool              `json:"isSpeaking"`
	// HasPose is false until the first position update arrives.
	HasPose bool `json:"hasPose"`
}

func (s PeerState) Pose() geometry.Pose {
	return geometry.Pose{Position: s.Position, Facing: s.Facing}
}

// Apply merges m into s. Position and facing update together; speaking
// updates independently. The last message wins. m must be valid.
func (s PeerState) Apply(m Message) PeerState {
	if m.PeerID != "" {
		s.PeerID = m.PeerID
	}
	switch m.Type {
	case TypePosition:
		s.Position = *m.Position
		s.Facing = *m.Facing
		s.HasPose = true
	case TypeSpeaking:
		s.IsSpeaking = *m.IsSpeaking
	}
	return s
}
