package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

type MessageType string

const (
	MessageTypeOffer  MessageType = "offer"
	MessageTypeAnswer MessageType = "answer"
	MessageTypeICE    MessageType = "ice"
)

// ErrInvalidEnvelope is returned for input that is not a JSON object with a
// non-empty string type and a non-null payload.
var ErrInvalidEnvelope = errors.New("signaling: invalid envelope")

type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Candidate is an ICE candidate in the browser's RTCIceCandidateInit shape.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// ParseEnvelope decodes raw and checks the envelope shape. It does not look at
// the payload beyond requiring one.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if strings.TrimSpace(string(env.Type)) == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrInvalidEnvelope)
	}
	if isNull(env.Payload) {
		return Envelope{}, fmt.Errorf("%w: missing payload", ErrInvalidEnvelope)
	}
	return env, nil
}

// Encode marshals an envelope with the given payload value.
func Encode(t MessageType, payload any) ([]byte, error) {
	p, err := sonic.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(Envelope{Type: t, Payload: p})
}

func EncodeSDP(t MessageType, sdp string) ([]byte, error) {
	return Encode(t, sdp)
}

func EncodeCandidate(c Candidate) ([]byte, error) {
	return Encode(MessageTypeICE, c)
}

// SDP extracts a session description from an offer or answer payload. Both a
// bare SDP string and a {"type","sdp"} object are accepted.
func (e Envelope) SDP() (string, error) {
	var s string
	if err := sonic.Unmarshal(e.Payload, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("%w: empty sdp", ErrInvalidEnvelope)
		}
		return s, nil
	}
	var obj struct {
		SDP string `json:"sdp"`
	}
	if err := sonic.Unmarshal(e.Payload, &obj); err != nil || obj.SDP == "" {
		return "", fmt.Errorf("%w: %s payload is not an sdp", ErrInvalidEnvelope, e.Type)
	}
	return obj.SDP, nil
}

// Candidate extracts an ICE candidate from an ice payload. A bare candidate
// string is accepted too.
func (e Envelope) Candidate() (Candidate, error) {
	var c Candidate
	if err := sonic.Unmarshal(e.Payload, &c); err == nil {
		if c.Candidate == "" {
			return Candidate{}, fmt.Errorf("%w: empty candidate", ErrInvalidEnvelope)
		}
		return c, nil
	}
	var s string
	if err := sonic.Unmarshal(e.Payload, &s); err != nil || s == "" {
		return Candidate{}, fmt.Errorf("%w: ice payload is not a candidate", ErrInvalidEnvelope)
	}
	return Candidate{Candidate: s}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
