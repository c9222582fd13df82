package peer

import (
	"context"

	"github.com/spatialcall/spatialcall/internal/signaling"
)

type State string

const (
	StateNew          State = "new"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateFailed       State = "failed"
)

type SDPType string

const (
	SDPTypeOffer  SDPType = "offer"
	SDPTypeAnswer SDPType = "answer"
)

func ParseSDPType(raw string) (SDPType, bool) {
	switch SDPType(raw) {
	case SDPTypeOffer, SDPTypeAnswer:
		return SDPType(raw), true
	default:
		return "", false
	}
}

type SessionDescription struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

// ICECandidate uses the same shape on the wire and in the API.
type ICECandidate = signaling.Candidate

// Track describes an inbound media track. Remote holds the transport's own
// track handle for whatever renders the audio.
type Track struct {
	ID       string
	StreamID string
	Kind     string
	Remote   any
}

// TransportHandlers are the callbacks a transport reports into. A transport
// must not call any of them after Detach returns.
type TransportHandlers struct {
	OnConnectionStateChange func(State)
	OnICECandidate          func(ICECandidate)
	OnTrack                 func(Track)
	OnDataOpen              func()
	OnDataMessage           func([]byte)
}

// Transport is the RTC connection a Manager drives.
type Transport interface {
	CreateOffer(ctx context.Context) (SessionDescription, error)
	CreateAnswer(ctx context.Context) (SessionDescription, error)
	SetLocalDescription(ctx context.Context, d SessionDescription) error
	SetRemoteDescription(ctx context.Context, d SessionDescription) error
	AddICECandidate(c ICECandidate) error
	SendData(b []byte) error
	// Detach drops every registered handler.
	Detach()
	Close() error
}

// TransportFactory builds a transport that reports into h.
type TransportFactory func(h TransportHandlers) (Transport, error)

// SignalingConn is an open relay connection.
type SignalingConn interface {
	Send(raw []byte) error
	Close() error
}

// SignalingDialer opens a relay connection. Every well-formed inbound
// envelope goes to handler; onClose runs once when the connection ends.
type SignalingDialer func(ctx context.Context, url string, handler signaling.Handler, onClose func(error)) (SignalingConn, error)
